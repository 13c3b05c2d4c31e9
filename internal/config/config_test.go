package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.PollIntervalSeconds != 2 {
		t.Errorf("PollIntervalSeconds = %d, want 2", cfg.PollIntervalSeconds)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("ProxyMode = %q, want no-proxy", cfg.ProxyMode)
	}
	if cfg.ProxyPort != 8080 {
		t.Errorf("ProxyPort = %d, want 8080", cfg.ProxyPort)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PageSize != 25 || cfg.ProxyMode != "no-proxy" {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "config")

	in := &Config{
		APIBaseURL:          "https://racm.example.com",
		APIToken:            "tok-123",
		PollIntervalSeconds: 5,
		PageSize:            10,
		ProxyMode:           "basic",
		ProxyHost:           "proxy.corp",
		ProxyPort:           3128,
		ProxyUser:           "svc",
		ProxyPassword:       "hunter2",
		NoProxy:             "localhost,.internal",
	}
	if err := in.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file perm = %o, want 0600", perm)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
	}
}

func TestSaveKeepsSectionsSeparate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := Defaults()
	cfg.APIBaseURL = "https://racm.example.com"
	cfg.ProxyHost = "proxy.corp"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	racmSec := text[strings.Index(text, "[racm]"):strings.Index(text, "[proxy]")]
	proxySec := text[strings.Index(text, "[proxy]"):]
	if strings.Contains(racmSec, "host") {
		t.Errorf("[racm] section leaked proxy keys:\n%s", racmSec)
	}
	if strings.Contains(proxySec, "api_url") {
		t.Errorf("[proxy] section leaked racm keys:\n%s", proxySec)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	cfg := Defaults()
	cfg.APIBaseURL = "https://file.example.com"
	cfg.PageSize = 10
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	t.Setenv("RACM_API_URL", "https://env.example.com")
	t.Setenv("RACM_PAGE_SIZE", "50")
	t.Setenv("RACM_PROXY_MODE", "system")

	out, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.APIBaseURL != "https://env.example.com" {
		t.Errorf("APIBaseURL = %q, env should override file", out.APIBaseURL)
	}
	if out.PageSize != 50 {
		t.Errorf("PageSize = %d, want 50", out.PageSize)
	}
	if out.ProxyMode != "system" {
		t.Errorf("ProxyMode = %q, want system", out.ProxyMode)
	}
}

func TestLoadTrimsTrailingSlash(t *testing.T) {
	t.Setenv("RACM_API_URL", "https://racm.example.com/")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIBaseURL != "https://racm.example.com" {
		t.Errorf("APIBaseURL = %q, trailing slash should be trimmed", cfg.APIBaseURL)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("[racm\napi_url = x\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unclosed section header")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("Validate() = %v, want ErrMissingBaseURL", err)
	}

	cfg.APIBaseURL = "https://racm.example.com"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingToken) {
		t.Errorf("Validate() = %v, want ErrMissingToken", err)
	}

	cfg.APIToken = "tok"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestResolveTokenPriority(t *testing.T) {
	// Point the default token path at an empty temp home so the real
	// user's token file cannot interfere.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RACM_API_TOKEN", "")

	cfg := &Config{APIToken: "from-config"}

	if got := ResolveToken("from-flag", cfg); got != "from-flag" {
		t.Errorf("flag token: got %q", got)
	}

	t.Setenv("RACM_API_TOKEN", "from-env")
	if got := ResolveToken("", cfg); got != "from-env" {
		t.Errorf("env token: got %q", got)
	}

	t.Setenv("RACM_API_TOKEN", "")
	tokenPath, err := DefaultTokenPath()
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteTokenFile(tokenPath, "from-file"); err != nil {
		t.Fatal(err)
	}
	if got := ResolveToken("", cfg); got != "from-file" {
		t.Errorf("file token: got %q", got)
	}

	if err := os.Remove(tokenPath); err != nil {
		t.Fatal(err)
	}
	if got := ResolveToken("", cfg); got != "from-config" {
		t.Errorf("config token: got %q", got)
	}

	if got := ResolveToken("", nil); got != "" {
		t.Errorf("no sources: got %q, want empty", got)
	}
}

func TestTokenFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	if err := WriteTokenFile(path, "secret-token"); err != nil {
		t.Fatalf("WriteTokenFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file perm = %o, want 0600", perm)
	}

	got, err := ReadTokenFile(path)
	if err != nil {
		t.Fatalf("ReadTokenFile: %v", err)
	}
	if got != "secret-token" {
		t.Errorf("ReadTokenFile = %q, trailing newline should be trimmed", got)
	}
}
