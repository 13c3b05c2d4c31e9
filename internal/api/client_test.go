package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/racmlabs/racm-int/internal/config"
	"github.com/racmlabs/racm-int/internal/models"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(&config.Config{
		APIBaseURL: srv.URL,
		APIToken:   "test-token",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

// TestNewClientRequiresBaseURL verifies client creation fails without a URL.
func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(&config.Config{})
	if err == nil {
		t.Fatal("expected error for empty base URL")
	}
}

// TestBearerAuthHeader verifies every request carries the bearer token.
func TestBearerAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	if err := client.Health(context.Background()); err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, expected 'Bearer test-token'", gotAuth)
	}
}

// TestStatusClassification maps response codes to sentinel errors.
func TestStatusClassification(t *testing.T) {
	cases := []struct {
		code     int
		sentinel error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusRequestEntityTooLarge, ErrPayloadTooLarge},
		{http.StatusBadRequest, ErrBadRequest},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}

	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(c.code)
		}))

		client := testClient(t, srv)
		err := client.Health(context.Background())
		if !errors.Is(err, c.sentinel) {
			t.Errorf("status %d: got %v, expected sentinel %v", c.code, err, c.sentinel)
		}
		if IsTransportError(err) {
			t.Errorf("status %d should not classify as transport error", c.code)
		}
		srv.Close()
	}
}

// TestTransportError verifies connection failures wrap as TransportError.
func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := testClient(t, srv)
	err := client.Health(context.Background())
	if err == nil {
		t.Fatal("expected error against closed server")
	}
	if !IsTransportError(err) {
		t.Errorf("expected TransportError, got %T: %v", err, err)
	}
}

// TestSubmitJobMultipart tests the multipart upload and job_id decode.
func TestSubmitJobMultipart(t *testing.T) {
	tmp := t.TempDir() + "/sop.pdf"
	if err := os.WriteFile(tmp, []byte("%PDF-1.4 test"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/jobs" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("not multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("no file part: %v", err)
		}
		file.Close()
		if header.Filename != "sop.pdf" {
			t.Errorf("file name = %q", header.Filename)
		}
		if got := r.FormValue("prompt"); got != "focus on procurement" {
			t.Errorf("prompt = %q", got)
		}
		json.NewEncoder(w).Encode(models.SubmitResponse{JobID: "job-42"})
	}))
	defer srv.Close()

	client := testClient(t, srv)
	id, err := client.SubmitJob(context.Background(), tmp, "focus on procurement")
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if id != "job-42" {
		t.Errorf("job ID = %q, expected 'job-42'", id)
	}
}

// TestSubmitJobEmptyJobID rejects a 2xx response without a job id.
func TestSubmitJobEmptyJobID(t *testing.T) {
	tmp := t.TempDir() + "/sop.pdf"
	if err := os.WriteFile(tmp, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := testClient(t, srv)
	if _, err := client.SubmitJob(context.Background(), tmp, ""); !errors.Is(err, ErrServer) {
		t.Errorf("expected ErrServer for missing job_id, got %v", err)
	}
}

// TestGetJobResultEnvelopes accepts both wrapped and unwrapped bodies.
func TestGetJobResultEnvelopes(t *testing.T) {
	bodies := map[string]string{
		"wrapped":   `{"result": {"detailed_entries": [{"Risk ID": "R-1"}], "summary_entries": []}}`,
		"unwrapped": `{"detailed_entries": [{"Risk ID": "R-1"}], "summary_entries": []}`,
	}

	for name, body := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/jobs/job-1/result" {
				t.Errorf("%s: unexpected path %s", name, r.URL.Path)
			}
			w.Write([]byte(body))
		}))

		client := testClient(t, srv)
		rs, err := client.GetJobResult(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("%s: GetJobResult failed: %v", name, err)
		}
		if len(rs.DetailedEntries) != 1 || rs.DetailedEntries[0].Field(2) != "R-1" {
			t.Errorf("%s: bad decode: %+v", name, rs)
		}
		srv.Close()
	}
}

// TestUpdateJobResult verifies the PUT body carries both sequences.
func TestUpdateJobResult(t *testing.T) {
	var got models.UpdateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" || r.URL.Path != "/api/jobs/job-1/result" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := testClient(t, srv)
	err := client.UpdateJobResult(context.Background(), "job-1", &models.UpdateRequest{
		DetailedEntries: []map[string]string{{"Risk ID": "R-1"}},
		SummaryEntries:  []map[string]string{},
	})
	if err != nil {
		t.Fatalf("UpdateJobResult failed: %v", err)
	}
	if len(got.DetailedEntries) != 1 || got.DetailedEntries[0]["Risk ID"] != "R-1" {
		t.Errorf("server saw wrong body: %+v", got)
	}
	if got.SummaryEntries == nil {
		t.Error("summary sequence missing from body")
	}
}
