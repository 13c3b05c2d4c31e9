package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/racmlabs/racm-int/internal/logging"
)

// Destination is a parsed publish target: s3://bucket/prefix or
// azblob://container/prefix.
type Destination struct {
	Scheme    string
	Container string
	Prefix    string
}

// ErrBadDestination indicates a publish URI that is not s3:// or azblob://.
var ErrBadDestination = errors.New("publish destination must be s3://bucket[/prefix] or azblob://container[/prefix]")

// ParseDestination splits a publish URI into scheme, container and prefix.
func ParseDestination(uri string) (Destination, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || (scheme != "s3" && scheme != "azblob") {
		return Destination{}, ErrBadDestination
	}
	container, prefix, _ := strings.Cut(rest, "/")
	if container == "" {
		return Destination{}, ErrBadDestination
	}
	return Destination{
		Scheme:    scheme,
		Container: container,
		Prefix:    strings.Trim(prefix, "/"),
	}, nil
}

// Key returns the object key for a local file under this destination's
// prefix.
func (d Destination) Key(localPath string) string {
	return path.Join(d.Prefix, filepath.Base(localPath))
}

// PublishOptions carries provider settings that cannot come from the URI.
// AWS fields fall back to the environment and shared config when empty.
// AzureServiceURL is the storage account endpoint, usually carrying a SAS
// token.
type PublishOptions struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AzureServiceURL string

	// HTTPClient, when set, is used as the SDK transport so uploads go
	// through the same proxy configuration as API calls.
	HTTPClient *http.Client
}

// Publish uploads a local export artifact to the parsed destination.
func Publish(ctx context.Context, log *logging.Logger, dest Destination, localPath string, opts PublishOptions) error {
	switch dest.Scheme {
	case "s3":
		return publishS3(ctx, log, dest, localPath, opts)
	case "azblob":
		return publishAzure(ctx, log, dest, localPath, opts)
	default:
		return ErrBadDestination
	}
}

func publishS3(ctx context.Context, log *logging.Logger, dest Destination, localPath string, opts PublishOptions) error {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, awsconfig.WithHTTPClient(opts.HTTPClient))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg)

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	key := dest.Key(localPath)
	log.Debug().Str("file", localPath).Msgf("Uploading to s3://%s/%s", dest.Container, key)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(dest.Container),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Msgf("Published to s3://%s/%s", dest.Container, key)
	return nil
}

func publishAzure(ctx context.Context, log *logging.Logger, dest Destination, localPath string, opts PublishOptions) error {
	serviceURL := opts.AzureServiceURL
	if serviceURL == "" {
		serviceURL = os.Getenv("RACM_AZURE_SERVICE_URL")
	}
	if serviceURL == "" {
		return errors.New("Azure publish requires --azure-url or RACM_AZURE_SERVICE_URL (account endpoint with SAS token)")
	}

	var clientOpts *azblob.ClientOptions
	if opts.HTTPClient != nil {
		clientOpts = &azblob.ClientOptions{
			ClientOptions: azcore.ClientOptions{Transport: opts.HTTPClient},
		}
	}
	client, err := azblob.NewClientWithNoCredential(serviceURL, clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create Azure blob client: %w", err)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	key := dest.Key(localPath)
	log.Debug().Str("file", localPath).Msgf("Uploading to azblob://%s/%s", dest.Container, key)
	if _, err := client.UploadFile(ctx, dest.Container, key, f, nil); err != nil {
		return fmt.Errorf("failed to upload to Azure blob storage: %w", err)
	}
	log.Info().Msgf("Published to azblob://%s/%s", dest.Container, key)
	return nil
}
