package export

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	lferrors "github.com/logflow/procmap/pkg/errors"
	"github.com/logflow/procmap/pkg/pipeline"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	// Region is the AWS region (e.g., "us-east-1")
	Region string

	// Bucket receives the uploaded files
	Bucket string

	// Prefix is prepended to every object key
	Prefix string

	// Endpoint overrides the default S3 endpoint (for S3-compatible services)
	Endpoint string

	// UsePathStyle forces path-style addressing (for MinIO, LocalStack)
	UsePathStyle bool

	// Credentials (optional - uses default chain if not provided)
	AccessKeyID     string
	SecretAccessKey string

	// UploadTimeout bounds each object upload
	UploadTimeout time.Duration
}

// ObjectPutter is the subset of the S3 API the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// S3Publisher uploads the files written by earlier file exporters under
// <prefix>/<run-id>/<file>. It must run after those exporters.
type S3Publisher struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	timeout time.Duration
	sources []FileExporter
}

// NewS3Publisher creates a publisher for the files of sources.
func NewS3Publisher(client ObjectPutter, cfg S3Config, sources ...FileExporter) *S3Publisher {
	return &S3Publisher{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: cfg.UploadTimeout,
		sources: sources,
	}
}

func (p *S3Publisher) Name() string { return "s3" }

// Key returns the object key for a file of a run.
func (p *S3Publisher) Key(runID, file string) string {
	return path.Join(p.prefix, runID, file)
}

// Export implements pipeline.Exporter.
func (p *S3Publisher) Export(ctx context.Context, res *pipeline.Result) error {
	for _, src := range p.sources {
		for _, name := range src.Files() {
			if err := p.upload(ctx, filepath.Join(src.Dir(), name), p.Key(res.RunID, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *S3Publisher) upload(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return lferrors.Wrap(err, lferrors.CodePublishFailed, "open export").WithContext("path", file)
	}
	defer f.Close()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return lferrors.Wrap(err, lferrors.CodePublishFailed, "upload to s3").
			WithContext("bucket", p.bucket).
			WithContext("key", key)
	}
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".txt", ".dot":
		return "text/plain; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
