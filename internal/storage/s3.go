package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ErrInvalidURI is returned for anything that is not s3://bucket[/prefix].
var ErrInvalidURI = errors.New("invalid s3 uri")

// Location is a bucket plus an optional key prefix.
type Location struct {
	Bucket string
	Prefix string
}

// ParseS3URI parses s3://bucket/prefix.
func ParseS3URI(uri string) (Location, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "s3" || u.Host == "" {
		return Location{}, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return Location{Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// Key joins name under the prefix.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

func (l Location) String() string {
	if l.Prefix == "" {
		return "s3://" + l.Bucket
	}
	return "s3://" + l.Bucket + "/" + l.Prefix
}

// Options configures AWS access. Empty credentials fall back to the default chain.
type Options struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Attempts        uint
	Delay           time.Duration
}

// LoadAWSConfig builds the SDK config, preferring static credentials when given.
func LoadAWSConfig(ctx context.Context, opts Options) (aws.Config, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// objectUploader is the part of manager.Uploader we use.
type objectUploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ReportUploader stores CSV reports under a bucket prefix.
type ReportUploader struct {
	uploader objectUploader
	loc      Location
	attempts uint
	delay    time.Duration
}

// NewReportUploader connects to S3 for the given s3:// URI.
func NewReportUploader(ctx context.Context, uri string, opts Options) (*ReportUploader, error) {
	loc, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadAWSConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	up := manager.NewUploader(s3.NewFromConfig(cfg))
	return newReportUploader(up, loc, opts), nil
}

func newReportUploader(up objectUploader, loc Location, opts Options) *ReportUploader {
	attempts := opts.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = time.Second
	}
	return &ReportUploader{uploader: up, loc: loc, attempts: attempts, delay: delay}
}

// Location returns where reports are written.
func (u *ReportUploader) Location() Location { return u.loc }

// UploadCSV stores data as <prefix>/<runID>.csv and returns its s3:// URI.
func (u *ReportUploader) UploadCSV(ctx context.Context, runID string, data []byte) (string, error) {
	key := u.loc.Key(runID + ".csv")
	err := retry.Do(
		func() error {
			_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(u.loc.Bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(data),
				ContentType: aws.String("text/csv"),
				Metadata:    map[string]string{"run-id": runID},
			})
			return err
		},
		retry.Context(ctx),
		retry.Attempts(u.attempts),
		retry.Delay(u.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Str("key", key).Msg("report upload failed, retrying")
		}),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	dest := "s3://" + u.loc.Bucket + "/" + key
	log.Info().Str("key", key).Int("size", len(data)).Msg("uploaded report to S3")
	return dest, nil
}
