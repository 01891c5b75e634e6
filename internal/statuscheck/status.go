package statuscheck

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/local/ocrcheck/internal/raster"
)

// RedisPinger models the minimal Redis capability we need for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to RedisPinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BucketHeader is the S3 call used to verify the report bucket.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Checker aggregates health checks for the tools and services a scan uses.
type Checker struct {
	backend  raster.Backend
	redis    RedisPinger
	redisErr error
	s3       BucketHeader
	s3Bucket string
	lookPath func(string) (string, error)
}

// Options configures the Checker.
type Options struct {
	Backend  raster.Backend
	Redis    RedisPinger
	RedisErr error // connection error when the client could not be built
	S3       BucketHeader
	S3Bucket string
	LookPath func(string) (string, error)
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Backend  string   `json:"backend"`
	Raster   Status   `json:"raster"`
	Pdftoppm Status   `json:"pdftoppm"`
	Mutool   Status   `json:"mutool"`
	Redis    Status   `json:"redis"`
	S3       Status   `json:"s3"`
	Warnings []string `json:"warnings,omitempty"`
}

// Ready reports whether visual density can be measured.
func (s Summary) Ready() bool { return s.Raster.OK }

// WarnNoBackend is shown when every document would be flagged by low_visual_density.
const WarnNoBackend = "no raster backend available: visual density is 0 for every document, so every document is reported as requiring OCR"

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	lp := opts.LookPath
	if lp == nil {
		lp = exec.LookPath
	}
	backend := opts.Backend
	if backend == nil {
		backend = raster.None{}
	}
	return &Checker{
		backend:  backend,
		redis:    opts.Redis,
		redisErr: opts.RedisErr,
		s3:       opts.S3,
		s3Bucket: opts.S3Bucket,
		lookPath: lp,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Backend:  c.backend.Name(),
		Raster:   c.checkRaster(),
		Pdftoppm: c.checkBinary("pdftoppm"),
		Mutool:   c.checkBinary("mutool"),
		Redis:    c.checkRedis(ctx),
		S3:       c.checkS3(ctx),
	}
	if !s.Raster.OK {
		s.Warnings = append(s.Warnings, WarnNoBackend)
	}
	return s
}

func (c *Checker) checkRaster() Status {
	if !c.backend.Available() {
		return Status{OK: false, Message: "Backend " + c.backend.Name() + " unavailable"}
	}
	return Status{OK: true, Message: "Using " + c.backend.Name()}
}

func (c *Checker) checkBinary(name string) Status {
	p, err := c.lookPath(name)
	if err != nil {
		return Status{OK: false, Message: "Binary not found"}
	}
	return Status{OK: true, Message: p}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redisErr != nil {
		return Status{OK: false, Message: trimError(c.redisErr)}
	}
	if c.redis == nil {
		return Status{OK: false, Message: "Not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkS3(ctx context.Context) Status {
	if c.s3Bucket == "" {
		return Status{OK: false, Message: "Bucket not configured"}
	}
	if c.s3 == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &c.s3Bucket}); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
