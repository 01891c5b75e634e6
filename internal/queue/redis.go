package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/ocrcheck/internal/analyzer"
)

// DefaultStream is the stream OCR workers consume.
const DefaultStream = "jobs:ocr:needed"

// Job is the payload of one stream entry, stored as a single field {data: <json>}.
type Job struct {
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Rules       []string  `json:"rules,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Error       string    `json:"error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// RedisQueue appends every document that needs OCR to a Redis stream.
// Documents with a fingerprint are enqueued at most once per IdemTTL.
type RedisQueue struct {
	client      *redis.Client
	Stream      string
	IdemDoneKey string
	IdemTTL     time.Duration
	MaxLen      int64
}

func NewRedisQueue(client *redis.Client, stream string) *RedisQueue {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisQueue{
		client:      client,
		Stream:      stream,
		IdemDoneKey: "idem:ocr:queued:",
		IdemTTL:     7 * 24 * time.Hour,
		MaxLen:      100000,
	}
}

func (q *RedisQueue) Name() string { return "redis-queue" }

// Publish enqueues r when it requires OCR and is not already queued.
func (q *RedisQueue) Publish(ctx context.Context, r analyzer.Result) error {
	if !r.OCRRequired {
		return nil
	}
	idemKey := ""
	if r.Fingerprint != "" {
		idemKey = q.IdemDoneKey + r.Fingerprint
		fresh, err := q.client.SetNX(ctx, idemKey, 1, q.IdemTTL).Result()
		if err != nil {
			return fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			return nil
		}
	}
	payload, err := json.Marshal(NewJob(r, time.Now()))
	if err == nil {
		err = q.Enqueue(ctx, payload)
	}
	if err != nil && idemKey != "" {
		// Release the marker so a retry can enqueue the document.
		if derr := q.client.Del(context.WithoutCancel(ctx), idemKey).Err(); derr != nil {
			log.Warn().Err(derr).Str("key", idemKey).Msg("failed to release idempotency key")
		}
	}
	return err
}

// Enqueue adds a job to the stream as a single-field entry {data: <json>}.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) error {
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.Stream,
		MaxLen: q.MaxLen,
		Approx: true,
		Values: map[string]any{"data": string(payload)},
	}).Err()
}

// Depth returns the stream length.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.Stream).Result()
}

// NewJob builds the stream payload for r.
func NewJob(r analyzer.Result, at time.Time) Job {
	return Job{
		Path:        r.Path,
		Filename:    r.Filename,
		Rules:       r.Rules,
		Fingerprint: r.Fingerprint,
		Error:       r.Error,
		EnqueuedAt:  at.UTC(),
	}
}

// DecodeJob parses a stream entry written by Enqueue.
func DecodeJob(values map[string]any) (Job, error) {
	var raw []byte
	switch t := values["data"].(type) {
	case string:
		raw = []byte(t)
	case []byte:
		raw = t
	default:
		return Job{}, fmt.Errorf("stream entry has no data field")
	}
	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return Job{}, fmt.Errorf("decode job: %w", err)
	}
	return j, nil
}
