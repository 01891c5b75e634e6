package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/ocrcheck/internal/analyzer"
)

// DefaultTTL is how long a stored result lives.
const DefaultTTL = 7 * 24 * time.Hour

// ResultStore keeps each analysis result as a Redis hash under ocr:result:<id>.
type ResultStore struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultStore{client: client, keyNS: "ocr:result", ttl: ttl}
}

func (s *ResultStore) Name() string { return "redis-results" }

// Key is keyed by content fingerprint when known so renamed copies share a record.
func (s *ResultStore) Key(r analyzer.Result) string {
	id := r.Fingerprint
	if id == "" {
		id = r.Filename
	}
	return fmt.Sprintf("%s:%s", s.keyNS, id)
}

// Publish stores r and refreshes its TTL.
func (s *ResultStore) Publish(ctx context.Context, r analyzer.Result) error {
	key := s.Key(r)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, toHash(r, time.Now()))
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store result %s: %w", key, err)
	}
	return nil
}

// Get loads the result stored under key. The bool is false when nothing is stored.
func (s *ResultStore) Get(ctx context.Context, key string) (analyzer.Result, bool, error) {
	res, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return analyzer.Result{}, false, err
	}
	if len(res) == 0 {
		return analyzer.Result{}, false, nil
	}
	return fromHash(res), true, nil
}

func toHash(r analyzer.Result, at time.Time) map[string]interface{} {
	m := map[string]interface{}{
		"filename":          r.Filename,
		"path":              r.Path,
		"has_text_layer":    strconv.FormatBool(r.HasTextLayer),
		"text_pages_ratio":  strconv.FormatFloat(r.TextPagesRatio, 'g', -1, 64),
		"avg_text_density":  strconv.FormatFloat(r.AvgTextDensity, 'g', -1, 64),
		"ocr_required":      strconv.FormatBool(r.OCRRequired),
		"file_size_mb":      strconv.FormatFloat(r.FileSizeMB, 'g', -1, 64),
		"total_pages":       r.TotalPages,
		"pages_with_text":   r.PagesWithText,
		"avg_text_per_page": strconv.FormatFloat(r.AvgTextPerPage, 'g', -1, 64),
		"density_skipped":   strconv.FormatBool(r.DensitySkipped),
		"analyzed_at":       at.UTC().Format(time.RFC3339Nano),
	}
	if len(r.Rules) > 0 {
		b, _ := json.Marshal(r.Rules)
		m["rules"] = string(b)
	}
	if r.Fingerprint != "" {
		m["fingerprint"] = r.Fingerprint
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	return m
}

// fromHash ignores malformed fields; they decode to zero values.
func fromHash(h map[string]string) analyzer.Result {
	r := analyzer.Result{
		Filename:    h["filename"],
		Path:        h["path"],
		Fingerprint: h["fingerprint"],
		Error:       h["error"],
	}
	r.HasTextLayer, _ = strconv.ParseBool(h["has_text_layer"])
	r.OCRRequired, _ = strconv.ParseBool(h["ocr_required"])
	r.DensitySkipped, _ = strconv.ParseBool(h["density_skipped"])
	r.TextPagesRatio, _ = strconv.ParseFloat(h["text_pages_ratio"], 64)
	r.AvgTextDensity, _ = strconv.ParseFloat(h["avg_text_density"], 64)
	r.FileSizeMB, _ = strconv.ParseFloat(h["file_size_mb"], 64)
	r.AvgTextPerPage, _ = strconv.ParseFloat(h["avg_text_per_page"], 64)
	r.TotalPages, _ = strconv.Atoi(h["total_pages"])
	r.PagesWithText, _ = strconv.Atoi(h["pages_with_text"])
	if v := h["rules"]; v != "" {
		_ = json.Unmarshal([]byte(v), &r.Rules)
	}
	return r
}
