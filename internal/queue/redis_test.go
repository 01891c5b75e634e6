package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/ocrcheck/internal/analyzer"
	"github.com/local/ocrcheck/internal/store"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	j := NewJob(analyzer.Result{
		Filename: "scan.pdf", Path: "/in/scan.pdf", OCRRequired: true,
		Rules: []string{"no_text_layer"},
	}, at)
	b, err := json.Marshal(j)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["path"] != "/in/scan.pdf" || m["filename"] != "scan.pdf" || m["enqueued_at"] != "2026-03-01T11:00:00Z" {
		t.Errorf("payload = %s", b)
	}
	if _, ok := m["error"]; ok {
		t.Errorf("empty error serialized: %s", b)
	}
}

func TestDecodeJob(t *testing.T) {
	t.Parallel()

	j, err := DecodeJob(map[string]any{"data": `{"path":"/a.pdf","filename":"a.pdf","rules":["x"]}`})
	if err != nil || j.Path != "/a.pdf" || len(j.Rules) != 1 {
		t.Errorf("DecodeJob = %+v, %v", j, err)
	}
	if _, err := DecodeJob(map[string]any{}); err == nil {
		t.Error("expected error for missing data field")
	}
	if _, err := DecodeJob(map[string]any{"data": []byte("{")}); err == nil {
		t.Error("expected error for bad json")
	}
}

func TestPublishSkipsNotRequired(t *testing.T) {
	t.Parallel()

	// A nil client would panic if Publish touched Redis.
	q := NewRedisQueue(nil, "")
	if q.Stream != DefaultStream {
		t.Errorf("stream = %s", q.Stream)
	}
	if err := q.Publish(context.Background(), analyzer.Result{Filename: "ok.pdf"}); err != nil {
		t.Error(err)
	}
}

// memRedis answers the few commands the queue issues without a server.
type memRedis struct {
	mu       sync.Mutex
	keys     map[string]bool
	entries  []string
	failXAdd int
}

func (m *memRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (m *memRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (m *memRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		args := cmd.Args()
		switch cmd.Name() {
		case "set":
			key := fmt.Sprint(args[1])
			c := cmd.(*redis.BoolCmd)
			if m.keys[key] {
				c.SetVal(false)
				return nil
			}
			m.keys[key] = true
			c.SetVal(true)
		case "del":
			var n int64
			for _, a := range args[1:] {
				if k := fmt.Sprint(a); m.keys[k] {
					delete(m.keys, k)
					n++
				}
			}
			cmd.(*redis.IntCmd).SetVal(n)
		case "xadd":
			if m.failXAdd > 0 {
				m.failXAdd--
				err := errors.New("LOADING redis is loading")
				cmd.SetErr(err)
				return err
			}
			id := fmt.Sprintf("%d-0", len(m.entries)+1)
			m.entries = append(m.entries, id)
			cmd.(*redis.StringCmd).SetVal(id)
		default:
			err := fmt.Errorf("unexpected command %s", cmd.Name())
			cmd.SetErr(err)
			return err
		}
		return nil
	}
}

func memClient(t *testing.T, m *memRedis) *redis.Client {
	t.Helper()
	m.keys = map[string]bool{}
	c := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	c.AddHook(m)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPublishRetriesAfterFailedAppend(t *testing.T) {
	t.Parallel()

	m := &memRedis{failXAdd: 1}
	q := NewRedisQueue(memClient(t, m), "")
	r := analyzer.Result{Filename: "scan.pdf", OCRRequired: true, Fingerprint: "abc"}
	ctx := context.Background()

	if err := q.Publish(ctx, r); err == nil {
		t.Fatal("expected the failed append to surface")
	}
	if m.keys[q.IdemDoneKey+"abc"] {
		t.Fatal("idempotency key kept after failed append")
	}
	if err := q.Publish(ctx, r); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(m.entries) != 1 {
		t.Fatalf("stream has %d entries, want 1", len(m.entries))
	}
	if err := q.Publish(ctx, r); err != nil {
		t.Fatal(err)
	}
	if len(m.entries) != 1 {
		t.Errorf("duplicate fingerprint appended again: %d entries", len(m.entries))
	}
}

func TestPublishWithoutFingerprint(t *testing.T) {
	t.Parallel()

	m := &memRedis{}
	q := NewRedisQueue(memClient(t, m), "")
	r := analyzer.Result{Filename: "broken.pdf", OCRRequired: true, Error: "document open failed"}
	for i := 0; i < 2; i++ {
		if err := q.Publish(context.Background(), r); err != nil {
			t.Fatal(err)
		}
	}
	if len(m.entries) != 2 || len(m.keys) != 0 {
		t.Errorf("entries = %d, keys = %v", len(m.entries), m.keys)
	}
}

func TestPublishRedis(t *testing.T) {
	url := os.Getenv("OCRCHECK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("OCRCHECK_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := store.Connect(ctx, url)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	stream := fmt.Sprintf("test:ocr:%d", time.Now().UnixNano())
	q := NewRedisQueue(c, stream)
	defer c.Del(ctx, stream)

	r := analyzer.Result{Filename: "a.pdf", OCRRequired: true, Fingerprint: stream}
	defer c.Del(ctx, q.IdemDoneKey+stream)
	for i := 0; i < 2; i++ {
		if err := q.Publish(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if n, err := q.Depth(ctx); err != nil || n != 1 {
		t.Errorf("Depth = %d, %v; duplicate fingerprint should enqueue once", n, err)
	}
	msgs, err := c.XRange(ctx, stream, "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("XRange = %v, %v", msgs, err)
	}
	j, err := DecodeJob(msgs[0].Values)
	if err != nil || j.Filename != "a.pdf" {
		t.Errorf("job = %+v, %v", j, err)
	}
}
