package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"thoughtpost/pkg/config"
)

func testBus(t *testing.T, mutate func(*config.ChannelConfig)) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.ChannelConfig{
		RedisAddr:  mr.Addr(),
		Group:      "testgroup",
		Consumer:   "c1",
		MaxRetries: 2,
		RetryDelay: config.Duration(5 * time.Millisecond),
		Block:      config.Duration(20 * time.Millisecond),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	b, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// sink collects delivered messages and can fail the first n attempts of a
// given key.
type sink struct {
	mu       sync.Mutex
	got      []string
	failures map[string]int
}

func (s *sink) handler(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[key] > 0 {
		s.failures[key]--
		return errors.New("handler rejected message")
	}
	s.got = append(s.got, key+"="+string(payload))
	return nil
}

func (s *sink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

type msg struct {
	Value string `json:"value"`
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	b := testBus(t, nil)
	s := &sink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Subscribe(ctx, "t.stream", s.handler)
	}()

	if err := b.Publish(context.Background(), "t.stream", "k1", msg{Value: "hello"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := b.Publish(context.Background(), "t.stream", "k2", msg{Value: "world"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	waitFor(t, func() bool { return len(s.snapshot()) == 2 })
	got := s.snapshot()
	if got[0] != "k1={\"value\":\"hello\"}\n" || got[1] != "k2={\"value\":\"world\"}\n" {
		t.Fatalf("delivered = %q", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("subscriber did not stop on cancel")
	}
}

func TestRetryThenDeliver(t *testing.T) {
	b := testBus(t, nil)
	s := &sink{failures: map[string]int{"flaky": 1}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Subscribe(ctx, "t.retry", s.handler) }()

	if err := b.Publish(context.Background(), "t.retry", "flaky", msg{Value: "x"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// One failure, then success on the in-place retry.
	waitFor(t, func() bool { return len(s.snapshot()) == 1 })
}

func TestPoisonMessageIsSkipped(t *testing.T) {
	b := testBus(t, nil)
	s := &sink{failures: map[string]int{"poison": 100}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = b.Subscribe(ctx, "t.poison", s.handler) }()

	if err := b.Publish(context.Background(), "t.poison", "poison", msg{Value: "bad"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := b.Publish(context.Background(), "t.poison", "good", msg{Value: "ok"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	// The poison message must not wedge the stream.
	waitFor(t, func() bool {
		got := s.snapshot()
		return len(got) == 1 && got[0] == "good={\"value\":\"ok\"}\n"
	})
}

func TestPublishPayloadCeiling(t *testing.T) {
	b := testBus(t, func(cfg *config.ChannelConfig) {
		cfg.MaxPayload = config.SizeBytes(16)
	})

	err := b.Publish(context.Background(), "t.big", "k", msg{Value: "this is far too large for the ceiling"})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}

	if err := b.Publish(context.Background(), "t.big", "k", msg{Value: "ok"}); err != nil {
		t.Fatalf("small payload rejected: %v", err)
	}
}

func TestConnectFailsFast(t *testing.T) {
	_, err := Connect(context.Background(), config.ChannelConfig{RedisAddr: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected connection error")
	}
}
