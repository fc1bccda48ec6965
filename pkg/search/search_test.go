package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"thoughtpost/pkg/config"
)

// busRecorder captures published requests and can answer them through a
// wired-in handler, simulating the agent on the other side of the bus.
type busRecorder struct {
	mu   sync.Mutex
	reqs []Request

	// respond, when set, is invoked with each captured request.
	respond func(Request)
	err     error
}

func (b *busRecorder) Publish(ctx context.Context, stream, key string, v any) error {
	if b.err != nil {
		return b.err
	}
	req, ok := v.(Request)
	if !ok {
		return errors.New("unexpected payload type")
	}
	b.mu.Lock()
	b.reqs = append(b.reqs, req)
	b.mu.Unlock()
	if b.respond != nil {
		go b.respond(req)
	}
	return nil
}

func (b *busRecorder) last() Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reqs[len(b.reqs)-1]
}

func answer(svc *Service, resp Response) error {
	payload, _ := json.Marshal(resp)
	return svc.ResponseHandler()(context.Background(), resp.CorrelationID, payload)
}

func TestGenerateCriteriaRoundtrip(t *testing.T) {
	bus := &busRecorder{}
	svc := New(bus, "search.requests", config.SearchConfig{})
	bus.respond = func(req Request) {
		_ = answer(svc, Response{CorrelationID: req.CorrelationID, Result: "golang AND infra"})
	}

	result, err := svc.GenerateCriteria(context.Background(), "tech", "posts about infrastructure")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result != "golang AND infra" {
		t.Fatalf("result = %q", result)
	}

	req := bus.last()
	if req.Type != TypeGenerateCriteria || req.Category != "tech" || req.Description != "posts about infrastructure" {
		t.Fatalf("request = %+v", req)
	}
	if req.CorrelationID == "" {
		t.Fatal("correlation id must be assigned")
	}
	if svc.Pending() != 0 {
		t.Fatalf("pending = %d after completion", svc.Pending())
	}
}

func TestExecuteSearchForwardsAgentError(t *testing.T) {
	bus := &busRecorder{}
	svc := New(bus, "search.requests", config.SearchConfig{})
	bus.respond = func(req Request) {
		_ = answer(svc, Response{CorrelationID: req.CorrelationID, Error: "index unavailable"})
	}

	_, err := svc.ExecuteSearch(context.Background(), "golang AND infra")
	if err == nil || !strings.Contains(err.Error(), "index unavailable") {
		t.Fatalf("agent error not surfaced: %v", err)
	}
	if bus.last().Type != TypeExecuteSearch {
		t.Fatalf("request type = %s", bus.last().Type)
	}
}

func TestExchangeTimesOut(t *testing.T) {
	bus := &busRecorder{} // never responds
	svc := New(bus, "search.requests", config.SearchConfig{
		CriteriaTimeout: config.Duration(10 * time.Millisecond),
	})

	_, err := svc.GenerateCriteria(context.Background(), "tech", "whatever")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if svc.Pending() != 0 {
		t.Fatal("timed out waiter must be unregistered")
	}
}

func TestExchangeHonorsContextCancel(t *testing.T) {
	bus := &busRecorder{}
	svc := New(bus, "search.requests", config.SearchConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.GenerateCriteria(ctx, "tech", "whatever")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPendingTableCap(t *testing.T) {
	bus := &busRecorder{}
	svc := New(bus, "search.requests", config.SearchConfig{MaxPending: 1})

	if _, err := svc.register("a", time.Minute); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := svc.register("b", time.Minute); !errors.Is(err, ErrTooManyPending) {
		t.Fatalf("expected ErrTooManyPending, got %v", err)
	}
	svc.unregister("a")
	if _, err := svc.register("b", time.Minute); err != nil {
		t.Fatalf("register after release failed: %v", err)
	}
}

func TestSweepDropsExpiredWaiters(t *testing.T) {
	svc := New(&busRecorder{}, "search.requests", config.SearchConfig{})

	if _, err := svc.register("old", 10*time.Millisecond); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := svc.register("fresh", time.Minute); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	svc.sweep(time.Now().Add(time.Second))
	if svc.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", svc.Pending())
	}
	if svc.complete(Response{CorrelationID: "old"}) {
		t.Fatal("expired waiter must be gone")
	}
	if !svc.complete(Response{CorrelationID: "fresh"}) {
		t.Fatal("fresh waiter must survive the sweep")
	}
}

func TestResponseHandlerValidation(t *testing.T) {
	svc := New(&busRecorder{}, "search.requests", config.SearchConfig{})
	h := svc.ResponseHandler()

	if err := h(context.Background(), "", []byte("{not json")); err == nil {
		t.Fatal("malformed payload must error")
	}
	if err := h(context.Background(), "", []byte(`{"result":"x"}`)); err == nil {
		t.Fatal("missing correlation_id must error")
	}
	// Unmatched but well-formed responses are dropped, not retried.
	if err := h(context.Background(), "ghost", []byte(`{"correlation_id":"ghost"}`)); err != nil {
		t.Fatalf("unmatched response must not error: %v", err)
	}
}
