// Package search runs synchronous request/response exchanges with the
// agent over the async channel. Callers block on a correlation entry until
// the matching response arrives or the deadline passes; the pending table
// is bounded and swept so abandoned entries cannot accumulate.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"thoughtpost/pkg/channel"
	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/telemetry"
	"thoughtpost/pkg/utils"
)

// Request types understood by the agent.
const (
	TypeGenerateCriteria = "GENERATE_CRITERIA"
	TypeExecuteSearch    = "EXECUTE_SEARCH"
)

var (
	// ErrTimeout means the agent did not answer within the deadline. The
	// correlation entry is gone; a late response is dropped.
	ErrTimeout = errors.New("search request timed out")
	// ErrTooManyPending means the pending table is at capacity.
	ErrTooManyPending = errors.New("too many pending search requests")
)

// Request is sent to the agent on the search request stream.
type Request struct {
	CorrelationID string `json:"correlation_id"`
	Type          string `json:"type"`
	Category      string `json:"category,omitempty"`
	Description   string `json:"description,omitempty"`
	SearchString  string `json:"search_string,omitempty"`
}

// Response comes back on the search response stream.
type Response struct {
	CorrelationID string `json:"correlation_id"`
	Result        string `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Sender is the publish side of the channel bus.
type Sender interface {
	Publish(ctx context.Context, stream, key string, v any) error
}

type waiter struct {
	ch       chan Response
	deadline time.Time
}

// Service correlates search requests with their responses.
type Service struct {
	bus    Sender
	stream string

	criteriaTimeout time.Duration
	executeTimeout  time.Duration
	maxPending      int

	mu      sync.Mutex
	pending map[string]*waiter
}

// New builds the correlation service. Zero config values fall back to a
// 30s criteria timeout, 60s execute timeout and 1024 pending entries.
func New(bus Sender, stream string, cfg config.SearchConfig) *Service {
	s := &Service{
		bus:             bus,
		stream:          stream,
		criteriaTimeout: time.Duration(cfg.CriteriaTimeout),
		executeTimeout:  time.Duration(cfg.ExecuteTimeout),
		maxPending:      cfg.MaxPending,
		pending:         make(map[string]*waiter),
	}
	if s.criteriaTimeout <= 0 {
		s.criteriaTimeout = 30 * time.Second
	}
	if s.executeTimeout <= 0 {
		s.executeTimeout = 60 * time.Second
	}
	if s.maxPending <= 0 {
		s.maxPending = 1024
	}
	return s
}

// StartSweeper expires abandoned correlation entries in the background.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.sweep(time.Now())
			}
		}
	}()
}

// GenerateCriteria asks the agent to turn a category and description into
// a search string.
func (s *Service) GenerateCriteria(ctx context.Context, category, description string) (string, error) {
	req := Request{
		CorrelationID: utils.GenID(),
		Type:          TypeGenerateCriteria,
		Category:      category,
		Description:   description,
	}
	return s.exchange(ctx, req, s.criteriaTimeout)
}

// ExecuteSearch runs a previously generated search string.
func (s *Service) ExecuteSearch(ctx context.Context, searchString string) (string, error) {
	req := Request{
		CorrelationID: utils.GenID(),
		Type:          TypeExecuteSearch,
		SearchString:  searchString,
	}
	return s.exchange(ctx, req, s.executeTimeout)
}

// ResponseHandler completes the waiter matching each incoming response.
// Responses with no waiter (late or unknown) are dropped without error so
// the channel acks them.
func (s *Service) ResponseHandler() channel.Handler {
	return func(ctx context.Context, key string, payload []byte) error {
		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			return fmt.Errorf("undecodable search response: %w", err)
		}
		if resp.CorrelationID == "" {
			return fmt.Errorf("search response missing correlation_id")
		}
		if !s.complete(resp) {
			logger.Warn("search_response_unmatched", "correlation", resp.CorrelationID)
		}
		return nil
	}
}

func (s *Service) exchange(ctx context.Context, req Request, timeout time.Duration) (string, error) {
	w, err := s.register(req.CorrelationID, timeout)
	if err != nil {
		return "", err
	}
	defer s.unregister(req.CorrelationID)

	if err := s.bus.Publish(ctx, s.stream, req.CorrelationID, req); err != nil {
		return "", fmt.Errorf("failed to send search request: %w", err)
	}
	logger.Info("search_request_sent", "correlation", req.CorrelationID, "type", req.Type)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-w.ch:
		if resp.Error != "" {
			return "", fmt.Errorf("agent search error: %s", resp.Error)
		}
		return resp.Result, nil
	case <-timer.C:
		return "", fmt.Errorf("%w after %s (type %s)", ErrTimeout, timeout, req.Type)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Service) register(id string, timeout time.Duration) (*waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= s.maxPending {
		return nil, ErrTooManyPending
	}
	w := &waiter{ch: make(chan Response, 1), deadline: time.Now().Add(timeout)}
	s.pending[id] = w
	telemetry.SearchPendingSet(len(s.pending))
	return w, nil
}

func (s *Service) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	telemetry.SearchPendingSet(len(s.pending))
}

// complete delivers a response to its waiter; reports whether one existed.
func (s *Service) complete(resp Response) bool {
	s.mu.Lock()
	w, ok := s.pending[resp.CorrelationID]
	if ok {
		delete(s.pending, resp.CorrelationID)
	}
	telemetry.SearchPendingSet(len(s.pending))
	s.mu.Unlock()
	if !ok {
		return false
	}
	w.ch <- resp
	return true
}

func (s *Service) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, w := range s.pending {
		if now.After(w.deadline) {
			delete(s.pending, id)
			removed++
		}
	}
	if removed > 0 {
		telemetry.SearchPendingSet(len(s.pending))
		logger.Info("search_pending_swept", "removed", removed, "remaining", len(s.pending))
	}
}

// Pending reports the current size of the correlation table.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
