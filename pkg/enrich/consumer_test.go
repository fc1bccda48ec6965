package enrich

import (
	"context"
	"encoding/json"
	"testing"
)

type captureSink struct {
	got []*Response
	err error
}

func (c *captureSink) HandleAgentResponse(ctx context.Context, msg *Response) error {
	c.got = append(c.got, msg)
	return c.err
}

func TestResponseHandler(t *testing.T) {
	t.Run("valid response reaches sink", func(t *testing.T) {
		sink := &captureSink{}
		h := ResponseHandler(sink)
		payload, _ := json.Marshal(Response{RequestID: "p1", Status: ResponseCompleted})
		if err := h(context.Background(), "p1", payload); err != nil {
			t.Fatalf("handler failed: %v", err)
		}
		if len(sink.got) != 1 || sink.got[0].RequestID != "p1" {
			t.Fatalf("sink got %+v", sink.got)
		}
	})

	t.Run("malformed json is an error", func(t *testing.T) {
		sink := &captureSink{}
		h := ResponseHandler(sink)
		if err := h(context.Background(), "p1", []byte("{not json")); err == nil {
			t.Fatal("expected error for malformed payload")
		}
		if len(sink.got) != 0 {
			t.Fatal("sink must not see malformed payloads")
		}
	})

	t.Run("missing request id is an error", func(t *testing.T) {
		sink := &captureSink{}
		h := ResponseHandler(sink)
		payload, _ := json.Marshal(Response{Status: ResponseCompleted})
		if err := h(context.Background(), "", payload); err == nil {
			t.Fatal("expected error for missing request_id")
		}
	})
}
