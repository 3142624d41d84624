package controllers

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSETransportFramesEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := &sseTransport{w: rec, flusher: rec}

	if err := tr.SendEvent(nil, "update", `{"id":"1"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := "event: update\ndata: {\"id\":\"1\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("frame: want %q got %q", want, got)
	}
}

func TestSSETransportDiscardsWritesAfterClose(t *testing.T) {
	rec := httptest.NewRecorder()
	tr := &sseTransport{w: rec, flusher: rec}

	if err := tr.SendEvent(nil, "update", `{"id":"1"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	before := rec.Body.Len()

	if err := tr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	// A delivery that was already past its liveness check must not touch
	// the ResponseWriter once the handler has given it up.
	if err := tr.SendEvent(nil, "update", `{"id":"2"}`); err != nil {
		t.Fatalf("send after close: %v", err)
	}
	if err := tr.comment(":thump\n"); err != nil {
		t.Fatalf("comment after close: %v", err)
	}
	if rec.Body.Len() != before {
		t.Fatalf("write reached the response after close")
	}

	if !strings.Contains(rec.Body.String(), `"id":"1"`) {
		t.Fatalf("pre-close frame lost")
	}
}
