package session

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStore_GetUnknownSessionIsEmpty(t *testing.T) {
	s := NewMemoryStore(10)

	history, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %d entries", len(history))
	}
}

func TestMemoryStore_AppendPreservesOrder(t *testing.T) {
	s := NewMemoryStore(10)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		err := s.Append(context.Background(), "op-1:chat", Entry{
			Role:    "user",
			Content: fmt.Sprintf("message %d", i),
			At:      now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history, err := s.Get(context.Background(), "op-1:chat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(history))
	}
	for i, e := range history {
		if e.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("entry %d out of order: %q", i, e.Content)
		}
	}
}

func TestMemoryStore_HistoryCapDropsOldest(t *testing.T) {
	s := NewMemoryStore(3)

	for i := 0; i < 5; i++ {
		s.Append(context.Background(), "op-1:chat", Entry{Content: fmt.Sprintf("message %d", i)})
	}

	history, _ := s.Get(context.Background(), "op-1:chat")
	if len(history) != 3 {
		t.Fatalf("expected history capped at 3, got %d", len(history))
	}
	if history[0].Content != "message 2" {
		t.Errorf("expected oldest retained entry to be message 2, got %q", history[0].Content)
	}
}

func TestMemoryStore_SessionsAreIndependent(t *testing.T) {
	s := NewMemoryStore(10)

	s.Append(context.Background(), "op-1:chat", Entry{Content: "chat message"})
	s.Append(context.Background(), "op-1:dispatch", Entry{Content: "dispatch message"})

	chat, _ := s.Get(context.Background(), "op-1:chat")
	dispatch, _ := s.Get(context.Background(), "op-1:dispatch")

	if len(chat) != 1 || len(dispatch) != 1 {
		t.Fatalf("expected 1 entry each, got %d and %d", len(chat), len(dispatch))
	}
	if chat[0].Content == dispatch[0].Content {
		t.Error("sessions must not share history")
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(10)
	s.Append(context.Background(), "op-1:chat", Entry{Content: "original"})

	history, _ := s.Get(context.Background(), "op-1:chat")
	history[0].Content = "mutated"

	again, _ := s.Get(context.Background(), "op-1:chat")
	if again[0].Content != "original" {
		t.Error("Get must return a copy of the stored history")
	}
}
