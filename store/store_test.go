package store

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Load(ctx, "notes.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v\n", err)
	}

	if err := s.Save(ctx, "notes.txt", "hello"); err != nil {
		t.Fatalf("error: %v\n", err)
	}
	if err := s.Save(ctx, "notes.txt", "hello world"); err != nil {
		t.Fatalf("error: %v\n", err)
	}

	got, err := s.Load(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("error: %v\n", err)
	}
	if got != "hello world" {
		t.Errorf("got = %q, expected = %q\n", got, "hello world")
	}
}

func TestRedisStoreKey(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	tests := []struct {
		prefix   string
		path     string
		expected string
	}{
		{prefix: "", path: "notes.txt", expected: "otpad:doc:notes.txt"},
		{prefix: "team:", path: "src/main.go", expected: "team:src/main.go"},
	}

	for _, tc := range tests {
		got := NewRedisStore(client, tc.prefix).key(tc.path)
		if got != tc.expected {
			t.Errorf("got = %q, expected = %q\n", got, tc.expected)
		}
	}
}
