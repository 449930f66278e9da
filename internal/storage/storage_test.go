package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type testDoc struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
}

func TestPutAndGet(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	doc := testDoc{ID: "abc", Value: 42}
	if err := s.Put(ctx, []string{"thread", "abc"}, doc); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got testDoc
	if err := s.Get(ctx, []string{"thread", "abc"}, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != doc {
		t.Errorf("got %+v, want %+v", got, doc)
	}
}

func TestGetNotFound(t *testing.T) {
	s := New(t.TempDir())

	var doc testDoc
	if err := s.Get(context.Background(), []string{"missing"}, &doc); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutIsAtomic(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	if err := s.Put(ctx, []string{"doc"}, testDoc{ID: "x"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "doc.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should not remain after Put")
	}
}

func TestConcurrentPuts(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := s.Put(ctx, []string{"shared"}, testDoc{ID: "shared", Value: n}); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var got testDoc
	if err := s.Get(ctx, []string{"shared"}, &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != "shared" {
		t.Errorf("document corrupted: %+v", got)
	}
}

func TestListSorted(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"b", "a", "c"} {
		if err := s.Put(ctx, []string{"turn", "thr1", id}, testDoc{ID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := s.List(ctx, []string{"turn", "thr1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[2] != "c" {
		t.Errorf("unexpected keys: %v", keys)
	}

	empty, err := s.List(ctx, []string{"turn", "none"})
	if err != nil || empty != nil {
		t.Errorf("missing dir should list empty, got %v, %v", empty, err)
	}
}

func TestMove(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	if err := s.Put(ctx, []string{"thread", "t1"}, testDoc{ID: "t1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Move(ctx, []string{"thread", "t1"}, []string{"archive", "t1"}); err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	var doc testDoc
	if err := s.Get(ctx, []string{"thread", "t1"}, &doc); err != ErrNotFound {
		t.Error("source should be gone after move")
	}
	if err := s.Get(ctx, []string{"archive", "t1"}, &doc); err != nil {
		t.Errorf("destination should exist after move: %v", err)
	}

	if err := s.Move(ctx, []string{"thread", "absent"}, []string{"archive", "absent"}); err != ErrNotFound {
		t.Errorf("moving a missing document should be ErrNotFound, got %v", err)
	}
}
