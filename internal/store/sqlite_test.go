package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/civicgo/kaiwa/internal/models"
)

func newTestExampleStore(t *testing.T) *ExampleStore {
	t.Helper()
	s, err := NewExampleStore(filepath.Join(t.TempDir(), "examples.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExampleStore_AddList(t *testing.T) {
	s := newTestExampleStore(t)
	ctx := context.Background()

	examples := []models.TrainingExample{
		{Pattern: "hello", Intent: "greeting"},
		{Pattern: "check my balance", Intent: "balance"},
	}
	if err := s.AddExamples(ctx, examples); err != nil {
		t.Fatal(err)
	}
	got, err := s.ListExamples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d examples, want 2", len(got))
	}
	if got[0].Pattern != "hello" || got[0].Intent != "greeting" {
		t.Errorf("first example = %+v", got[0])
	}

	n, err := s.CountExamples(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestExampleStore_DuplicatesIgnored(t *testing.T) {
	s := newTestExampleStore(t)
	ctx := context.Background()
	ex := []models.TrainingExample{{Pattern: "hi", Intent: "greeting"}}
	if err := s.AddExamples(ctx, ex); err != nil {
		t.Fatal(err)
	}
	if err := s.AddExamples(ctx, ex); err != nil {
		t.Fatal(err)
	}
	n, _ := s.CountExamples(ctx)
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestExampleStore_Responses(t *testing.T) {
	s := newTestExampleStore(t)
	ctx := context.Background()

	if err := s.SetResponses(ctx, "greeting", []string{"Hello!", "Hi there."}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetResponses(ctx, "greeting", []string{"Welcome."}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Responses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got["greeting"]) != 1 || got["greeting"][0] != "Welcome." {
		t.Errorf("responses = %v", got["greeting"])
	}
}
