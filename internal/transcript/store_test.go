package transcript

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFileStore_SaveAndLoad(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	in := &Transcript{
		JobID:           "abc123",
		Title:           "Intro to Graphs",
		DurationSeconds: 240.5,
		FullText:        "hello world",
		Segments: []Segment{
			{ID: 0, Start: 0, End: 5.5, Text: "hello"},
			{ID: 1, Start: 5.5, End: 10, Text: "world"},
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load(ctx, "abc123")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if out.FullText != in.FullText {
		t.Errorf("FullText = %q, want %q", out.FullText, in.FullText)
	}
	if len(out.Segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(out.Segments))
	}
	if out.Segments[1].Start != 5.5 {
		t.Errorf("segment start = %v, want 5.5", out.Segments[1].Start)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	first := &Transcript{JobID: "j", FullText: "first"}
	second := &Transcript{JobID: "j", FullText: "second"}

	if err := store.Save(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	out, err := store.Load(ctx, "j")
	if err != nil {
		t.Fatal(err)
	}
	if out.FullText != "second" {
		t.Errorf("FullText = %q, want resubmission to overwrite", out.FullText)
	}
}

func TestFileStore_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(context.Background(), "nope"); err != nil {
		t.Errorf("Delete of missing transcript: %v", err)
	}
}

func TestTranscript_Normalize(t *testing.T) {
	tr := &Transcript{
		Segments: []Segment{
			{ID: 7, Start: 60, End: 90, Text: " later "},
			{ID: 3, Start: 0, End: 30, Text: "earlier"},
			{ID: 5, Start: 30, End: 60, Text: ""},
		},
	}

	tr.Normalize()

	if tr.Segments[0].Text != "earlier" {
		t.Errorf("first segment = %q, want earlier", tr.Segments[0].Text)
	}
	for i, s := range tr.Segments {
		if s.ID != i {
			t.Errorf("segment %d has ID %d, want sequential", i, s.ID)
		}
	}
	if tr.FullText != "earlier later" {
		t.Errorf("FullText = %q, want %q", tr.FullText, "earlier later")
	}
}
