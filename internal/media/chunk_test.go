package media

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestPlanChunks_SingleChunk(t *testing.T) {
	plan, err := PlanChunks(10<<20, 25<<20, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.ChunkCount != 1 {
		t.Fatalf("ChunkCount = %d, want 1", plan.ChunkCount)
	}
	c := plan.Chunks[0]
	if c.OffsetSeconds != 0 || c.LengthSeconds != 300 {
		t.Errorf("chunk = offset %v length %v, want 0/300", c.OffsetSeconds, c.LengthSeconds)
	}
}

func TestPlanChunks_ExactThreshold(t *testing.T) {
	plan, err := PlanChunks(25<<20, 25<<20, 300)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ChunkCount != 1 {
		t.Errorf("ChunkCount = %d, want 1 at exact threshold", plan.ChunkCount)
	}
}

func TestPlanChunks_MultiChunk(t *testing.T) {
	// 60 MB over a 25 MB threshold: ceil(60/25) = 3 chunks
	plan, err := PlanChunks(60<<20, 25<<20, 900)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.ChunkCount != 3 {
		t.Fatalf("ChunkCount = %d, want 3", plan.ChunkCount)
	}

	var covered float64
	for i, c := range plan.Chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if math.Abs(c.OffsetSeconds-covered) > 1e-9 {
			t.Errorf("chunk %d offset %v, want %v", i, c.OffsetSeconds, covered)
		}
		covered += c.LengthSeconds
	}
	if math.Abs(covered-900) > 1e-9 {
		t.Errorf("chunks cover %v seconds, want 900", covered)
	}
}

func TestPlanChunks_LastChunkAbsorbsRemainder(t *testing.T) {
	plan, err := PlanChunks(26<<20, 25<<20, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.ChunkCount != 2 {
		t.Fatalf("ChunkCount = %d, want 2", plan.ChunkCount)
	}

	last := plan.Chunks[1]
	if math.Abs(last.OffsetSeconds+last.LengthSeconds-100) > 1e-9 {
		t.Errorf("last chunk ends at %v, want 100", last.OffsetSeconds+last.LengthSeconds)
	}
}

func TestPlanChunks_InvalidInput(t *testing.T) {
	if _, err := PlanChunks(0, 25<<20, 300); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := PlanChunks(1<<20, 0, 300); err == nil {
		t.Error("expected error for zero threshold")
	}
	if _, err := PlanChunks(1<<20, 25<<20, 0); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestSplit_SingleChunkFastPath(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(audioPath, []byte("fake audio"), 0644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor(nil)
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		t.Fatalf("no exec expected on single-chunk path, got %s %v", name, args)
		return nil, nil
	}

	plan, err := PlanChunks(10, 25<<20, 120)
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := p.Split(context.Background(), audioPath, dir, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Path != audioPath {
		t.Errorf("single chunk path = %q, want original file", chunks[0].Path)
	}
}

func TestSplit_MultiChunkCutsFiles(t *testing.T) {
	dir := t.TempDir()
	audioPath := filepath.Join(dir, "audio.mp3")
	if err := os.WriteFile(audioPath, []byte("fake audio"), 0644); err != nil {
		t.Fatal(err)
	}

	var cuts [][]string
	p := NewProcessor(nil)
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cuts = append(cuts, args)
		// emulate ffmpeg writing the output file (last arg)
		return nil, os.WriteFile(args[len(args)-1], []byte("cut"), 0644)
	}

	plan, err := PlanChunks(60<<20, 25<<20, 900)
	if err != nil {
		t.Fatal(err)
	}

	workDir := filepath.Join(dir, "chunks")
	chunks, err := p.Split(context.Background(), audioPath, workDir, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(cuts) != 3 {
		t.Fatalf("got %d ffmpeg invocations, want 3", len(cuts))
	}
	for i, c := range chunks {
		if c.Path == audioPath {
			t.Errorf("chunk %d reuses source path", i)
		}
		if _, err := os.Stat(c.Path); err != nil {
			t.Errorf("chunk %d file missing: %v", i, err)
		}
	}
}

func TestDuration_ParsesFFprobeOutput(t *testing.T) {
	p := NewProcessor(nil)
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("245.738000\n"), nil
	}

	dur, err := p.Duration(context.Background(), "whatever.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dur != 245.738 {
		t.Errorf("duration = %v, want 245.738", dur)
	}
}

func TestDuration_RejectsGarbage(t *testing.T) {
	p := NewProcessor(nil)
	p.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("N/A\n"), nil
	}

	if _, err := p.Duration(context.Background(), "whatever.mp3"); err == nil {
		t.Error("expected error for unparseable duration")
	}
}
