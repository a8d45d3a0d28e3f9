package media

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// Chunk is one transcribable slice of an audio file. OffsetSeconds is the
// chunk's start position in the full recording; segment timestamps coming
// back from transcription are chunk-local and get shifted by this offset.
type Chunk struct {
	Index         int
	Path          string
	OffsetSeconds float64
	LengthSeconds float64
}

// ChunkPlan describes how an audio file will be split before transcription.
type ChunkPlan struct {
	TotalSize  int64
	Duration   float64
	ChunkCount int
	Chunks     []Chunk
}

// PlanChunks decides how to split an audio file of the given size and
// duration against a size threshold. Files at or under the threshold get a
// single chunk covering the whole file. Larger files are split into
// ceil(size/threshold) equal-duration chunks; the last chunk absorbs the
// rounding remainder so the pieces always cover the full duration.
func PlanChunks(sizeBytes int64, thresholdBytes int64, durationSeconds float64) (*ChunkPlan, error) {
	if sizeBytes <= 0 {
		return nil, fmt.Errorf("plan chunks: non-positive size %d", sizeBytes)
	}
	if thresholdBytes <= 0 {
		return nil, fmt.Errorf("plan chunks: non-positive threshold %d", thresholdBytes)
	}
	if durationSeconds <= 0 {
		return nil, fmt.Errorf("plan chunks: non-positive duration %v", durationSeconds)
	}

	count := int(math.Ceil(float64(sizeBytes) / float64(thresholdBytes)))
	if count < 1 {
		count = 1
	}

	plan := &ChunkPlan{
		TotalSize:  sizeBytes,
		Duration:   durationSeconds,
		ChunkCount: count,
		Chunks:     make([]Chunk, 0, count),
	}

	chunkLen := durationSeconds / float64(count)
	for i := 0; i < count; i++ {
		offset := float64(i) * chunkLen
		length := chunkLen
		if i == count-1 {
			length = durationSeconds - offset
		}
		plan.Chunks = append(plan.Chunks, Chunk{
			Index:         i,
			OffsetSeconds: offset,
			LengthSeconds: length,
		})
	}

	return plan, nil
}

// Split materializes a chunk plan on disk. The single-chunk fast path
// reuses the source file directly; multi-chunk plans cut stream copies
// into workDir.
func (p *Processor) Split(ctx context.Context, audioPath, workDir string, plan *ChunkPlan) ([]Chunk, error) {
	if plan.ChunkCount == 1 {
		c := plan.Chunks[0]
		c.Path = audioPath
		return []Chunk{c}, nil
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}

	ext := filepath.Ext(audioPath)
	chunks := make([]Chunk, 0, plan.ChunkCount)
	for _, c := range plan.Chunks {
		c.Path = filepath.Join(workDir, fmt.Sprintf("chunk_%03d%s", c.Index, ext))
		if err := p.cutChunk(ctx, audioPath, c.OffsetSeconds, c.LengthSeconds, c.Path); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}

	return chunks, nil
}

// ChunkAudio probes, plans and splits in one call: the common path for a
// freshly extracted audio file.
func (p *Processor) ChunkAudio(ctx context.Context, audioPath, workDir string, thresholdBytes int64) ([]Chunk, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("chunk audio: %w", err)
	}

	duration, err := p.Duration(ctx, audioPath)
	if err != nil {
		return nil, err
	}

	plan, err := PlanChunks(info.Size(), thresholdBytes, duration)
	if err != nil {
		return nil, err
	}

	return p.Split(ctx, audioPath, workDir, plan)
}
