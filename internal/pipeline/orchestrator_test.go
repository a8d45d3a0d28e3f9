package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/lectureqa/backend/internal/errors"
	"github.com/lectureqa/backend/internal/media"
	"github.com/lectureqa/backend/internal/registry"
	"github.com/lectureqa/backend/internal/transcriber"
	"github.com/lectureqa/backend/internal/transcript"
	"github.com/lectureqa/backend/internal/ytdlp"
)

// recordingRegistry wraps a memory registry and keeps every written record
// in order, so tests can check the stage/progress sequence.
type recordingRegistry struct {
	*registry.MemoryRegistry
	mu      sync.Mutex
	history []registry.StatusRecord
}

func newRecordingRegistry() *recordingRegistry {
	return &recordingRegistry{MemoryRegistry: registry.NewMemoryRegistry()}
}

func (r *recordingRegistry) Put(ctx context.Context, record registry.StatusRecord) error {
	r.mu.Lock()
	r.history = append(r.history, record)
	r.mu.Unlock()
	return r.MemoryRegistry.Put(ctx, record)
}

func (r *recordingRegistry) records() []registry.StatusRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registry.StatusRecord, len(r.history))
	copy(out, r.history)
	return out
}

type fakeFetcher struct {
	probeMeta   *ytdlp.Metadata
	probeErr    error
	downloadErr error
	mediaPath   string
	probes      int
	downloads   int
}

func (f *fakeFetcher) Probe(ctx context.Context, url string) (*ytdlp.Metadata, error) {
	f.probes++
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	if f.probeMeta == nil {
		return &ytdlp.Metadata{}, nil
	}
	return f.probeMeta, nil
}

func (f *fakeFetcher) Download(ctx context.Context, url, outputID string, meta *ytdlp.Metadata, progress ytdlp.ProgressCallback) (*ytdlp.DownloadResult, error) {
	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if progress != nil {
		progress(50, "downloading")
		progress(100, "downloading")
	}
	if meta == nil {
		meta = f.probeMeta
	}
	return &ytdlp.DownloadResult{FilePath: f.mediaPath, Metadata: meta}, nil
}

type fakeAudio struct {
	duration   float64
	extractErr error
	chunks     []media.Chunk
}

func (f *fakeAudio) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(audioPath, []byte("audio"), 0644)
}

func (f *fakeAudio) Duration(ctx context.Context, path string) (float64, error) {
	return f.duration, nil
}

func (f *fakeAudio) ChunkAudio(ctx context.Context, audioPath, workDir string, threshold int64) ([]media.Chunk, error) {
	if f.chunks != nil {
		return f.chunks, nil
	}
	return []media.Chunk{{Index: 0, Path: audioPath, OffsetSeconds: 0}}, nil
}

type fakeDriver struct {
	segments []transcript.Segment
	err      error
}

func (f *fakeDriver) Transcribe(ctx context.Context, chunks []media.Chunk, progress transcriber.ProgressFunc) ([]transcript.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	return f.segments, nil
}

func testOrchestrator(t *testing.T, reg registry.Registry, fetcher Fetcher, audio AudioProcessor, driver TranscriptionDriver) (*Orchestrator, transcript.Store) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := transcript.NewFileStore(filepath.Join(dataDir, "transcripts"))
	if err != nil {
		t.Fatal(err)
	}

	cfg := OrchestratorConfig{
		DataDir:             dataDir,
		MaxDurationSeconds:  300,
		ChunkThresholdBytes: 25 << 20,
		DownloadTimeout:     time.Minute,
	}
	return NewOrchestrator(cfg, reg, store, fetcher, audio, driver), store
}

func writeTempMedia(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOrchestrator_RemoteHappyPath(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Title: "Lecture 3", Duration: 240},
		mediaPath: writeTempMedia(t),
	}
	driver := &fakeDriver{segments: []transcript.Segment{
		{Start: 0, End: 120, Text: "part one"},
		{Start: 120, End: 240, Text: "part two"},
	}}

	orch, store := testOrchestrator(t, reg, fetcher, &fakeAudio{duration: 240}, driver)

	job := &Job{ID: "job1", Source: SourceRemote, URL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"}
	orch.Run(context.Background(), job)

	final, err := reg.Get(context.Background(), "job1")
	if err != nil {
		t.Fatal(err)
	}
	if final.Stage != registry.StageCompleted || final.Progress != 100 {
		t.Errorf("final record = %+v, want completed/100", final)
	}
	if final.Title != "Lecture 3" {
		t.Errorf("Title = %q", final.Title)
	}

	saved, err := store.Load(context.Background(), "job1")
	if err != nil {
		t.Fatalf("transcript not persisted: %v", err)
	}
	if len(saved.Segments) != 2 {
		t.Errorf("got %d segments", len(saved.Segments))
	}
	if saved.FullText != "part one part two" {
		t.Errorf("FullText = %q", saved.FullText)
	}
}

func TestOrchestrator_StageOrderAndMonotonicProgress(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Title: "T", Duration: 100},
		mediaPath: writeTempMedia(t),
	}
	driver := &fakeDriver{segments: []transcript.Segment{{Start: 0, End: 100, Text: "x"}}}

	orch, _ := testOrchestrator(t, reg, fetcher, &fakeAudio{duration: 100}, driver)
	orch.Run(context.Background(), &Job{ID: "j", Source: SourceRemote, URL: "u"})

	records := reg.records()
	if len(records) == 0 {
		t.Fatal("no records written")
	}

	stageRank := map[registry.Stage]int{
		registry.StageQueued:       0,
		registry.StageDownloading:  1,
		registry.StageExtracting:   2,
		registry.StageTranscribing: 3,
		registry.StageCompleted:    4,
	}

	lastRank := -1
	lastProgress := -1
	for i, rec := range records {
		rank, ok := stageRank[rec.Stage]
		if !ok {
			t.Fatalf("record %d has unexpected stage %q", i, rec.Stage)
		}
		if rank < lastRank {
			t.Errorf("record %d: stage %q after a later stage", i, rec.Stage)
		}
		if rec.Progress < lastProgress {
			t.Errorf("record %d: progress %d decreased from %d", i, rec.Progress, lastProgress)
		}
		lastRank = rank
		lastProgress = rec.Progress
	}

	final := records[len(records)-1]
	if final.Stage != registry.StageCompleted {
		t.Errorf("final stage = %q", final.Stage)
	}
}

func TestOrchestrator_DurationExceededBeforeDownload(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Title: "Too long", Duration: 3600},
	}

	orch, _ := testOrchestrator(t, reg, fetcher, &fakeAudio{duration: 3600}, &fakeDriver{})
	orch.Run(context.Background(), &Job{ID: "long", Source: SourceRemote, URL: "u"})

	final, err := reg.Get(context.Background(), "long")
	if err != nil {
		t.Fatal(err)
	}
	if final.Stage != registry.StageError {
		t.Fatalf("stage = %q, want error", final.Stage)
	}
	if final.ErrorCode != apperrors.CodeDurationExceeded {
		t.Errorf("ErrorCode = %q, want %q", final.ErrorCode, apperrors.CodeDurationExceeded)
	}
	if fetcher.downloads != 0 {
		t.Errorf("download called %d times, want duration rejected before download", fetcher.downloads)
	}
}

func TestOrchestrator_PostDownloadDurationCheckDiscardsFile(t *testing.T) {
	reg := newRecordingRegistry()
	mediaPath := writeTempMedia(t)
	// probe reports no duration; the real file turns out too long
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Title: "Mystery"},
		mediaPath: mediaPath,
	}

	orch, _ := testOrchestrator(t, reg, fetcher, &fakeAudio{duration: 9000}, &fakeDriver{})
	orch.Run(context.Background(), &Job{ID: "j", Source: SourceRemote, URL: "u"})

	final, _ := reg.Get(context.Background(), "j")
	if final.ErrorCode != apperrors.CodeDurationExceeded {
		t.Errorf("ErrorCode = %q, want duration exceeded", final.ErrorCode)
	}
	if _, err := os.Stat(mediaPath); !os.IsNotExist(err) {
		t.Error("downloaded file was not discarded after duration violation")
	}
}

func TestOrchestrator_PlaylistErrorClassified(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeErr: &ytdlp.DownloadError{URL: "u", Message: "playlist", Err: ytdlp.ErrPlaylistNotSupported},
	}

	orch, _ := testOrchestrator(t, reg, fetcher, &fakeAudio{}, &fakeDriver{})
	orch.Run(context.Background(), &Job{ID: "j", Source: SourceRemote, URL: "u"})

	final, _ := reg.Get(context.Background(), "j")
	if final.ErrorCode != apperrors.CodePlaylistNotSupported {
		t.Errorf("ErrorCode = %q, want playlist not supported", final.ErrorCode)
	}
}

func TestOrchestrator_ExtractionFailureFailsJob(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Duration: 100},
		mediaPath: writeTempMedia(t),
	}
	audio := &fakeAudio{duration: 100, extractErr: errors.New("no audio track")}

	orch, _ := testOrchestrator(t, reg, fetcher, audio, &fakeDriver{})
	orch.Run(context.Background(), &Job{ID: "j", Source: SourceRemote, URL: "u"})

	final, _ := reg.Get(context.Background(), "j")
	if final.Stage != registry.StageError {
		t.Fatalf("stage = %q, want error", final.Stage)
	}
	if final.ErrorCode != apperrors.CodeExtractionError {
		t.Errorf("ErrorCode = %q, want extraction error", final.ErrorCode)
	}
}

func TestOrchestrator_TranscriptionFailureFailsJob(t *testing.T) {
	reg := newRecordingRegistry()
	fetcher := &fakeFetcher{
		probeMeta: &ytdlp.Metadata{Duration: 100},
		mediaPath: writeTempMedia(t),
	}
	driver := &fakeDriver{err: apperrors.TranscriptionError("chunk 2 failed after retries")}

	orch, store := testOrchestrator(t, reg, fetcher, &fakeAudio{duration: 100}, driver)
	orch.Run(context.Background(), &Job{ID: "j", Source: SourceRemote, URL: "u"})

	final, _ := reg.Get(context.Background(), "j")
	if final.ErrorCode != apperrors.CodeTranscriptionError {
		t.Errorf("ErrorCode = %q", final.ErrorCode)
	}
	if _, err := store.Load(context.Background(), "j"); !errors.Is(err, transcript.ErrNotFound) {
		t.Error("partial transcript must not be persisted")
	}
}

func TestOrchestrator_UploadHappyPath(t *testing.T) {
	reg := newRecordingRegistry()
	driver := &fakeDriver{segments: []transcript.Segment{{Start: 0, End: 60, Text: "hello"}}}

	orch, store := testOrchestrator(t, reg, &fakeFetcher{}, &fakeAudio{duration: 60}, driver)

	job := &Job{
		ID:         "up1",
		Source:     SourceUpload,
		UploadName: "lecture.mp4",
		MediaPath:  writeTempMedia(t),
	}
	orch.Run(context.Background(), job)

	final, _ := reg.Get(context.Background(), "up1")
	if final.Stage != registry.StageCompleted {
		t.Fatalf("stage = %q (%s: %s)", final.Stage, final.ErrorCode, final.ErrorDetail)
	}
	if final.Title != "lecture.mp4" {
		t.Errorf("Title = %q, want upload filename fallback", final.Title)
	}

	saved, err := store.Load(context.Background(), "up1")
	if err != nil {
		t.Fatal(err)
	}
	if saved.DurationSeconds != 60 {
		t.Errorf("DurationSeconds = %v", saved.DurationSeconds)
	}
}

func TestOrchestrator_UploadDurationExceeded(t *testing.T) {
	reg := newRecordingRegistry()
	mediaPath := writeTempMedia(t)

	orch, _ := testOrchestrator(t, reg, &fakeFetcher{}, &fakeAudio{duration: 1000}, &fakeDriver{})
	orch.Run(context.Background(), &Job{ID: "up", Source: SourceUpload, MediaPath: mediaPath, UploadName: "f.mp4"})

	final, _ := reg.Get(context.Background(), "up")
	if final.ErrorCode != apperrors.CodeDurationExceeded {
		t.Errorf("ErrorCode = %q", final.ErrorCode)
	}
	if _, err := os.Stat(mediaPath); !os.IsNotExist(err) {
		t.Error("oversized upload was not discarded")
	}
}
