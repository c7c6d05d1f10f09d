package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crowd-safety-service/internal/analysis"
	"crowd-safety-service/internal/analyzer/mock"
	"crowd-safety-service/internal/dispatch"
	"crowd-safety-service/internal/models"
	"crowd-safety-service/internal/store"
)

// fakeMedia simulates a source video without touching ffmpeg.
type fakeMedia struct {
	duration   time.Duration
	chunkErrAt int // 1-based window index that fails extraction, 0 for none
	chunks     []string
}

func (f *fakeMedia) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	if f.duration == 0 {
		return 0, errors.New("no such file")
	}
	return f.duration, nil
}

func (f *fakeMedia) ExtractChunk(ctx context.Context, src, dst string, start, duration time.Duration) error {
	if f.chunkErrAt > 0 && len(f.chunks)+1 == f.chunkErrAt {
		f.chunks = append(f.chunks, "")
		return errors.New("stream copy failed")
	}
	f.chunks = append(f.chunks, dst)
	return nil
}

func (f *fakeMedia) ExtractFrame(ctx context.Context, chunkPath string, chunkDuration time.Duration) ([]byte, error) {
	return []byte{0xff, 0xd8, 0xff}, nil
}

type capturingPublisher struct {
	mu       sync.Mutex
	requests []models.DispatchRequest
}

func (p *capturingPublisher) PublishDispatch(ctx context.Context, req models.DispatchRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	return nil
}

func newTestSplitter(m Media, responses []string) (*Splitter, *store.MemoryStore, *capturingPublisher) {
	events := store.NewMemoryStore()
	pub := &capturingPublisher{}
	engine := dispatch.NewEngine(dispatch.NewMemoryLedger(10*time.Minute), pub, 10*time.Minute)

	var adapter *mock.Adapter
	if responses == nil {
		adapter = mock.New()
	} else {
		adapter = mock.NewWithResponses(responses)
	}

	s := NewSplitter(m, adapter, events, engine, Config{
		ChunkDuration: 5 * time.Second,
		Overlap:       1 * time.Second,
		WorkDir:       "chunks",
		Location:      "Hall A",
	})
	return s, events, pub
}

func TestProcess_FullRun(t *testing.T) {
	m := &fakeMedia{duration: 13 * time.Second}
	s, events, pub := newTestSplitter(m, nil)
	start := time.Date(2025, 7, 27, 4, 13, 0, 0, time.UTC)

	result, err := s.Process(context.Background(), "crowd.mp4", start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 13s at 5s chunks with 1s overlap: [0,5), [4,9), [8,13)
	if result.WindowsPlanned != 3 {
		t.Errorf("expected 3 windows, got %d", result.WindowsPlanned)
	}
	if len(result.Records) != 3 {
		t.Fatalf("expected 3 accepted records, got %d", len(result.Records))
	}
	if result.Dropped != 0 {
		t.Errorf("expected no drops, got %d", result.Dropped)
	}
	if len(m.chunks) != 3 {
		t.Errorf("expected 3 chunk extractions, got %d", len(m.chunks))
	}
	if m.chunks[0] != "chunks/chunk_001.mp4" {
		t.Errorf("unexpected first chunk path %q", m.chunks[0])
	}

	docs, err := events.GetRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 persisted documents, got %d", len(docs))
	}
	// Newest first: the last window ends latest.
	if docs[0].ChunkPath != "chunks/chunk_003.mp4" {
		t.Errorf("expected newest document from chunk 3, got %q", docs[0].ChunkPath)
	}

	// Canned responses 1 and 2 are calm; response 3 is high density without
	// intervention; no dispatches expected from the first three.
	if len(pub.requests) != 0 {
		t.Errorf("expected no dispatches, got %d", len(pub.requests))
	}
}

func TestProcess_InterventionTriggersDispatch(t *testing.T) {
	critical := mock.CannedResponses[3]
	m := &fakeMedia{duration: 5 * time.Second}
	s, _, pub := newTestSplitter(m, []string{critical})

	result, err := s.Process(context.Background(), "crowd.mp4", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Decisions) != 1 {
		t.Fatalf("expected one dispatch decision, got %d", len(result.Decisions))
	}
	decision := result.Decisions[0]
	if decision.UnitType != models.UnitMedical {
		t.Errorf("expected medical unit for critical stampede conditions, got %v", decision.UnitType)
	}
	if decision.Location != "Hall A" {
		t.Errorf("expected dispatch to Hall A, got %q", decision.Location)
	}
	if len(pub.requests) != 1 {
		t.Errorf("expected one published request, got %d", len(pub.requests))
	}
}

func TestProcess_RepeatedInterventionDeduped(t *testing.T) {
	critical := mock.CannedResponses[3]
	m := &fakeMedia{duration: 13 * time.Second}
	s, _, pub := newTestSplitter(m, []string{critical})

	result, err := s.Process(context.Background(), "crowd.mp4", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three windows, all critical; only the first dispatch reaches the
	// broker, the rest are suppressed within the cool-down.
	if len(pub.requests) != 1 {
		t.Fatalf("expected exactly one published request, got %d", len(pub.requests))
	}
	if len(result.Decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(result.Decisions))
	}
	if result.Decisions[0].Suppressed {
		t.Error("first decision must not be suppressed")
	}
	for i, d := range result.Decisions[1:] {
		if !d.Suppressed {
			t.Errorf("decision %d should be suppressed", i+1)
		}
		if d.Reason != dispatch.ReasonDuplicate {
			t.Errorf("decision %d: expected reason duplicate, got %s", i+1, d.Reason)
		}
	}
}

func TestProcess_MalformedAnalysisDropped(t *testing.T) {
	m := &fakeMedia{duration: 9 * time.Second}
	s, events, _ := newTestSplitter(m, []string{
		"sorry, I cannot analyze this image",
		mock.CannedResponses[0],
	})

	result, err := s.Process(context.Background(), "crowd.mp4", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Dropped != 1 {
		t.Errorf("expected 1 dropped window, got %d", result.Dropped)
	}
	if len(result.Records) != 1 {
		t.Errorf("expected 1 accepted record, got %d", len(result.Records))
	}

	docs, _ := events.GetRecent(context.Background(), 10)
	if len(docs) != 1 {
		t.Errorf("expected only the valid assessment persisted, got %d", len(docs))
	}
}

func TestProcess_ChunkFailureSkipsWindow(t *testing.T) {
	m := &fakeMedia{duration: 13 * time.Second, chunkErrAt: 2}
	s, _, _ := newTestSplitter(m, nil)

	result, err := s.Process(context.Background(), "crowd.mp4", time.Now().UTC())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("expected 1 dropped window, got %d", result.Dropped)
	}
	if len(result.Records) != 2 {
		t.Errorf("expected 2 accepted records, got %d", len(result.Records))
	}
}

func TestProcess_ProbeFailure(t *testing.T) {
	m := &fakeMedia{}
	s, _, _ := newTestSplitter(m, nil)

	if _, err := s.Process(context.Background(), "missing.mp4", time.Now().UTC()); err == nil {
		t.Fatal("expected an error for an unreadable source")
	}
}

func TestProcess_ContextCancellation(t *testing.T) {
	m := &fakeMedia{duration: 30 * time.Second}
	s, _, _ := newTestSplitter(m, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Process(ctx, "crowd.mp4", time.Now().UTC()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestProcess_RecordsCarryWindowBounds(t *testing.T) {
	m := &fakeMedia{duration: 9 * time.Second}
	s, _, _ := newTestSplitter(m, nil)
	start := time.Date(2025, 7, 27, 4, 13, 0, 0, time.UTC)

	result, err := s.Process(context.Background(), "crowd.mp4", start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}

	second := result.Records[1]
	if second.Window.StartOffset != 4*time.Second || second.Window.EndOffset != 9*time.Second {
		t.Errorf("unexpected second window offsets: [%v, %v)", second.Window.StartOffset, second.Window.EndOffset)
	}
	if !second.Window.EndUTC.Equal(start.Add(9 * time.Second)) {
		t.Errorf("unexpected second window end UTC: %v", second.Window.EndUTC)
	}
	if second.CrowdDensity != analysis.DensityMedium {
		t.Errorf("expected medium density from the second canned response, got %v", second.CrowdDensity)
	}
}
