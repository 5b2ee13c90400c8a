package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"aircheck/internal/baserow"
	"aircheck/internal/catalog"
	"aircheck/internal/media/silence"
	"aircheck/internal/media/transcode"
	"aircheck/internal/states"
)

type fakeStore struct {
	mu          sync.Mutex
	upload      catalog.Upload
	uploader    catalog.Person
	show        catalog.Show
	states      []states.State
	attachments map[string]string
	log         string
	duration    float64
}

func newFakeStore() *fakeStore {
	planned := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	return &fakeStore{
		upload: catalog.Upload{
			ID:                 42,
			Name:               "Episode",
			Uploader:           baserow.LinkTo(1),
			Show:               baserow.LinkTo(2),
			PlannedBroadcastAt: planned,
		},
		uploader:    catalog.Person{ID: 1, Name: "Producer"},
		show:        catalog.Show{ID: 2, Name: "Morning Show"},
		attachments: make(map[string]string),
	}
}

func (s *fakeStore) Upload(ctx context.Context, id int64) (*catalog.Upload, error) {
	upload := s.upload
	return &upload, nil
}

func (s *fakeStore) UploaderOf(ctx context.Context, upload *catalog.Upload) (*catalog.Person, error) {
	person := s.uploader
	return &person, nil
}

func (s *fakeStore) ShowOf(ctx context.Context, upload *catalog.Upload) (*catalog.Show, error) {
	show := s.show
	return &show, nil
}

func (s *fakeStore) ReplaceUploadState(ctx context.Context, uploadID int64, state states.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return nil
}

func (s *fakeStore) SetOptimizationLog(ctx context.Context, uploadID int64, log string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = log
	return nil
}

func (s *fakeStore) SetDuration(ctx context.Context, uploadID int64, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duration = seconds
	return nil
}

func (s *fakeStore) AttachFile(ctx context.Context, uploadID int64, column, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachments[column] = filepath.Base(path)
	return nil
}

func (s *fakeStore) lastState(track states.Track) (states.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.states) - 1; i >= 0; i-- {
		if s.states[i].Track() == track {
			return s.states[i], true
		}
	}
	return "", false
}

type fakeDetector struct {
	report silence.Report
	err    error
}

func (d fakeDetector) Detect(ctx context.Context, path string) (silence.Report, error) {
	return d.report, d.err
}

type fakeOptimizer struct {
	err  error
	tags *transcode.Tags
}

func (o *fakeOptimizer) Run(ctx context.Context, input, output string, report silence.Report, tags transcode.Tags) error {
	if o.err != nil {
		return o.err
	}
	if o.tags != nil {
		*o.tags = tags
	}
	return os.WriteFile(output, []byte("opt"), 0o644)
}

type fakeWaveform struct {
	err error
}

func (w fakeWaveform) Render(ctx context.Context, input, output string) error {
	if w.err != nil {
		return w.err
	}
	return os.WriteFile(output, []byte("png"), 0o644)
}

func durationOf(seconds float64) DurationProber {
	return func(ctx context.Context, path string) (float64, error) {
		return seconds, nil
	}
}

func stageJob(t *testing.T, withCover bool) Job {
	t.Helper()
	tempDir := filepath.Join(t.TempDir(), "upload")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatal(err)
	}
	raw := filepath.Join(tempDir, "submitted.mp3")
	if err := os.WriteFile(raw, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	job := Job{UploadID: 42, RawFile: raw, TempDir: tempDir}
	if withCover {
		cover := filepath.Join(tempDir, "cover.jpg")
		if err := os.WriteFile(cover, []byte("img"), 0o644); err != nil {
			t.Fatal(err)
		}
		job.CoverFile = cover
	}
	return job
}

func TestRunProcessesCleanUpload(t *testing.T) {
	store := newFakeStore()
	var tags transcode.Tags
	tools := AudioTools{
		Detector: fakeDetector{report: silence.Report{TotalDuration: 180}},
		Optimize: &fakeOptimizer{tags: &tags},
		Waveform: fakeWaveform{},
		Duration: durationOf(179),
	}
	job := stageJob(t, true)

	if err := New(store, tools, job, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(job.TempDir); !os.IsNotExist(err) {
		t.Fatalf("temp dir not removed: %v", err)
	}
	if state, _ := store.lastState(states.TrackWaveform); state != states.WaveformDone {
		t.Errorf("waveform track = %q", state)
	}
	if state, _ := store.lastState(states.TrackOptimization); state != states.OptimizationDone {
		t.Errorf("optimization track = %q", state)
	}
	if got := store.attachments[catalog.FieldSourceFile]; got != "240309-1830_42_raw.mp3" {
		t.Errorf("source file name = %q", got)
	}
	if got := store.attachments[catalog.FieldCover]; got != "240309-1830_42_cover.jpg" {
		t.Errorf("cover file name = %q", got)
	}
	if got := store.attachments[catalog.FieldWaveform]; got != "240309-1830_42_waveform-raw.png" {
		t.Errorf("waveform file name = %q", got)
	}
	if got := store.attachments[catalog.FieldOptimizedFile]; got != "240309-1830_42_opt.mp3" {
		t.Errorf("optimized file name = %q", got)
	}
	if !strings.Contains(store.log, "Final running time: 0:02:59") {
		t.Errorf("optimization log missing running time: %q", store.log)
	}
	if store.duration != 179 {
		t.Errorf("duration = %v", store.duration)
	}
	if tags.Artist != "Producer" || tags.Album != "Morning Show" || tags.Track != "42" {
		t.Errorf("unexpected tags %+v", tags)
	}
	if tags.Title != "240309-1830_42_opt" {
		t.Errorf("unexpected title %q", tags.Title)
	}
}

func TestWaveformFailureStillReleasesBarrier(t *testing.T) {
	store := newFakeStore()
	tools := AudioTools{
		Detector: fakeDetector{report: silence.Report{TotalDuration: 180}},
		Optimize: &fakeOptimizer{},
		Waveform: fakeWaveform{err: errors.New("render exploded")},
		Duration: durationOf(179),
	}
	job := stageJob(t, false)

	err := New(store, tools, job, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "generate waveform") {
		t.Fatalf("expected waveform subtask error, got %v", err)
	}
	if _, statErr := os.Stat(job.TempDir); !os.IsNotExist(statErr) {
		t.Fatal("temp dir not removed after subtask failure")
	}
	if state, _ := store.lastState(states.TrackWaveform); state != states.WaveformError {
		t.Errorf("waveform track = %q", state)
	}
	if state, _ := store.lastState(states.TrackOptimization); state != states.OptimizationDone {
		t.Errorf("optimization track = %q", state)
	}
}

func TestOptimizationWithFindingsEndsSeeLog(t *testing.T) {
	store := newFakeStore()
	report := silence.Report{
		TotalDuration: 180,
		Parts:         []silence.Part{{Start: 0, End: 5, Duration: 5}},
	}
	tools := AudioTools{
		Detector: fakeDetector{report: report},
		Optimize: &fakeOptimizer{},
		Waveform: fakeWaveform{},
		Duration: durationOf(176),
	}
	job := stageJob(t, false)

	if err := New(store, tools, job, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state, _ := store.lastState(states.TrackOptimization); state != states.OptimizationSeeLog {
		t.Errorf("optimization track = %q", state)
	}
	if !strings.Contains(store.log, "at the start") {
		t.Errorf("log missing silence finding: %q", store.log)
	}
	if !strings.Contains(store.log, "Final running time:") {
		t.Errorf("log missing running time: %q", store.log)
	}
}

func TestTranscodeFailureEndsOptimizationError(t *testing.T) {
	store := newFakeStore()
	tools := AudioTools{
		Detector: fakeDetector{report: silence.Report{TotalDuration: 180}},
		Optimize: &fakeOptimizer{err: errors.New("encoder exploded")},
		Waveform: fakeWaveform{},
		Duration: durationOf(179),
	}
	job := stageJob(t, false)

	err := New(store, tools, job, nil).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "optimize") {
		t.Fatalf("expected optimize subtask error, got %v", err)
	}
	if state, _ := store.lastState(states.TrackOptimization); state != states.OptimizationError {
		t.Errorf("optimization track = %q", state)
	}
	if _, statErr := os.Stat(job.TempDir); !os.IsNotExist(statErr) {
		t.Fatal("temp dir not removed after transcode failure")
	}
}

func TestMissingCoverIsSkippedWithoutError(t *testing.T) {
	store := newFakeStore()
	tools := AudioTools{
		Detector: fakeDetector{report: silence.Report{TotalDuration: 180}},
		Optimize: &fakeOptimizer{},
		Waveform: fakeWaveform{},
		Duration: durationOf(179),
	}
	job := stageJob(t, false)

	if err := New(store, tools, job, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := store.attachments[catalog.FieldCover]; ok {
		t.Fatal("cover attached although none was submitted")
	}
}
