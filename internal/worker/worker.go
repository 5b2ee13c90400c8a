// Package worker runs the background processing of one fresh upload: raw
// file storage, cover storage, waveform rendering, and silence-aware audio
// optimization as four concurrent subtasks over a shared completion barrier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"aircheck/internal/baserow"
	"aircheck/internal/catalog"
	"aircheck/internal/media/silence"
	"aircheck/internal/media/transcode"
	"aircheck/internal/services"
	"aircheck/internal/states"
)

const subtaskCount = 4

// Store is the slice of catalog operations the worker needs. Satisfied by
// *catalog.Store.
type Store interface {
	Upload(ctx context.Context, id int64) (*catalog.Upload, error)
	UploaderOf(ctx context.Context, upload *catalog.Upload) (*catalog.Person, error)
	ShowOf(ctx context.Context, upload *catalog.Upload) (*catalog.Show, error)
	ReplaceUploadState(ctx context.Context, uploadID int64, state states.State) error
	SetOptimizationLog(ctx context.Context, uploadID int64, log string) error
	SetDuration(ctx context.Context, uploadID int64, seconds float64) error
	AttachFile(ctx context.Context, uploadID int64, column, path string) error
}

// SilenceDetector runs the silence analysis pass over a file.
type SilenceDetector interface {
	Detect(ctx context.Context, path string) (silence.Report, error)
}

// Optimizer produces the broadcast rendition of a file.
type Optimizer interface {
	Run(ctx context.Context, input, output string, report silence.Report, tags transcode.Tags) error
}

// WaveformRenderer draws the amplitude image of a file.
type WaveformRenderer interface {
	Render(ctx context.Context, input, output string) error
}

// DurationProber returns a file's duration in seconds.
type DurationProber func(ctx context.Context, path string) (float64, error)

// AudioTools bundles the media operations the worker dispatches to.
type AudioTools struct {
	Detector SilenceDetector
	Optimize Optimizer
	Waveform WaveformRenderer
	Duration DurationProber
}

// Job describes one upload to process. The raw and cover files live inside
// TempDir, which the worker removes once all subtasks have finished.
type Job struct {
	UploadID  int64
	RawFile   string
	CoverFile string
	TempDir   string
}

// Worker processes one upload. Construct per job, call Run once.
type Worker struct {
	store  Store
	tools  AudioTools
	job    Job
	logger *slog.Logger

	upload   *catalog.Upload
	uploader *catalog.Person
	show     *catalog.Show
	// reference is resolved once before the subtasks are dispatched so no
	// two subtasks race on filling it.
	reference string

	mu       sync.Mutex
	cond     *sync.Cond
	finished int
}

// New wires a worker for one job.
func New(store Store, tools AudioTools, job Job, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		store:  store,
		tools:  tools,
		job:    job,
		logger: logger.With(slog.Int64("upload_id", job.UploadID)),
	}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Run resolves the upload and its canonical reference, dispatches the four
// subtasks concurrently, waits for all of them to register completion, and
// then removes the temp directory. It blocks until everything is done and
// returns the joined subtask errors, if any.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.resolve(ctx); err != nil {
		// Nothing was dispatched, so the temp dir is removed right away.
		if removeErr := os.RemoveAll(w.job.TempDir); removeErr != nil {
			w.logger.Warn("temp dir cleanup failed", slog.String("error", removeErr.Error()))
		}
		return err
	}

	subtasks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"upload raw", w.uploadRaw},
		{"upload cover", w.uploadCover},
		{"generate waveform", w.generateWaveform},
		{"optimize", w.optimize},
	}

	errs := make([]error, len(subtasks))
	for i, subtask := range subtasks {
		go func() {
			// Completion is registered on every exit path so the barrier
			// never stalls on a failed subtask.
			defer w.registerCompletion()
			if err := subtask.run(ctx); err != nil {
				w.logger.Error("subtask failed",
					slog.String("subtask", subtask.name), slog.String("error", err.Error()))
				errs[i] = fmt.Errorf("%s: %w", subtask.name, err)
			}
		}()
	}

	w.awaitCompletion()
	return errors.Join(errs...)
}

// resolve loads the upload with its linked rows and computes the canonical
// reference before any subtask starts.
func (w *Worker) resolve(ctx context.Context) error {
	upload, err := w.store.Upload(ctx, w.job.UploadID)
	if err != nil {
		return err
	}
	uploader, err := w.store.UploaderOf(ctx, upload)
	if err != nil {
		return err
	}
	show, err := w.store.ShowOf(ctx, upload)
	if err != nil {
		return err
	}
	w.upload = upload
	w.uploader = uploader
	w.show = show
	w.reference = upload.CanonicalReference()
	w.logger.Debug("upload resolved", slog.String("reference", w.reference))
	return nil
}

func (w *Worker) registerCompletion() {
	w.mu.Lock()
	w.finished++
	w.mu.Unlock()
	w.cond.Signal()
}

// awaitCompletion blocks until all subtasks have registered completion, then
// deletes the temp directory.
func (w *Worker) awaitCompletion() {
	w.mu.Lock()
	for w.finished < subtaskCount {
		w.cond.Wait()
	}
	w.mu.Unlock()

	w.logger.Debug("removing temp dir", slog.String("path", w.job.TempDir))
	if err := os.RemoveAll(w.job.TempDir); err != nil {
		w.logger.Warn("temp dir cleanup failed", slog.String("error", err.Error()))
	}
}

// uploadRaw stores the submitted file under its canonical name.
func (w *Worker) uploadRaw(ctx context.Context) error {
	return w.attachNamed(ctx, w.job.RawFile, "raw", catalog.FieldSourceFile)
}

// uploadCover stores the submitted cover image, if one was provided.
func (w *Worker) uploadCover(ctx context.Context) error {
	if w.job.CoverFile == "" {
		w.logger.Debug("no cover file submitted")
		return nil
	}
	return w.attachNamed(ctx, w.job.CoverFile, "cover", catalog.FieldCover)
}

// generateWaveform renders and stores the amplitude image, tracking the
// waveform state through running to done or error.
func (w *Worker) generateWaveform(ctx context.Context) error {
	if err := w.store.ReplaceUploadState(ctx, w.job.UploadID, states.WaveformRunning); err != nil {
		return err
	}
	output := filepath.Join(w.job.TempDir, catalog.FileName(w.reference, "waveform-raw", ".png"))
	if err := w.tools.Waveform.Render(ctx, w.job.RawFile, output); err != nil {
		w.setState(ctx, states.WaveformError)
		return err
	}
	if err := w.store.AttachFile(ctx, w.job.UploadID, catalog.FieldWaveform, output); err != nil {
		w.setState(ctx, states.WaveformError)
		return err
	}
	w.logger.Info("waveform generated", slog.String("output", output))
	return w.store.ReplaceUploadState(ctx, w.job.UploadID, states.WaveformDone)
}

// optimize runs silence analysis and the broadcast transcode, persists the
// silence log and final duration, and stores the optimized file. The
// optimization track ends on done when the silence log is empty, on
// done-see-log when findings need review, or on error.
func (w *Worker) optimize(ctx context.Context) error {
	if err := w.store.ReplaceUploadState(ctx, w.job.UploadID, states.OptimizationRunning); err != nil {
		return err
	}

	report, err := w.tools.Detector.Detect(ctx, w.job.RawFile)
	if err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}

	output := filepath.Join(w.job.TempDir, catalog.FileName(w.reference, "opt", ".mp3"))
	if err := w.tools.Optimize.Run(ctx, w.job.RawFile, output, report, w.tags(output)); err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}

	duration, err := w.tools.Duration(ctx, output)
	if err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}

	log := report.Log()
	state := states.OptimizationDone
	if log != "" {
		state = states.OptimizationSeeLog
	}
	log = fmt.Sprintf("%s\nFinal running time: %s", log, baserow.Duration(duration).Clock())

	if err := w.store.SetOptimizationLog(ctx, w.job.UploadID, log); err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}
	if err := w.store.SetDuration(ctx, w.job.UploadID, duration); err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}
	if err := w.store.AttachFile(ctx, w.job.UploadID, catalog.FieldOptimizedFile, output); err != nil {
		w.setState(ctx, states.OptimizationError)
		return err
	}

	w.logger.Info("upload optimized",
		slog.String("output", output), slog.Float64("duration_seconds", duration))
	return w.store.ReplaceUploadState(ctx, w.job.UploadID, state)
}

// tags derives the container metadata for the optimized file.
func (w *Worker) tags(output string) transcode.Tags {
	name := filepath.Base(output)
	return transcode.Tags{
		Title:  name[:len(name)-len(filepath.Ext(name))],
		Artist: w.uploader.Name,
		Album:  w.show.Name,
		Track:  strconv.FormatInt(w.upload.ID, 10),
		Date:   w.upload.PlannedBroadcastAt.Format("2006-01-02"),
	}
}

// attachNamed copies a file to its canonical name inside the temp dir and
// attaches it to the given column of the upload row.
func (w *Worker) attachNamed(ctx context.Context, path, slug, column string) error {
	named := filepath.Join(w.job.TempDir, catalog.FileName(w.reference, slug, filepath.Ext(path)))
	if named != path {
		if err := copyFile(path, named); err != nil {
			return services.Wrap(services.ErrPrecondition, "worker", "stage file", path, err)
		}
	}
	if err := w.store.AttachFile(ctx, w.job.UploadID, column, named); err != nil {
		return err
	}
	w.logger.Info("file stored", slog.String("column", column), slog.String("file", filepath.Base(named)))
	return nil
}

// setState replaces a track state on a failure path; a store error here is
// logged but not propagated so the original failure stays visible.
func (w *Worker) setState(ctx context.Context, state states.State) {
	if err := w.store.ReplaceUploadState(ctx, w.job.UploadID, state); err != nil {
		w.logger.Warn("state update failed",
			slog.String("state", string(state)), slog.String("error", err.Error()))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
