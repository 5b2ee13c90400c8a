package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"aircheck/internal/catalog"
	"aircheck/internal/export"
	"aircheck/internal/services"
	"aircheck/internal/textutil"
	"aircheck/internal/worker"
)

// formTime is the layout of the upload form's datetime-local field.
const formTime = "2006-01-02T15:04"

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// producerData is the bootstrap payload of the personalized upload form.
type producerData struct {
	ProducerName       string     `json:"producer_name"`
	ProducerUUID       string     `json:"producer_uuid"`
	BaseURL            string     `json:"base_url"`
	Shows              []showData `json:"shows"`
	DevMode            bool       `json:"dev_mode"`
	MaintenanceMode    bool       `json:"maintenance_mode"`
	MaintenanceMessage string     `json:"maintenance_message"`
	FormEnabled        bool       `json:"form_enabled"`
	LegacyURLUsed      bool       `json:"legacy_url_used"`
	LegacyGraceDate    string     `json:"legacy_url_grace_date,omitempty"`
}

type showData struct {
	ShowID int64  `json:"show_id"`
	Name   string `json:"name"`
}

// handleProducer serves the data the upload form frontend needs. Producers
// reaching the form through their retired legacy UUID are still resolved;
// the response flags the legacy access so the form can nag.
func (s *Server) handleProducer(w http.ResponseWriter, r *http.Request) {
	person, legacyUsed, err := s.store.PersonByUUID(r.Context(), r.PathValue("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown producer")
		return
	}
	if err != nil {
		s.logger.Error("producer lookup failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadGateway, "store lookup failed")
		return
	}

	shows, err := s.store.ShowsByLink(r.Context(), person.Shows)
	if err != nil {
		s.logger.Error("show lookup failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadGateway, "store lookup failed")
		return
	}

	data := producerData{
		ProducerName:       person.Name,
		ProducerUUID:       person.UUID,
		BaseURL:            s.cfg.Server.BaseURL,
		Shows:              make([]showData, 0, len(shows)),
		DevMode:            s.cfg.Server.DevMode,
		MaintenanceMode:    s.cfg.Server.MaintenanceMode,
		MaintenanceMessage: s.cfg.Server.MaintenanceMessage,
		FormEnabled:        person.FormEnabled(),
		LegacyURLUsed:      legacyUsed,
		LegacyGraceDate:    s.cfg.Server.LegacyGraceDate,
	}
	for _, show := range shows {
		data.Shows = append(data.Shows, showData{ShowID: show.ID, Name: show.Name})
	}
	s.writeJSON(w, http.StatusOK, data)
}

// handleUpload ingests one submission: multipart parse, row creation with
// all tracks pending, then background processing and notification mails.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Server.MaintenanceMode {
		s.writeError(w, http.StatusServiceUnavailable, s.cfg.Server.MaintenanceMessage)
		return
	}

	person, legacyUsed, err := s.store.PersonByUUID(r.Context(), r.PathValue("uuid"))
	if errors.Is(err, services.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "unknown producer")
		return
	}
	if err != nil {
		s.logger.Error("producer lookup failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadGateway, "store lookup failed")
		return
	}
	if !person.FormEnabled() {
		s.writeError(w, http.StatusForbidden, "the upload form is disabled for this producer")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	showID, err := strconv.ParseInt(r.FormValue("show_id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing or invalid show_id")
		return
	}
	if !slices.Contains(person.Shows.IDs(), showID) {
		s.writeError(w, http.StatusForbidden, "the show is not assigned to this producer")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "missing episode name")
		return
	}
	planned, err := time.ParseInLocation(formTime, r.FormValue("planned_broadcast"), s.location)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing or invalid planned_broadcast")
		return
	}

	tempDir := filepath.Join(s.cfg.Server.TempDir, uuid.NewString())
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		s.logger.Error("temp dir creation failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, "could not stage the upload")
		return
	}

	rawFile, err := s.saveFormFile(r, "file", tempDir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		s.writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	coverFile, err := s.saveFormFile(r, "cover", tempDir)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		_ = os.RemoveAll(tempDir)
		s.writeError(w, http.StatusBadRequest, "malformed cover file")
		return
	}

	upload, err := s.store.CreateUpload(r.Context(), catalog.NewUpload{
		Name:               name,
		UploaderID:         person.ID,
		ShowID:             showID,
		PlannedBroadcastAt: planned.Format(time.RFC3339),
		Description:        strings.TrimSpace(r.FormValue("description")),
		ProducerComment:    strings.TrimSpace(r.FormValue("comment")),
		LegacyURLUsed:      legacyUsed,
	})
	if err != nil {
		_ = os.RemoveAll(tempDir)
		s.logger.Error("upload row creation failed", slog.String("error", err.Error()))
		s.writeError(w, http.StatusBadGateway, "could not create the upload entry")
		return
	}

	s.metrics.IncUploadsReceived()
	job := worker.Job{
		UploadID:  upload.ID,
		RawFile:   rawFile,
		CoverFile: coverFile,
		TempDir:   tempDir,
	}
	// Processing and notifications outlive the request.
	go s.process(context.WithoutCancel(r.Context()), job)
	go s.notifyOnUpload(context.WithoutCancel(r.Context()), upload.ID)

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"upload_id": upload.ID,
		"name":      upload.Name,
	})
}

// process runs the background worker for one accepted upload.
func (s *Server) process(ctx context.Context, job worker.Job) {
	if err := worker.New(s.store, s.tools, job, s.logger).Run(ctx); err != nil {
		s.metrics.IncProcessingFailures()
		s.logger.Error("upload processing failed",
			slog.Int64("upload_id", job.UploadID), slog.String("error", err.Error()))
	}
}

// notifyOnUpload fires the on-upload mails and the news push. Failures are
// logged and never bubble up to the producer.
func (s *Server) notifyOnUpload(ctx context.Context, uploadID int64) {
	upload, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		s.logger.Warn("notification lookup failed", slog.String("error", err.Error()))
		return
	}
	uploader, err := s.store.UploaderOf(ctx, upload)
	if err != nil {
		s.logger.Warn("notification lookup failed", slog.String("error", err.Error()))
		return
	}
	show, err := s.store.ShowOf(ctx, upload)
	if err != nil {
		s.logger.Warn("notification lookup failed", slog.String("error", err.Error()))
		return
	}

	if err := s.mailer.SendOnUploadInternal(upload, uploader, show); err != nil {
		s.logger.Warn("internal mail failed", slog.String("error", err.Error()))
	}
	if err := s.mailer.SendOnUploadProducer(upload, uploader, show); err != nil {
		s.logger.Warn("producer mail failed", slog.String("error", err.Error()))
	}
	supervisors, err := s.supervisorsOf(ctx, show)
	if err != nil {
		s.logger.Warn("supervisor lookup failed", slog.String("error", err.Error()))
	} else if err := s.mailer.SendOnUploadSupervisors(upload, uploader, show, supervisors); err != nil {
		s.logger.Warn("supervisor mail failed", slog.String("error", err.Error()))
	}
	if err := s.pusher.PushNewsUpload(ctx, upload, uploader, show); err != nil {
		s.logger.Warn("push notification failed", slog.String("error", err.Error()))
	}
}

func (s *Server) supervisorsOf(ctx context.Context, show *catalog.Show) ([]catalog.Person, error) {
	supervisors := make([]catalog.Person, 0, len(show.Supervisors))
	for _, id := range show.Supervisors.IDs() {
		person, err := s.store.Person(ctx, id)
		if err != nil {
			return nil, err
		}
		supervisors = append(supervisors, *person)
	}
	return supervisors, nil
}

// handleExport streams the export saga of one upload as server-sent events.
// The literal CLOSE CONNECTION frame always terminates the stream.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != s.cfg.Server.WebhookSecret || s.cfg.Server.WebhookSecret == "" {
		s.writeError(w, http.StatusUnauthorized, "invalid key")
		return
	}
	uploadID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid upload id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.metrics.IncExportsStarted()
	failed := false
	for event := range s.saga.Run(r.Context(), uploadID) {
		if event.State == export.StateError {
			failed = true
		}
		if _, err := io.WriteString(w, event.Message()); err != nil {
			s.logger.Warn("export stream consumer gone", slog.Int64("upload_id", uploadID))
			return
		}
		flusher.Flush()
	}
	if failed {
		s.metrics.IncExportsFailed()
	}
	_, _ = io.WriteString(w, export.CloseMessage)
	flusher.Flush()
}

// saveFormFile copies one multipart file into the staging directory. The
// submitted filename is untrusted; only a slugged stem and the extension
// survive.
func (s *Server) saveFormFile(r *http.Request, field, tempDir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	stem := textutil.Slug(strings.TrimSuffix(filepath.Base(header.Filename), ext))
	if stem == "" {
		stem = "upload"
	}
	target := filepath.Join(tempDir, fmt.Sprintf("%s-%s%s", field, stem, ext))
	out, err := os.Create(target)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return target, nil
}
