// Package catalog maps the tabular store's person, show, and upload tables
// onto typed rows and the write operations the workflow needs. All writes are
// per-field patches; the upload state multi-select is only ever changed
// through a read-modify-write of a single track so concurrent writers
// touching other tracks are not clobbered.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"aircheck/internal/baserow"
	"aircheck/internal/services"
	"aircheck/internal/states"
)

// Tables holds the row table ids of the three catalog tables.
type Tables struct {
	Person int64
	Show   int64
	Upload int64
}

// Store exposes the catalog operations over an injected store client.
type Store struct {
	client *baserow.Client
	tables Tables
	logger *slog.Logger
}

// NewStore wires a catalog store. The client is injected; there is no
// package-level instance.
func NewStore(client *baserow.Client, tables Tables, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, tables: tables, logger: logger}
}

// Upload fetches one upload row by id.
func (s *Store) Upload(ctx context.Context, id int64) (*Upload, error) {
	var row Upload
	if err := s.client.GetRow(ctx, s.tables.Upload, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Show fetches one show row by id.
func (s *Store) Show(ctx context.Context, id int64) (*Show, error) {
	var row Show
	if err := s.client.GetRow(ctx, s.tables.Show, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// Person fetches one person row by id.
func (s *Store) Person(ctx context.Context, id int64) (*Person, error) {
	var row Person
	if err := s.client.GetRow(ctx, s.tables.Person, id, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// PersonByUUID resolves a person by the UUID embedded in their personalized
// form URL. When no row matches, the legacy UUID column is tried; a hit there
// reports legacyUsed so callers can flag the upload.
func (s *Store) PersonByUUID(ctx context.Context, uuid string) (person *Person, legacyUsed bool, err error) {
	var rows []Person
	if err := s.client.ListRows(ctx, s.tables.Person, &rows, baserow.Equal("UUID", uuid)); err != nil {
		return nil, false, err
	}
	if len(rows) > 0 {
		return &rows[0], false, nil
	}
	if err := s.client.ListRows(ctx, s.tables.Person, &rows, baserow.Equal("Legacy UUID", uuid)); err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, services.Wrap(services.ErrNotFound, "catalog", "person lookup",
			fmt.Sprintf("no person with UUID %s", uuid), nil)
	}
	return &rows[0], true, nil
}

// UploaderOf resolves the single person linked as the upload's submitter.
func (s *Store) UploaderOf(ctx context.Context, upload *Upload) (*Person, error) {
	ids := upload.Uploader.IDs()
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrPrecondition, "catalog", "uploader lookup",
			fmt.Sprintf("upload %d links no uploader", upload.ID), nil)
	}
	return s.Person(ctx, ids[0])
}

// ShowOf resolves the single show linked to the upload.
func (s *Store) ShowOf(ctx context.Context, upload *Upload) (*Show, error) {
	ids := upload.Show.IDs()
	if len(ids) == 0 {
		return nil, services.Wrap(services.ErrPrecondition, "catalog", "show lookup",
			fmt.Sprintf("upload %d links no show", upload.ID), nil)
	}
	return s.Show(ctx, ids[0])
}

// ShowsByLink resolves every show referenced by a link field, in link order.
func (s *Store) ShowsByLink(ctx context.Context, link baserow.LinkField) ([]Show, error) {
	shows := make([]Show, 0, len(link))
	for _, id := range link.IDs() {
		show, err := s.Show(ctx, id)
		if err != nil {
			return nil, err
		}
		shows = append(shows, *show)
	}
	return shows, nil
}

// NewUpload carries the fields of a fresh submission.
type NewUpload struct {
	Name               string
	UploaderID         int64
	ShowID             int64
	PlannedBroadcastAt string
	Description        string
	ProducerComment    string
	LegacyURLUsed      bool
}

// CreateUpload inserts a new upload row with all tracks pending and returns
// the created row.
func (s *Store) CreateUpload(ctx context.Context, draft NewUpload) (*Upload, error) {
	fields := map[string]any{
		"Name":              draft.Name,
		"Uploaded by":       baserow.LinkTo(draft.UploaderID).Encode(),
		"Show":              baserow.LinkTo(draft.ShowID).Encode(),
		"Planned Broadcast": draft.PlannedBroadcastAt,
		"Status":            states.AllPending(draft.LegacyURLUsed).Values(),
	}
	if draft.Description != "" {
		fields["Description"] = draft.Description
	}
	if draft.ProducerComment != "" {
		fields["Producer Comment"] = draft.ProducerComment
	}
	var row Upload
	if err := s.client.CreateRow(ctx, s.tables.Upload, fields, &row); err != nil {
		return nil, err
	}
	s.logger.Info("upload row created", slog.Int64("upload_id", row.ID), slog.String("name", row.Name))
	return &row, nil
}

// ReplaceUploadState swaps one track's state on the upload row. The current
// remote set is re-read first so concurrent updates to other tracks survive.
func (s *Store) ReplaceUploadState(ctx context.Context, uploadID int64, state states.State) error {
	current, err := s.Upload(ctx, uploadID)
	if err != nil {
		return err
	}
	set, err := current.States()
	if err != nil {
		return err
	}
	set.Replace(state)
	fields := map[string]any{"Status": set.Values()}
	if err := s.client.UpdateRow(ctx, s.tables.Upload, uploadID, fields); err != nil {
		return err
	}
	s.logger.Debug("upload state replaced",
		slog.Int64("upload_id", uploadID), slog.String("state", string(state)))
	return nil
}

// SetOptimizationLog persists the human-readable silence log of an upload.
func (s *Store) SetOptimizationLog(ctx context.Context, uploadID int64, log string) error {
	return s.client.UpdateRow(ctx, s.tables.Upload, uploadID, map[string]any{
		"Optimization Log": log,
	})
}

// SetDuration writes the computed running time in the store's h:mm:ss form.
func (s *Store) SetDuration(ctx context.Context, uploadID int64, seconds float64) error {
	return s.client.UpdateRow(ctx, s.tables.Upload, uploadID, map[string]any{
		"Duration": baserow.Duration(seconds).Clock(),
	})
}

// SetPlatformID persists the platform item id assigned on publish.
func (s *Store) SetPlatformID(ctx context.Context, uploadID int64, platformID int64) error {
	return s.client.UpdateRow(ctx, s.tables.Upload, uploadID, map[string]any{
		"Platform ID": platformID,
	})
}

// AttachFile uploads a local file into the store's file storage and attaches
// it to the given file column of the upload row.
func (s *Store) AttachFile(ctx context.Context, uploadID int64, column, path string) error {
	ref, err := s.client.UploadFile(ctx, path)
	if err != nil {
		return err
	}
	field := baserow.FileField{ref}
	if err := s.client.UpdateRow(ctx, s.tables.Upload, uploadID, map[string]any{
		column: field.Encode(),
	}); err != nil {
		return err
	}
	s.logger.Debug("file attached",
		slog.Int64("upload_id", uploadID), slog.String("column", column), slog.String("file", ref.Name))
	return nil
}
