// Package export publishes an optimized upload to the distribution platform
// as a strictly sequential pipeline with step-by-step progress reporting.
//
// Each step's output feeds the next, so there is no parallelism between
// steps. A hard error at any step emits one error event and aborts the rest;
// side effects of completed steps are not rolled back. The progress channel
// is closed after the final event, which is the end-of-stream signal for
// consumers.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"aircheck/internal/catalog"
	"aircheck/internal/omnia"
	"aircheck/internal/services"
	"aircheck/internal/states"
)

const displayTime = "02.01.2006 15:04"

// Availability window relative to the planned broadcast time.
const (
	availableFromOffset  = time.Hour
	availableUntilOffset = 7*24*time.Hour + time.Hour
)

// Store is the slice of catalog operations the saga needs. Satisfied by
// *catalog.Store.
type Store interface {
	Upload(ctx context.Context, id int64) (*catalog.Upload, error)
	ShowOf(ctx context.Context, upload *catalog.Upload) (*catalog.Show, error)
	ReplaceUploadState(ctx context.Context, uploadID int64, state states.State) error
	SetPlatformID(ctx context.Context, uploadID int64, platformID int64) error
}

// Platform is the slice of distribution platform operations the saga needs.
// Satisfied by *omnia.Client.
type Platform interface {
	UploadByURL(ctx context.Context, streamType omnia.StreamType, fileURL string, opts omnia.UploadOptions) (*omnia.Response, error)
	ByID(ctx context.Context, streamType omnia.StreamType, itemID int64, params url.Values) (*omnia.Response, error)
	ByReference(ctx context.Context, streamType omnia.StreamType, reference string) (*omnia.Response, error)
	Update(ctx context.Context, streamType omnia.StreamType, itemID int64, attributes url.Values) (*omnia.Response, error)
	UpdateRestrictions(ctx context.Context, streamType omnia.StreamType, itemID int64, restrictions url.Values) (*omnia.Response, error)
	UpdateCover(ctx context.Context, streamType omnia.StreamType, itemID int64, coverURL string) (*omnia.Response, error)
	ConnectShow(ctx context.Context, streamType omnia.StreamType, itemID, showID int64) (*omnia.Response, error)
}

// Saga runs export pipelines. One instance serves many runs; each run is
// independent and sequential.
type Saga struct {
	store       Store
	platform    Platform
	linkShowIDs []int64
	logger      *slog.Logger
}

// New wires a saga. linkShowIDs are platform show ids every export is
// additionally connected to.
func New(store Store, platform Platform, linkShowIDs []int64, logger *slog.Logger) *Saga {
	if logger == nil {
		logger = slog.Default()
	}
	return &Saga{store: store, platform: platform, linkShowIDs: linkShowIDs, logger: logger}
}

// Run starts the export of one upload and returns its ordered progress
// stream. The channel is closed after the terminal event; closing is the
// end-of-stream signal. A consumer that stops reading cancels the run via
// ctx, which is treated as an abort, never as success.
func (s *Saga) Run(ctx context.Context, uploadID int64) <-chan Event {
	events := make(chan Event, 1)
	go func() {
		defer close(events)
		s.run(ctx, uploadID, events)
	}()
	return events
}

// run executes the eight steps in order, stopping at the first hard error.
func (s *Saga) run(ctx context.Context, uploadID int64, events chan<- Event) {
	logger := s.logger.With(slog.Int64("upload_id", uploadID))

	upload, show, ok := s.stepInit(ctx, uploadID, events)
	if !ok {
		return
	}
	reference := upload.CanonicalReference()

	if !s.stepDuplicates(ctx, reference, events) {
		return
	}

	itemID, ok := s.stepUpload(ctx, upload, reference, events)
	if !ok {
		return
	}
	logger.Info("platform item created", slog.Int64("item_id", itemID))

	request, ok := s.stepMetadata(ctx, upload, show, itemID, events)
	if !ok {
		return
	}

	if !s.stepCover(ctx, upload, show, itemID, events) {
		return
	}

	if !s.stepPersist(ctx, uploadID, itemID, events) {
		return
	}

	s.stepValidate(ctx, itemID, request, events)
	logger.Info("export finished", slog.Int64("item_id", itemID))
}

// stepInit loads the upload and its show and rejects re-exports. The
// already-exported case gets a distinct event shape so operators can tell
// "nothing to do" from a failure.
func (s *Saga) stepInit(ctx context.Context, uploadID int64, events chan<- Event) (*catalog.Upload, *catalog.Show, bool) {
	upload, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		s.fail(ctx, events, TargetInit, "Loading the upload failed", err)
		return nil, nil, false
	}
	if upload.Exported() {
		s.emit(ctx, events, Event{
			Target: TargetInit,
			State:  StateError,
			Title:  "Already exported",
			Description: fmt.Sprintf(
				"The upload already carries platform item id %d, there is nothing to do.", *upload.PlatformID),
			Items: map[string]string{"Platform ID": strconv.FormatInt(*upload.PlatformID, 10)},
		})
		return nil, nil, false
	}

	show, err := s.store.ShowOf(ctx, upload)
	if err != nil {
		s.fail(ctx, events, TargetShow, "Resolving the linked show failed", err)
		return nil, nil, false
	}
	if show.PlatformID == nil || *show.PlatformID == 0 {
		s.fail(ctx, events, TargetShow, "Show is not linked to the platform",
			services.Wrap(services.ErrPrecondition, "export", "show lookup",
				fmt.Sprintf("show %q carries no platform id", show.Name), nil))
		return nil, nil, false
	}

	ok := s.emit(ctx, events, Event{
		Target:      TargetInit,
		State:       StateDone,
		Title:       "Upload loaded",
		Description: "The upload and its show were loaded from the store.",
		Items: map[string]string{
			"ID":                strconv.FormatInt(upload.ID, 10),
			"Name":              upload.Name,
			"Show":              show.Name,
			"Planned Broadcast": upload.PlannedBroadcastAt.Format(displayTime),
		},
	})
	return upload, show, ok
}

// stepDuplicates looks for an existing platform item with the same canonical
// reference. A hit is a warning, not an error: publishing proceeds but is
// flagged for manual review.
func (s *Saga) stepDuplicates(ctx context.Context, reference string, events chan<- Event) bool {
	resp, err := s.platform.ByReference(ctx, omnia.StreamTypeAudio, reference)
	switch {
	case errors.Is(err, services.ErrNotFound):
		return s.emit(ctx, events, Event{
			Target:      TargetDuplicates,
			State:       StateDone,
			Title:       "No duplicate found",
			Description: fmt.Sprintf("No platform item carries the reference %s yet.", reference),
		})
	case err != nil:
		s.fail(ctx, events, TargetDuplicates, "Duplicate check failed", err)
		return false
	}

	items := map[string]string{"Reference": reference}
	if media, err := resp.Media(); err == nil {
		items["Platform ID"] = strconv.FormatInt(media.General.ID, 10)
		items["Title"] = media.General.Title
	}
	return s.emit(ctx, events, Event{
		Target:      TargetDuplicates,
		State:       StateWarning,
		Title:       "Duplicate on the platform",
		Description: "An item with this upload's reference already exists. The export continues, review the duplicate manually.",
		Items:       items,
	})
}

// stepUpload creates the platform item from the optimized file's URL with
// auto-publish and returns the assigned item id.
func (s *Saga) stepUpload(ctx context.Context, upload *catalog.Upload, reference string, events chan<- Event) (int64, bool) {
	if !s.emit(ctx, events, Event{
		Target:      TargetUpload,
		State:       StateRunning,
		Title:       "Creating the platform item...",
		Description: "A new item is created on the platform; the file transfer continues in the background.",
	}) {
		return 0, false
	}

	file, ok := upload.BroadcastFile()
	if !ok {
		s.fail(ctx, events, TargetUpload, "No file to publish",
			services.Wrap(services.ErrPrecondition, "export", "upload",
				"the upload carries neither an optimized nor a manual file", nil))
		return 0, false
	}

	resp, err := s.platform.UploadByURL(ctx, omnia.StreamTypeAudio, file.URL, omnia.UploadOptions{
		UseQueue:    true,
		Filename:    reference,
		RefNr:       reference,
		AutoPublish: true,
	})
	if err != nil {
		s.fail(ctx, events, TargetUpload, "Creating the platform item failed", err)
		return 0, false
	}
	result, err := resp.Management()
	if err != nil {
		s.fail(ctx, events, TargetUpload, "Creating the platform item failed", err)
		return 0, false
	}
	if result.ItemUpdate == nil {
		s.fail(ctx, events, TargetUpload, "Creating the platform item failed",
			services.Wrap(services.ErrExternalService, "export", "upload",
				"the platform response carries no item update", nil))
		return 0, false
	}

	itemID := result.ItemUpdate.GeneratedID
	ok = s.emit(ctx, events, Event{
		Target:      TargetUpload,
		State:       StateDone,
		Title:       "Platform item created",
		Description: "The item was created. The file upload continues in the background.",
		Items: map[string]string{
			"Platform ID": strconv.FormatInt(itemID, 10),
			"Reference":   reference,
			"File name":   reference,
		},
		CopyValues: map[string]string{"Platform ID": strconv.FormatInt(itemID, 10)},
	})
	return itemID, ok
}

// requested records what the metadata step asked the platform to store, for
// the validation step to compare against.
type requested struct {
	Title       string
	Description string
	ReleaseDate int64
	ValidFrom   int64
	ValidUntil  int64
	ShowIDs     []int64
}

// stepMetadata sets the item's metadata and availability window and connects
// it to the resolved show plus the configured link-to-all shows. When the
// upload has no description the show's one is used and the fallback is
// recorded in the event detail.
func (s *Saga) stepMetadata(ctx context.Context, upload *catalog.Upload, show *catalog.Show, itemID int64, events chan<- Event) (requested, bool) {
	if !s.emit(ctx, events, Event{
		Target:      TargetMetadata,
		State:       StateRunning,
		Title:       "Setting metadata...",
		Description: fmt.Sprintf("Metadata and restrictions for platform item %d are being set.", itemID),
	}) {
		return requested{}, false
	}

	description := upload.Description
	descriptionFallback := false
	if description == "" {
		description = show.Description
		descriptionFallback = true
	}
	validFrom := upload.PlannedBroadcastAt.Add(availableFromOffset)
	validUntil := upload.PlannedBroadcastAt.Add(availableUntilOffset)

	request := requested{
		Title:       upload.Name,
		Description: description,
		ReleaseDate: upload.PlannedBroadcastAt.Unix(),
		ValidFrom:   validFrom.Unix(),
		ValidUntil:  validUntil.Unix(),
		ShowIDs:     append([]int64{*show.PlatformID}, s.linkShowIDs...),
	}

	attributes := url.Values{}
	attributes.Set("title", request.Title)
	attributes.Set("description", request.Description)
	attributes.Set("releasedate", strconv.FormatInt(request.ReleaseDate, 10))
	if _, err := s.platform.Update(ctx, omnia.StreamTypeAudio, itemID, attributes); err != nil {
		s.fail(ctx, events, TargetMetadata, "Setting metadata failed", err)
		return requested{}, false
	}

	restrictions := url.Values{}
	restrictions.Set("validFrom", strconv.FormatInt(request.ValidFrom, 10))
	restrictions.Set("validUntil", strconv.FormatInt(request.ValidUntil, 10))
	if _, err := s.platform.UpdateRestrictions(ctx, omnia.StreamTypeAudio, itemID, restrictions); err != nil {
		s.fail(ctx, events, TargetMetadata, "Setting restrictions failed", err)
		return requested{}, false
	}

	for _, showID := range request.ShowIDs {
		if _, err := s.platform.ConnectShow(ctx, omnia.StreamTypeAudio, itemID, showID); err != nil {
			s.fail(ctx, events, TargetMetadata,
				fmt.Sprintf("Connecting to show %d failed", showID), err)
			return requested{}, false
		}
	}

	items := map[string]string{
		"Title":           request.Title,
		"Description":     request.Description,
		"First Air Date":  upload.PlannedBroadcastAt.Format(displayTime),
		"Available from":  validFrom.Format(displayTime),
		"Available until": validUntil.Format(displayTime),
	}
	if descriptionFallback {
		items["Description source"] = "show (upload has none)"
	}
	ok := s.emit(ctx, events, Event{
		Target:      TargetMetadata,
		State:       StateDone,
		Title:       "Metadata set",
		Description: fmt.Sprintf("Metadata and restrictions for platform item %d are set.", itemID),
		Items:       items,
	})
	return request, ok
}

// stepCover propagates a cover image: the upload's own cover wins, the
// show's cover is the fallback, and having neither is an error.
func (s *Saga) stepCover(ctx context.Context, upload *catalog.Upload, show *catalog.Show, itemID int64, events chan<- Event) bool {
	if !s.emit(ctx, events, Event{
		Target:      TargetCover,
		State:       StateRunning,
		Title:       "Setting cover...",
		Description: "The upload's own cover is used when present, otherwise the show's cover.",
	}) {
		return false
	}

	source := "upload"
	cover, ok := upload.Cover.First()
	if !ok {
		source = "show"
		cover, ok = show.Cover.First()
	}
	if !ok {
		s.fail(ctx, events, TargetCover, "No cover available",
			services.Wrap(services.ErrPrecondition, "export", "cover",
				"neither the upload nor the show carries a cover image", nil))
		return false
	}

	if _, err := s.platform.UpdateCover(ctx, omnia.StreamTypeAudio, itemID, cover.URL); err != nil {
		s.fail(ctx, events, TargetCover, "Setting the cover failed", err)
		return false
	}
	return s.emit(ctx, events, Event{
		Target:      TargetCover,
		State:       StateDone,
		Title:       "Cover set",
		Description: fmt.Sprintf("The %s cover was propagated to the platform.", source),
		Items:       map[string]string{"Source": source, "File": cover.Name},
	})
}

// stepPersist writes the platform item id back to the store and marks the
// publish track done.
func (s *Saga) stepPersist(ctx context.Context, uploadID, itemID int64, events chan<- Event) bool {
	if !s.emit(ctx, events, Event{
		Target:      TargetPersist,
		State:       StateRunning,
		Title:       "Updating the store entry...",
		Description: fmt.Sprintf("The new platform item id (%d) is being saved on the upload row.", itemID),
	}) {
		return false
	}
	if err := s.store.SetPlatformID(ctx, uploadID, itemID); err != nil {
		s.fail(ctx, events, TargetPersist, "Saving the platform id failed", err)
		return false
	}
	if err := s.store.ReplaceUploadState(ctx, uploadID, states.PublishDone); err != nil {
		s.fail(ctx, events, TargetPersist, "Updating the publish state failed", err)
		return false
	}
	return s.emit(ctx, events, Event{
		Target:      TargetPersist,
		State:       StateDone,
		Title:       "Store entry updated",
		Description: fmt.Sprintf("The platform item id (%d) was saved and the publish state set to done.", itemID),
	})
}

// stepValidate re-fetches the published item and compares every propagated
// field against what was requested. Mismatches are collected into one
// warning; they never abort the saga.
func (s *Saga) stepValidate(ctx context.Context, itemID int64, request requested, events chan<- Event) {
	resp, err := s.platform.ByID(ctx, omnia.StreamTypeAudio, itemID, nil)
	if err != nil {
		s.warn(ctx, events, TargetValidate, "Validation could not load the item", err)
		return
	}
	media, err := resp.Media()
	if err != nil {
		s.warn(ctx, events, TargetValidate, "Validation could not decode the item", err)
		return
	}

	mismatches := map[string]string{}
	if media.General.Title != request.Title {
		mismatches["title"] = fmt.Sprintf("remote %q, requested %q", media.General.Title, request.Title)
	}
	if media.General.Description != request.Description {
		mismatches["description"] = fmt.Sprintf("remote %q, requested %q", media.General.Description, request.Description)
	}
	if media.General.ReleaseDate != request.ReleaseDate {
		mismatches["release date"] = fmt.Sprintf("remote %d, requested %d", media.General.ReleaseDate, request.ReleaseDate)
	}
	if media.Restrictions == nil {
		mismatches["restrictions"] = "remote item carries no availability window"
	} else {
		if media.Restrictions.ValidFrom != request.ValidFrom {
			mismatches["available from"] = fmt.Sprintf("remote %d, requested %d", media.Restrictions.ValidFrom, request.ValidFrom)
		}
		if media.Restrictions.ValidUntil != request.ValidUntil {
			mismatches["available until"] = fmt.Sprintf("remote %d, requested %d", media.Restrictions.ValidUntil, request.ValidUntil)
		}
	}
	connected := make(map[int64]bool, len(media.ConnectedShows))
	for _, show := range media.ConnectedShows {
		connected[show.ID] = true
	}
	for _, showID := range request.ShowIDs {
		if !connected[showID] {
			mismatches[fmt.Sprintf("show %d", showID)] = "item is not connected to the show"
		}
	}

	if len(mismatches) == 0 {
		s.emit(ctx, events, Event{
			Target:      TargetValidate,
			State:       StateDone,
			Title:       "Validation passed",
			Description: "All propagated fields match the published item.",
		})
		return
	}
	s.emit(ctx, events, Event{
		Target:      TargetValidate,
		State:       StateWarning,
		Title:       "Validation found mismatches",
		Description: "The published item differs from what was requested. Review the listed fields manually.",
		Items:       mismatches,
	})
}

// emit delivers one event in order. It reports false when the consumer is
// gone (context canceled), which aborts the run.
func (s *Saga) emit(ctx context.Context, events chan<- Event, event Event) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		s.logger.Warn("export aborted, consumer gone", slog.String("target", event.Target))
		return false
	}
}

func (s *Saga) fail(ctx context.Context, events chan<- Event, target, title string, err error) {
	s.logger.Error("export step failed", slog.String("target", target), slog.String("error", err.Error()))
	s.emit(ctx, events, Event{
		Target:      target,
		State:       StateError,
		Title:       title,
		Description: fmt.Sprintf("Error: %s", err),
	})
}

func (s *Saga) warn(ctx context.Context, events chan<- Event, target, title string, err error) {
	s.emit(ctx, events, Event{
		Target:      target,
		State:       StateWarning,
		Title:       title,
		Description: fmt.Sprintf("Error: %s", err),
	})
}
