package export

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"aircheck/internal/baserow"
	"aircheck/internal/catalog"
	"aircheck/internal/omnia"
	"aircheck/internal/services"
	"aircheck/internal/states"
)

type fakeStore struct {
	upload     catalog.Upload
	show       catalog.Show
	platformID int64
	states     []states.State
}

func (s *fakeStore) Upload(ctx context.Context, id int64) (*catalog.Upload, error) {
	upload := s.upload
	return &upload, nil
}

func (s *fakeStore) ShowOf(ctx context.Context, upload *catalog.Upload) (*catalog.Show, error) {
	show := s.show
	return &show, nil
}

func (s *fakeStore) ReplaceUploadState(ctx context.Context, uploadID int64, state states.State) error {
	s.states = append(s.states, state)
	return nil
}

func (s *fakeStore) SetPlatformID(ctx context.Context, uploadID int64, platformID int64) error {
	s.platformID = platformID
	return nil
}

type fakePlatform struct {
	calls          []string
	byReferenceErr error
	duplicate      *omnia.MediaResult
	uploadErr      error
	coverErr       error
	remote         omnia.MediaResult

	connectedShows []int64
	attributes     url.Values
	restrictions   url.Values
	coverURL       string
}

func managementResponse(itemID int64) *omnia.Response {
	raw, _ := json.Marshal(omnia.ManagementResult{
		Message:    "ok",
		ItemUpdate: &omnia.ItemUpdate{StreamType: omnia.StreamTypeAudio, GeneratedID: itemID},
	})
	return &omnia.Response{Result: raw}
}

func mediaResponse(media omnia.MediaResult) *omnia.Response {
	raw, _ := json.Marshal(media)
	return &omnia.Response{Result: raw}
}

func (p *fakePlatform) UploadByURL(ctx context.Context, st omnia.StreamType, fileURL string, opts omnia.UploadOptions) (*omnia.Response, error) {
	p.calls = append(p.calls, "upload")
	if p.uploadErr != nil {
		return nil, p.uploadErr
	}
	return managementResponse(9001), nil
}

func (p *fakePlatform) ByID(ctx context.Context, st omnia.StreamType, itemID int64, params url.Values) (*omnia.Response, error) {
	p.calls = append(p.calls, "byid")
	return mediaResponse(p.remote), nil
}

func (p *fakePlatform) ByReference(ctx context.Context, st omnia.StreamType, reference string) (*omnia.Response, error) {
	p.calls = append(p.calls, "byreference")
	if p.byReferenceErr != nil {
		return nil, p.byReferenceErr
	}
	if p.duplicate != nil {
		return mediaResponse(*p.duplicate), nil
	}
	return nil, services.Wrap(services.ErrNotFound, "omnia", "byrefnr", reference, nil)
}

func (p *fakePlatform) Update(ctx context.Context, st omnia.StreamType, itemID int64, attributes url.Values) (*omnia.Response, error) {
	p.calls = append(p.calls, "update")
	p.attributes = attributes
	return managementResponse(itemID), nil
}

func (p *fakePlatform) UpdateRestrictions(ctx context.Context, st omnia.StreamType, itemID int64, restrictions url.Values) (*omnia.Response, error) {
	p.calls = append(p.calls, "restrictions")
	p.restrictions = restrictions
	return managementResponse(itemID), nil
}

func (p *fakePlatform) UpdateCover(ctx context.Context, st omnia.StreamType, itemID int64, coverURL string) (*omnia.Response, error) {
	p.calls = append(p.calls, "cover")
	if p.coverErr != nil {
		return nil, p.coverErr
	}
	p.coverURL = coverURL
	return managementResponse(itemID), nil
}

func (p *fakePlatform) ConnectShow(ctx context.Context, st omnia.StreamType, itemID, showID int64) (*omnia.Response, error) {
	p.calls = append(p.calls, "connect")
	p.connectedShows = append(p.connectedShows, showID)
	return managementResponse(itemID), nil
}

func testUpload() catalog.Upload {
	planned := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	return catalog.Upload{
		ID:                 42,
		Name:               "Episode 12",
		Show:               baserow.LinkTo(2),
		Description:        "An episode about things.",
		PlannedBroadcastAt: planned,
		OptimizedFile:      baserow.FileField{{URL: "https://store/opt.mp3", Name: "opt.mp3"}},
		Cover:              baserow.FileField{{URL: "https://store/cover.jpg", Name: "cover.jpg"}},
	}
}

func testShow() catalog.Show {
	platformID := int64(55)
	return catalog.Show{
		ID:          2,
		Name:        "Morning Show",
		Description: "The morning show.",
		PlatformID:  &platformID,
		Cover:       baserow.FileField{{URL: "https://store/show.jpg", Name: "show.jpg"}},
	}
}

// matchingRemote builds the remote item the validation step expects after a
// clean run.
func matchingRemote(upload catalog.Upload, showIDs ...int64) omnia.MediaResult {
	connected := make([]omnia.ConnectedShow, len(showIDs))
	for i, id := range showIDs {
		connected[i] = omnia.ConnectedShow{ID: id}
	}
	return omnia.MediaResult{
		General: omnia.MediaResultGeneral{
			ID:          9001,
			Title:       upload.Name,
			Description: upload.Description,
			ReleaseDate: upload.PlannedBroadcastAt.Unix(),
		},
		ConnectedShows: connected,
		Restrictions: &omnia.Restrictions{
			ValidFrom:  upload.PlannedBroadcastAt.Add(time.Hour).Unix(),
			ValidUntil: upload.PlannedBroadcastAt.Add(7*24*time.Hour + time.Hour).Unix(),
		},
	}
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var collected []Event
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}

func TestRunHappyPath(t *testing.T) {
	store := &fakeStore{upload: testUpload(), show: testShow()}
	platform := &fakePlatform{remote: matchingRemote(store.upload, 55, 7)}
	saga := New(store, platform, []int64{7}, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	last := events[len(events)-1]
	if last.Target != TargetValidate || last.State != StateDone {
		t.Fatalf("unexpected final event %+v", last)
	}
	for _, event := range events {
		if event.State == StateError {
			t.Fatalf("unexpected error event %+v", event)
		}
	}
	if store.platformID != 9001 {
		t.Errorf("platform id = %d", store.platformID)
	}
	if len(store.states) != 1 || store.states[0] != states.PublishDone {
		t.Errorf("unexpected state writes %v", store.states)
	}
	if len(platform.connectedShows) != 2 || platform.connectedShows[0] != 55 || platform.connectedShows[1] != 7 {
		t.Errorf("unexpected show connections %v", platform.connectedShows)
	}
	if got := platform.attributes.Get("title"); got != "Episode 12" {
		t.Errorf("title = %q", got)
	}
	wantFrom := store.upload.PlannedBroadcastAt.Add(time.Hour).Unix()
	if got := platform.restrictions.Get("validFrom"); got != strconv.FormatInt(wantFrom, 10) {
		t.Errorf("validFrom = %q, want %d", got, wantFrom)
	}
	if platform.coverURL != "https://store/cover.jpg" {
		t.Errorf("cover url = %q", platform.coverURL)
	}
}

func TestRunAlreadyExported(t *testing.T) {
	upload := testUpload()
	existing := int64(1234)
	upload.PlatformID = &existing
	store := &fakeStore{upload: upload, show: testShow()}
	platform := &fakePlatform{}
	saga := New(store, platform, nil, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d: %+v", len(events), events)
	}
	if events[0].State != StateError || events[0].Title != "Already exported" {
		t.Fatalf("unexpected event %+v", events[0])
	}
	if len(platform.calls) != 0 {
		t.Fatalf("no platform calls expected, got %v", platform.calls)
	}
}

func TestRunDuplicateIsWarningNotError(t *testing.T) {
	store := &fakeStore{upload: testUpload(), show: testShow()}
	duplicate := matchingRemote(store.upload, 55)
	platform := &fakePlatform{
		duplicate: &duplicate,
		remote:    matchingRemote(store.upload, 55),
	}
	saga := New(store, platform, nil, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	var sawDuplicateWarning bool
	for _, event := range events {
		if event.Target == TargetDuplicates && event.State == StateWarning {
			sawDuplicateWarning = true
		}
	}
	if !sawDuplicateWarning {
		t.Fatalf("expected duplicate warning in %+v", events)
	}
	if store.platformID != 9001 {
		t.Fatal("export should proceed past a duplicate warning")
	}
}

func TestRunValidationMismatchIsTerminalWarning(t *testing.T) {
	store := &fakeStore{upload: testUpload(), show: testShow()}
	remote := matchingRemote(store.upload, 55)
	remote.General.Title = "Somebody renamed this"
	platform := &fakePlatform{remote: remote}
	saga := New(store, platform, nil, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	last := events[len(events)-1]
	if last.Target != TargetValidate || last.State != StateWarning {
		t.Fatalf("unexpected final event %+v", last)
	}
	if _, ok := last.Items["title"]; !ok {
		t.Fatalf("expected title mismatch in %+v", last.Items)
	}
	if store.platformID != 9001 {
		t.Fatal("validation mismatches must not undo the persist step")
	}
}

func TestRunUploadFailureStopsPipeline(t *testing.T) {
	store := &fakeStore{upload: testUpload(), show: testShow()}
	platform := &fakePlatform{uploadErr: errors.New("queue rejected the file")}
	saga := New(store, platform, nil, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	last := events[len(events)-1]
	if last.Target != TargetUpload || last.State != StateError {
		t.Fatalf("unexpected final event %+v", last)
	}
	for _, call := range platform.calls {
		if call == "update" || call == "cover" || call == "connect" {
			t.Fatalf("later step ran after upload failure: %v", platform.calls)
		}
	}
	if store.platformID != 0 {
		t.Fatal("platform id must not be persisted after a failed upload")
	}
}

func TestRunMissingCoverFailsCoverStep(t *testing.T) {
	upload := testUpload()
	upload.Cover = nil
	show := testShow()
	show.Cover = nil
	store := &fakeStore{upload: upload, show: show}
	platform := &fakePlatform{remote: matchingRemote(upload, 55)}
	saga := New(store, platform, nil, nil)

	events := drain(t, saga.Run(context.Background(), 42))

	last := events[len(events)-1]
	if last.Target != TargetCover || last.State != StateError {
		t.Fatalf("unexpected final event %+v", last)
	}
	if store.platformID != 0 {
		t.Fatal("persist step ran after cover failure")
	}
}

func TestEventMessageIsSSEFrame(t *testing.T) {
	event := Event{Target: TargetInit, State: StateDone, Title: "Upload loaded"}
	message := event.Message()
	if !strings.HasPrefix(message, "data: {") || !strings.HasSuffix(message, "}\n\n") {
		t.Fatalf("unexpected frame %q", message)
	}
	var decoded Event
	if err := json.Unmarshal([]byte(message[len("data: "):len(message)-2]), &decoded); err != nil {
		t.Fatalf("frame payload is not JSON: %v", err)
	}
	if decoded.Target != TargetInit {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}
