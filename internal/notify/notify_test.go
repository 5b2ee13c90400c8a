package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"aircheck/internal/baserow"
	"aircheck/internal/catalog"
	"aircheck/internal/config"
)

func testRows() (*catalog.Upload, *catalog.Person, *catalog.Show) {
	upload := &catalog.Upload{
		ID:                 42,
		Name:               "Episode 12",
		PlannedBroadcastAt: time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC),
	}
	uploader := &catalog.Person{ID: 1, Name: "Producer", Email: "producer@example.org"}
	show := &catalog.Show{
		ID:     2,
		Name:   "Midday News",
		Medium: &baserow.SelectOption{Value: catalog.MediumNews},
	}
	return upload, uploader, show
}

func TestPushNewsUploadSendsForNewsShows(t *testing.T) {
	var gotTitle, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Notify.NtfyURL = server.URL
	cfg.Notify.NtfyTopic = "radio"
	pusher := NewPusher(cfg, nil)

	upload, uploader, show := testRows()
	if err := pusher.PushNewsUpload(context.Background(), upload, uploader, show); err != nil {
		t.Fatalf("PushNewsUpload: %v", err)
	}
	if gotTitle != "u-00042: New news upload Midday News" {
		t.Errorf("title = %q", gotTitle)
	}
	if gotPriority != "low" {
		t.Errorf("priority = %q", gotPriority)
	}
	if !strings.Contains(gotBody, "Producer") {
		t.Errorf("body = %q", gotBody)
	}
}

func TestPushNewsUploadSkipsMusicShows(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.Notify.NtfyURL = server.URL
	cfg.Notify.NtfyTopic = "radio"
	pusher := NewPusher(cfg, nil)

	upload, uploader, show := testRows()
	show.Medium = &baserow.SelectOption{Value: catalog.MediumMusic}
	if err := pusher.PushNewsUpload(context.Background(), upload, uploader, show); err != nil {
		t.Fatalf("PushNewsUpload: %v", err)
	}
	if called {
		t.Fatal("push sent for a non-news show")
	}
}

func TestNewPusherWithoutTopicIsNoop(t *testing.T) {
	cfg := &config.Config{}
	pusher := NewPusher(cfg, nil)
	if _, ok := pusher.(noopPusher); !ok {
		t.Fatalf("expected noop pusher, got %T", pusher)
	}
}

func newTestMailer(t *testing.T, devMode bool) (*Mailer, *[][]byte, *[]string) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Mail.Host = "smtp.example.org"
	cfg.Mail.Port = 465
	cfg.Mail.SenderAddress = "radio@example.org"
	cfg.Mail.SenderName = "Radio Uploads"
	cfg.Mail.OnUploadMail = "studio@example.org"
	cfg.Mail.ContactMail = "help@example.org"
	cfg.Server.DevMode = devMode

	mailer := NewMailer(cfg, nil)
	var messages [][]byte
	var recipients []string
	mailer.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		messages = append(messages, msg)
		recipients = append(recipients, to...)
		return nil
	}
	return mailer, &messages, &recipients
}

func TestSendOnUploadInternal(t *testing.T) {
	mailer, messages, recipients := newTestMailer(t, false)
	upload, uploader, show := testRows()

	if err := mailer.SendOnUploadInternal(upload, uploader, show); err != nil {
		t.Fatalf("SendOnUploadInternal: %v", err)
	}
	if len(*recipients) != 1 || (*recipients)[0] != "studio@example.org" {
		t.Fatalf("recipients = %v", *recipients)
	}
	msg := string((*messages)[0])
	if !strings.Contains(msg, "Subject: u-00042: New upload Midday News") {
		t.Errorf("unexpected subject in %q", msg)
	}
	if !strings.Contains(msg, "Submitted by: Producer") {
		t.Errorf("body missing uploader in %q", msg)
	}
}

func TestDevModePrefixesSubject(t *testing.T) {
	mailer, messages, _ := newTestMailer(t, true)
	upload, uploader, show := testRows()

	if err := mailer.SendOnUploadProducer(upload, uploader, show); err != nil {
		t.Fatalf("SendOnUploadProducer: %v", err)
	}
	if !strings.Contains(string((*messages)[0]), "Subject: [Test] Your upload was received") {
		t.Errorf("unexpected subject in %q", string((*messages)[0]))
	}
}

func TestSendOnUploadSupervisorsFansOut(t *testing.T) {
	mailer, _, recipients := newTestMailer(t, false)
	upload, uploader, show := testRows()
	supervisors := []catalog.Person{
		{Name: "One", Email: "one@example.org"},
		{Name: "Two", Email: "two@example.org"},
	}

	if err := mailer.SendOnUploadSupervisors(upload, uploader, show, supervisors); err != nil {
		t.Fatalf("SendOnUploadSupervisors: %v", err)
	}
	if len(*recipients) != 2 {
		t.Fatalf("recipients = %v", *recipients)
	}

	if err := mailer.SendOnUploadSupervisors(upload, uploader, show, nil); err != nil {
		t.Fatalf("no supervisors should be fine: %v", err)
	}
}

func TestMailerWithoutHostDropsSilently(t *testing.T) {
	cfg := &config.Config{}
	mailer := NewMailer(cfg, nil)
	upload, uploader, show := testRows()
	if err := mailer.SendOnUploadInternal(upload, uploader, show); err != nil {
		t.Fatalf("disabled mailer returned error: %v", err)
	}
}
