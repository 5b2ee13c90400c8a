package notify

import (
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"aircheck/internal/catalog"
	"aircheck/internal/config"
)

// Mailer sends the on-upload notification mails over SMTP. A mailer without
// a configured host silently drops every message.
type Mailer struct {
	host          string
	port          int
	user          string
	password      string
	senderAddress string
	senderName    string
	onUploadMail  string
	contactMail   string
	devMode       bool
	logger        *slog.Logger

	// send is swapped in tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer wires a mailer from configuration.
func NewMailer(cfg *config.Config, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		host:          cfg.Mail.Host,
		port:          cfg.Mail.Port,
		user:          cfg.Mail.User,
		password:      cfg.Mail.Password,
		senderAddress: cfg.Mail.SenderAddress,
		senderName:    cfg.Mail.SenderName,
		onUploadMail:  cfg.Mail.OnUploadMail,
		contactMail:   cfg.Mail.ContactMail,
		devMode:       cfg.Server.DevMode,
		logger:        logger,
		send:          smtp.SendMail,
	}
}

// SendOnUploadInternal notifies the station inbox about a new submission.
func (m *Mailer) SendOnUploadInternal(upload *catalog.Upload, uploader *catalog.Person, show *catalog.Show) error {
	subject := fmt.Sprintf("%su-%05d: New upload %s", m.testPrefix(), upload.ID, show.Name)
	body := fmt.Sprintf(
		"A new upload was submitted.\n\n"+
			"Show: %s\nEpisode: %s\nSubmitted by: %s\nPlanned broadcast: %s\n",
		show.Name, upload.Name, uploader.Name,
		upload.PlannedBroadcastAt.Format("02.01.2006 15:04"))
	return m.deliver(m.onUploadMail, subject, body)
}

// SendOnUploadProducer confirms the submission to the producer.
func (m *Mailer) SendOnUploadProducer(upload *catalog.Upload, uploader *catalog.Person, show *catalog.Show) error {
	subject := fmt.Sprintf("%sYour upload was received", m.testPrefix())
	body := fmt.Sprintf(
		"Hi %s\n\n"+
			"Your episode %q for %s was received and is being processed for the "+
			"broadcast on %s.\n\nQuestions? Write to %s.\n",
		uploader.Name, upload.Name, show.Name,
		upload.PlannedBroadcastAt.Format("02.01.2006 15:04"), m.contactMail)
	return m.deliver(uploader.Email, subject, body)
}

// SendOnUploadSupervisors notifies every supervisor of the show. Shows
// without supervisors are fine; nothing is sent.
func (m *Mailer) SendOnUploadSupervisors(upload *catalog.Upload, uploader *catalog.Person, show *catalog.Show, supervisors []catalog.Person) error {
	subject := fmt.Sprintf("%su-%05d: New upload %s", m.testPrefix(), upload.ID, show.Name)
	body := fmt.Sprintf(
		"A new upload for a show you supervise was submitted.\n\n"+
			"Show: %s\nEpisode: %s\nSubmitted by: %s\nPlanned broadcast: %s\n",
		show.Name, upload.Name, uploader.Name,
		upload.PlannedBroadcastAt.Format("02.01.2006 15:04"))
	for _, supervisor := range supervisors {
		if err := m.deliver(supervisor.Email, subject, body); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mailer) deliver(recipient, subject, body string) error {
	if m.host == "" {
		m.logger.Debug("mail disabled, dropping message", slog.String("subject", subject))
		return nil
	}
	if strings.TrimSpace(recipient) == "" {
		return fmt.Errorf("mail: empty recipient for %q", subject)
	}

	msg := m.message(recipient, subject, body)
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := m.send(addr, auth, m.senderAddress, []string{recipient}, msg); err != nil {
		return fmt.Errorf("mail: send %q to %s: %w", subject, recipient, err)
	}
	m.logger.Info("mail sent", slog.String("recipient", recipient), slog.String("subject", subject))
	return nil
}

// message renders one RFC 5322 plain-text message.
func (m *Mailer) message(recipient, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.senderName, m.senderAddress)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// testPrefix marks mails sent from a development instance.
func (m *Mailer) testPrefix() string {
	if m.devMode {
		return "[Test] "
	}
	return ""
}
