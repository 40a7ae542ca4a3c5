package services

import (
	"fmt"
	"io"
	"strconv"

	"learnhub/config"
	"learnhub/logger"

	"gopkg.in/gomail.v2"
)

// Mailer notifies a recipient that their certificate has been issued.
// Sending is best-effort; a failure never fails the issuance.
type Mailer interface {
	SendCertificateIssued(to, name, certificateID, verificationURL string, pdf []byte) error
}

// SMTPMailer sends over plain SMTP using the configured credentials.
type SMTPMailer struct{}

func NewSMTPMailer() *SMTPMailer {
	return &SMTPMailer{}
}

func (m *SMTPMailer) SendCertificateIssued(to, name, certificateID, verificationURL string, pdf []byte) error {
	logger.Info("Sending certificate email - Recipient: %s, Certificate: %s", to, certificateID)

	cfg := config.AppConfig

	from := cfg.EmailFrom
	if from == "" {
		from = cfg.SMTPUser
	}
	if from == "" {
		return fmt.Errorf("email sender not configured (set EMAIL_FROM or SMTP_USER)")
	}
	if cfg.SMTPUser == "" || cfg.SMTPPass == "" {
		return fmt.Errorf("smtp credentials not configured (set SMTP_USER and SMTP_PASS)")
	}

	port := 587
	if v, err := strconv.Atoi(cfg.SMTPPort); err == nil {
		port = v
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your certificate "+certificateID)
	msg.SetBody("text/html", fmt.Sprintf(
		"<p>Dear %s,</p><p>Your course certificate <b>%s</b> has been issued.</p>"+
			"<p>Anyone can verify it at <a href=%q>%s</a>.</p>",
		name, certificateID, verificationURL, verificationURL))

	if len(pdf) > 0 {
		msg.Attach(certificateID+".pdf", gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))
	}

	d := gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass)
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	logger.Info("Certificate email sent to %s", to)
	return nil
}
