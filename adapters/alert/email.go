package alert

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"dqmon/domain/quality"
	"dqmon/internal"
	"dqmon/ports"
)

const (
	DefaultSMTPHost = "smtp.gmail.com"
	DefaultSMTPPort = 465
)

// EmailConfig holds the sender account and the recipient
type EmailConfig struct {
	Sender   string `json:"sender" mapstructure:"sender"`
	Receiver string `json:"receiver" mapstructure:"receiver"`
	Password string `json:"password" mapstructure:"password"`
	SMTPHost string `json:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int    `json:"smtp_port" mapstructure:"smtp_port"`
}

// Enabled reports whether enough is configured to send mail
func (c EmailConfig) Enabled() bool {
	return c.Sender != "" && c.Receiver != ""
}

// Recipients splits the receiver on commas
func (c EmailConfig) Recipients() []string {
	var out []string
	for _, r := range strings.Split(c.Receiver, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

type sendFunc func(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailSender sends reports as multipart (plain text and HTML) mail. Port 465
// uses implicit TLS; other ports use STARTTLS when the server offers it.
type EmailSender struct {
	cfg  EmailConfig
	log  *internal.Logger
	send sendFunc
}

var _ ports.AlertSender = (*EmailSender)(nil)

// NewEmailSender creates an email sender, defaulting to Gmail over port 465
func NewEmailSender(cfg EmailConfig, log *internal.Logger) *EmailSender {
	if cfg.SMTPHost == "" {
		cfg.SMTPHost = DefaultSMTPHost
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = DefaultSMTPPort
	}
	if log == nil {
		log = internal.Nop()
	}
	s := &EmailSender{cfg: cfg, log: log}
	if cfg.SMTPPort == 465 {
		s.send = sendImplicitTLS
	} else {
		s.send = sendStartTLS
	}
	return s
}

func (s *EmailSender) Channel() string { return "email" }

// Send composes and delivers one alert mail
func (s *EmailSender) Send(ctx context.Context, rec *quality.ReportRecord) error {
	msg, err := BuildMail(s.cfg.Sender, s.cfg.Recipients(), Compose(rec), PlainBody(rec))
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.SMTPHost, strconv.Itoa(s.cfg.SMTPPort))
	auth := smtp.PlainAuth("", s.cfg.Sender, s.cfg.Password, s.cfg.SMTPHost)
	if err := s.send(ctx, addr, auth, s.cfg.Sender, s.cfg.Recipients(), msg); err != nil {
		return err
	}
	s.log.Info("Email alert sent successfully.")
	return nil
}

// BuildMail renders an RFC 5322 message with plain-text and HTML alternatives
func BuildMail(from string, to []string, m Message, plain string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	parts := []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", plain},
		{"text/html; charset=utf-8", m.HTML},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, fmt.Errorf("failed to create mail part: %w", err)
		}
		if _, err := w.Write([]byte(p.content)); err != nil {
			return nil, fmt.Errorf("failed to write mail part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func sendImplicitTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp login failed: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func sendStartTLS(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(addr, auth, from, to, msg)
}
