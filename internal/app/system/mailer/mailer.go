// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoRecipient is returned by Send when Email.To is empty.
var ErrNoRecipient = errors.New("mailer: email has no recipient")

// Config holds SMTP settings.
type Config struct {
	Host     string // e.g., localhost for Mailpit
	Port     int    // e.g., 1025 for Mailpit, 587 for SES
	User     string // empty disables AUTH
	Pass     string
	From     string
	FromName string
}

// Attachment is a file sent alongside the message body.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Email is a single outgoing message.
type Email struct {
	To          string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Mailer sends email over SMTP.
type Mailer struct {
	cfg  Config
	log  *zap.Logger
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// New creates a Mailer.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{cfg: cfg, log: logger, send: smtp.SendMail, now: time.Now}
}

// Send delivers e. The body is multipart/alternative when both text and HTML
// are present and wrapped in multipart/mixed when there are attachments.
func (m *Mailer) Send(e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return ErrNoRecipient
	}
	msg, err := m.build(e)
	if err != nil {
		return fmt.Errorf("mailer: build message: %w", err)
	}

	addr := m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	if err := m.send(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		m.log.Error("email send failed", zap.String("to", e.To), zap.String("subject", e.Subject), zap.Error(err))
		return fmt.Errorf("mailer: send: %w", err)
	}
	m.log.Info("email sent", zap.String("to", e.To), zap.String("subject", e.Subject))
	return nil
}

func (m *Mailer) build(e Email) ([]byte, error) {
	var buf bytes.Buffer
	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}

	fmt.Fprintf(&buf, "From: %s\r\n", from.String())
	fmt.Fprintf(&buf, "To: %s\r\n", e.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if len(e.Attachments) == 0 {
		if err := writeBody(&buf, e); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mixed.Boundary())

	var body bytes.Buffer
	if err := writeBody(&body, e); err != nil {
		return nil, err
	}
	hdr, content := splitHeader(body.Bytes())
	part, err := mixed.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}

	for _, a := range e.Attachments {
		ct := "application/octet-stream"
		if mt, _, err := mime.ParseMediaType(a.ContentType); err == nil {
			ct = mt
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", mime.FormatMediaType(ct, map[string]string{"name": a.Filename}))
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
		h.Set("Content-Transfer-Encoding", "base64")
		w, err := mixed.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if err := writeBase64(w, a.Data); err != nil {
			return nil, err
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBody writes the Content-Type header, a blank line and the body.
func writeBody(buf *bytes.Buffer, e Email) error {
	switch {
	case e.HTMLBody == "":
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(e.TextBody)
		return nil
	case e.TextBody == "":
		buf.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		buf.WriteString(e.HTMLBody)
		return nil
	}

	alt := multipart.NewWriter(buf)
	fmt.Fprintf(buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", alt.Boundary())
	for _, p := range []struct{ ct, body string }{
		{"text/plain; charset=utf-8", e.TextBody},
		{"text/html; charset=utf-8", e.HTMLBody},
	} {
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", p.ct)
		w, err := alt.CreatePart(h)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return err
		}
	}
	return alt.Close()
}

// splitHeader separates the single Content-Type header line written by
// writeBody from the content that follows the blank line.
func splitHeader(b []byte) (textproto.MIMEHeader, []byte) {
	h := textproto.MIMEHeader{}
	i := bytes.Index(b, []byte("\r\n\r\n"))
	if i < 0 {
		return h, b
	}
	for _, line := range strings.Split(string(b[:i]), "\r\n") {
		if k, v, ok := strings.Cut(line, ":"); ok {
			h.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}
	return h, b[i+4:]
}

func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
