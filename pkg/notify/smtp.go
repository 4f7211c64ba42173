package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/doodlesbykumbi/licensing-in-go/pkg/errs"
)

// SMTPSink mails alerts as multipart/alternative with the Markdown body as
// the text part and its goldmark rendering as the HTML part.
type SMTPSink struct {
	addr string
	from string
	auth smtp.Auth
	md   goldmark.Markdown
}

// NewSMTPSink builds a sink for a host:port relay. auth may be nil for
// relays that accept unauthenticated submission.
func NewSMTPSink(addr, from string, auth smtp.Auth) *SMTPSink {
	return &SMTPSink{addr: addr, from: from, auth: auth, md: goldmark.New()}
}

func (s *SMTPSink) Notify(ctx context.Context, msg Message) error {
	const op = "notify.SMTP"
	if len(msg.Recipients) == 0 {
		return nil
	}

	data, err := s.compose(msg)
	if err != nil {
		return errs.Wrap(errs.CodeNotificationFailed, op, err)
	}
	if err := s.send(ctx, msg.Recipients, data); err != nil {
		return errs.Wrap(errs.CodeNotificationFailed, op, err)
	}
	return nil
}

func (s *SMTPSink) compose(msg Message) ([]byte, error) {
	var html bytes.Buffer
	if err := s.md.Convert([]byte(msg.Body), &html); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", s.from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.Recipients, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	parts := []struct {
		contentType string
		body        []byte
	}{
		{"text/plain; charset=utf-8", []byte(msg.Body)},
		{"text/html; charset=utf-8", html.Bytes()},
	}
	for _, p := range parts {
		w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {p.contentType}})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.body); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *SMTPSink) send(ctx context.Context, to []string, data []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		_ = conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	if s.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(s.auth); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
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
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
