package report

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
)

// Mailer delivers one message. An empty html part means plain text only.
type Mailer interface {
	Send(subject, text, html string) error
}

// SMTPMailer sends through a plain SMTP submission endpoint with STARTTLS
// and password auth, the way transactional mail relays expect.
type SMTPMailer struct {
	Addr     string // host:port
	Sender   string
	Token    string
	Receiver string
}

func (m *SMTPMailer) Send(subject, text, html string) error {
	host, _, err := net.SplitHostPort(m.Addr)
	if err != nil {
		return fmt.Errorf("smtp addr %q: %w", m.Addr, err)
	}

	msg, err := buildMessage(m.Sender, m.Receiver, subject, text, html)
	if err != nil {
		return err
	}

	auth := smtp.PlainAuth("", m.Sender, m.Token, host)
	if err := smtp.SendMail(m.Addr, auth, m.Sender, []string{m.Receiver}, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage assembles an RFC 5322 message: multipart/alternative when
// an html part is present, bare text otherwise.
func buildMessage(from, to, subject, text, html string) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	if html == "" {
		fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(text)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, part := range []struct{ ctype, content string }{
		{"text/plain; charset=utf-8", text},
		{"text/html; charset=utf-8", html},
	} {
		h := textproto.MIMEHeader{"Content-Type": {part.ctype}}
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(part.content)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", w.Boundary())
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}
