package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"time"
)

// SMTPProvider delivers over plain SMTP or implicit TLS. Local development
// points it at Mailhog.
type SMTPProvider struct {
	addr     string
	host     string
	auth     smtp.Auth
	from     string
	fromLine string
	useTLS   bool
	timeout  time.Duration
}

func NewSMTPProvider(host string, port int, username, password, fromEmail, fromName string, useTLS bool) *SMTPProvider {
	p := &SMTPProvider{
		addr:     net.JoinHostPort(host, fmt.Sprint(port)),
		host:     host,
		from:     fromEmail,
		fromLine: fromEmail,
		useTLS:   useTLS,
		timeout:  15 * time.Second,
	}
	if fromName != "" {
		p.fromLine = fmt.Sprintf("%s <%s>", fromName, fromEmail)
	}
	if username != "" && password != "" {
		p.auth = smtp.PlainAuth("", username, password, host)
	}
	return p
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	body, err := p.compose(msg)
	if err != nil {
		return err
	}

	client, err := p.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if p.auth != nil {
		if err := client.Auth(p.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(p.from); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return client.Quit()
}

func (p *SMTPProvider) dial(ctx context.Context) (*smtp.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var (
		conn net.Conn
		err  error
	)
	if p.useTLS {
		dialer := &tls.Dialer{Config: &tls.Config{ServerName: p.host, MinVersion: tls.VersionTLS12}}
		conn, err = dialer.DialContext(ctx, "tcp", p.addr)
	} else {
		var dialer net.Dialer
		conn, err = dialer.DialContext(ctx, "tcp", p.addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", p.addr, err)
	}

	client, err := smtp.NewClient(conn, p.host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, nil
}

// compose builds the RFC 5322 message. A message with both bodies becomes
// multipart/alternative.
func (p *SMTPProvider) compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n", p.fromLine, msg.To, msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		mw := multipart.NewWriter(&buf)
		fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())
		for _, part := range []struct{ kind, body string }{
			{"text/plain", msg.Text},
			{"text/html", msg.HTML},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.kind + "; charset=UTF-8"}})
			if err != nil {
				return nil, fmt.Errorf("smtp compose: %w", err)
			}
			if _, err := w.Write([]byte(part.body)); err != nil {
				return nil, fmt.Errorf("smtp compose: %w", err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("smtp compose: %w", err)
		}
	case msg.HTML != "":
		buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.HTML)
	default:
		buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		buf.WriteString(msg.Text)
	}
	return buf.Bytes(), nil
}
