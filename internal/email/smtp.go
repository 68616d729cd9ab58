package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// SMTPSender delivers mail through a single SMTP relay.
type SMTPSender struct {
	addr     string
	host     string
	username string
	password string
	from     string
	implicit bool
}

// NewSMTPSender creates an SMTPSender for host:port. Port 465 speaks
// implicit TLS; anything else goes through smtp.SendMail, which
// upgrades with STARTTLS when the server offers it.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		addr:     fmt.Sprintf("%s:%d", host, port),
		host:     host,
		username: username,
		password: password,
		from:     from,
		implicit: port == 465,
	}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	msg := []byte(strings.Join([]string{
		"From: " + s.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		body,
	}, "\r\n"))

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.implicit {
		return s.sendTLS(auth, to, msg)
	}
	return smtp.SendMail(s.addr, auth, s.from, []string{to}, msg)
}

func (s *SMTPSender) sendTLS(auth smtp.Auth, to string, msg []byte) error {
	host, _, _ := net.SplitHostPort(s.addr)
	conn, err := tls.Dial("tcp", s.addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	return wc.Close()
}
