package mailer

import (
	"bytes"
	"fmt"
	"net/http"
	"text/template"
	"time"

	mail "gopkg.in/mail.v2"
)

type smtpMailer struct {
	fromEmail string
	host      string
	port      int
	username  string
	password  string
}

func NewSMTP(fromEmail, host string, port int, username, password string) Client {
	return &smtpMailer{
		fromEmail: fromEmail,
		host:      host,
		port:      port,
		username:  username,
		password:  password,
	}
}

// Send renders the named template (subject + body blocks) and delivers
// it, retrying a few times before giving up.
func (m *smtpMailer) Send(templateFile, username, email string, data any) (int, error) {
	tmpl, err := template.ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return -1, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return -1, err
	}

	body := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(body, "body", data); err != nil {
		return -1, err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", fmt.Sprintf("%s <%s>", FromName, m.fromEmail))
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/html", body.String())

	dialer := mail.NewDialer(m.host, m.port, m.username, m.password)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if lastErr = dialer.DialAndSend(msg); lastErr == nil {
			return http.StatusOK, nil
		}
		time.Sleep(time.Second * time.Duration(i+1))
	}
	return -1, fmt.Errorf("failed to send email after %d attempts: %w", maxRetries, lastErr)
}
