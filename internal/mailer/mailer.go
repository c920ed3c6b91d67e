// Package mailer delivers the queued OTP emails over SMTP.
package mailer

import (
	"fmt"

	"auth_backend/internal/config"
	"auth_backend/internal/models"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	host     string
	port     int
	username string
	password string
}

func New(cfg config.SMTP) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Send renders the OTP email for the message's purpose and delivers it.
func (m *Mailer) Send(msg models.Message) error {
	const op = "mailer.Send"

	subject, body := render(msg)

	mail := gomail.NewMessage()
	mail.SetHeader("To", msg.To)
	mail.SetHeader("From", m.username)
	mail.SetHeader("Subject", subject)
	mail.SetBody("text/plain", body)

	dialer := gomail.NewDialer(m.host, m.port, m.username, m.password)
	if err := dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func render(msg models.Message) (subject, body string) {
	switch msg.Purpose {
	case "password-reset":
		subject = "Reset your password"
		body = fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.", msg.Code)
	default:
		subject = "Verify your email"
		body = fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", msg.Code)
	}

	return subject, body
}
