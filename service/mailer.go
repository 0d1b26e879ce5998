package service

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/smartbook/backend/models"
)

// Mailer delivers transactional mail.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string, validFor time.Duration) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay with mandatory STARTTLS.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg}
}

var otpTemplate = template.Must(template.New("otp").Parse(
	`<h3>Hi {{.Name}}, your SmartBook code is: <b>{{.Code}}</b></h3><p>It expires in {{.Minutes}} minutes.</p>`))

func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string, validFor time.Duration) error {
	var body strings.Builder
	err := otpTemplate.Execute(&body, struct {
		Name, Code string
		Minutes    int
	}{name, code, int(validFor.Minutes())})
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, "SmartBook")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your SmartBook OTP Code")
	msg.SetBody("text/html", body.String())

	d := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	if deadline, ok := ctx.Deadline(); ok {
		d.Timeout = time.Until(deadline)
	}
	if err := d.DialAndSend(msg); err != nil {
		return fmt.Errorf("%w: smtp: %v", models.ErrUpstream, err)
	}
	return nil
}
