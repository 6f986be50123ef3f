package worker

import (
	"gopkg.in/gomail.v2"

	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/service"
)

// Sender delivers one mail synchronously.
type Sender interface {
	Send(mail service.Email) error
}

// SMTPSender sends through a gomail dialer.
type SMTPSender struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer
}

// NewSMTPSender builds a sender for the configured relay.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *SMTPSender) Send(mail service.Email) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.FromAddress, s.cfg.FromName)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/plain", mail.PlainBody)
	if mail.HTMLBody != "" {
		m.AddAlternative("text/html", mail.HTMLBody)
	}
	return s.dialer.DialAndSend(m)
}
