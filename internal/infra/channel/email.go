// Package channel implements the outbound message channels: SMTP email and
// the UltraMsg WhatsApp gateway. Both satisfy port.ChannelSender.
package channel

import (
	"context"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/asherv/martpal-go/internal/domain"
)

// EmailSender delivers plain-text messages over SMTP.
type EmailSender struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewEmailSender creates an SMTP sender.
func NewEmailSender(host string, port int, user, password, from string, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
		logger: logger,
	}
}

// Send delivers one message. gomail has no context support, so cancellation
// is checked before dialing only.
func (s *EmailSender) Send(ctx context.Context, destination, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", destination)
	m.SetHeader("Subject", "Message from MartPal")
	m.SetBody("text/plain", text)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("email send failed",
			zap.String("to", destination),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "smtp", Err: err}
	}

	s.logger.Debug("email sent", zap.String("to", destination))
	return nil
}
