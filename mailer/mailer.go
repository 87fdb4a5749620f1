package mailer

import (
	"errors"
	"fmt"
	"sync"

	"marketplace-backend/config"
	"marketplace-backend/dtos"
	"marketplace-backend/models"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

var ErrMailerNotConfigured = errors.New("smtp not configured")

// Sender delivers composed messages. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	from   string
	sender Sender
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// New returns a mailer backed by SMTP. With incomplete settings every send
// fails with ErrMailerNotConfigured.
func New(cfg config.SMTPConfig, logger zerolog.Logger) *Mailer {
	var sender Sender
	if cfg.Enabled() {
		sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	return NewWithSender(cfg.From, sender, logger)
}

func NewWithSender(from string, sender Sender, logger zerolog.Logger) *Mailer {
	return &Mailer{
		from:   from,
		sender: sender,
		log:    logger.With().Str("component", "mailer").Logger(),
	}
}

// Send delivers one HTML email synchronously.
func (m *Mailer) Send(to, subject, htmlBody string) error {
	if m.sender == nil || m.from == "" {
		return ErrMailerNotConfigured
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}
	return nil
}

// SendOrderConfirmation renders and sends the confirmation in the background.
func (m *Mailer) SendOrderConfirmation(conf dtos.OrderConfirmation) {
	m.async(conf.CustomerEmail, "order_confirmation", func() error {
		body, err := render(confirmationTmpl, struct {
			FirstName string
			Order     dtos.OrderConfirmation
		}{firstName(conf.CustomerName), conf})
		if err != nil {
			return err
		}
		return m.Send(conf.CustomerEmail, fmt.Sprintf("Order Confirmed - %s", conf.OrderNumber), body)
	})
}

// SendOrderStatusUpdate notifies the customer of a status change in the background.
func (m *Mailer) SendOrderStatusUpdate(email, name, orderNumber string, status models.OrderStatus) {
	m.async(email, "order_status", func() error {
		body, err := render(statusTmpl, struct {
			FirstName   string
			OrderNumber string
			Status      models.OrderStatus
		}{firstName(name), orderNumber, status})
		if err != nil {
			return err
		}
		return m.Send(email, fmt.Sprintf("Order %s - Status Update", orderNumber), body)
	})
}

// Wait blocks until every background send has finished.
func (m *Mailer) Wait() {
	m.wg.Wait()
}

func (m *Mailer) async(to, kind string, send func() error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := send(); err != nil {
			m.log.Error().Err(err).Str("to", to).Str("kind", kind).Msg("email not sent")
			return
		}
		m.log.Info().Str("to", to).Str("kind", kind).Msg("email sent")
	}()
}
