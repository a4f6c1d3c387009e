package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

const ProviderSMTP = "smtp"

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string `validate:"required"`
	Port     int    `validate:"required,min=1,max=65535"`
	Username string
	Password string
	From     string `validate:"required,email"`
	FromName string
}

// SMTPService delivers email through an SMTP relay.
type SMTPService struct {
	config SMTPConfig
	logger *slog.Logger
	send   func(*gomail.Message) error
}

// NewSMTPService validates config and returns a service dialing the relay per message.
func NewSMTPService(config SMTPConfig, logger *slog.Logger) (*SMTPService, error) {
	err := validate.Struct(config)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP configuration: %w", err)
	}

	dialer := gomail.NewDialer(config.Host, config.Port, config.Username, config.Password)

	return &SMTPService{
		config: config,
		logger: logger.With("module", "email_smtp"),
		send: func(msg *gomail.Message) error {
			return dialer.DialAndSend(msg)
		},
	}, nil
}

// SendEmail sends message. Delivery failures are reported in the Result, not as an error;
// an error means the context ended first. Nothing is dialed once ctx is done, but gomail
// cannot abort a session in progress: a message already handed to the relay when ctx
// expires may still be delivered after SendEmail returned the context error.
func (s *SMTPService) SendEmail(ctx context.Context, message Message) (*Result, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("sending email to %s: %w", message.To, err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.config.Host)

	msg := gomail.NewMessage()
	msg.SetHeader("Message-ID", messageID)
	msg.SetAddressHeader("From", s.config.From, s.config.FromName)
	msg.SetHeader("To", message.To)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/plain", message.Text)

	if message.HTML != "" {
		msg.AddAlternative("text/html", message.HTML)
	}

	done := make(chan error, 1)

	go func() {
		done <- s.send(msg)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("sending email to %s: %w", message.To, ctx.Err())
	case err := <-done:
		if err != nil {
			s.logger.WarnContext(ctx, "SMTP delivery failed", "to", message.To, "error", err)

			return &Result{Success: false, Error: err.Error(), Provider: ProviderSMTP}, nil
		}
	}

	s.logger.DebugContext(ctx, "Email sent", "to", message.To, "message_id", messageID)

	return &Result{Success: true, MessageID: messageID, Provider: ProviderSMTP}, nil
}

func (s *SMTPService) RenderTemplate(input string, variables map[string]any) string {
	return RenderTemplate(input, variables)
}

func (s *SMTPService) IsValidEmail(address string) bool {
	return IsValidEmail(address)
}
