package email

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

const ProviderLog = "log"

// LogService writes emails to the log instead of sending them. It is the default when no
// SMTP relay is configured.
type LogService struct {
	logger *slog.Logger
}

func NewLogService(logger *slog.Logger) *LogService {
	return &LogService{logger: logger.With("module", "email_log")}
}

func (s *LogService) SendEmail(ctx context.Context, message Message) (*Result, error) {
	messageID := uuid.NewString()

	s.logger.InfoContext(ctx, "Email not delivered, log provider in use",
		"message_id", messageID,
		"to", message.To,
		"subject", message.Subject,
	)

	return &Result{Success: true, MessageID: messageID, Provider: ProviderLog}, nil
}

func (s *LogService) RenderTemplate(input string, variables map[string]any) string {
	return RenderTemplate(input, variables)
}

func (s *LogService) IsValidEmail(address string) bool {
	return IsValidEmail(address)
}
