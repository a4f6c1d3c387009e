// Package email defines the email collaborator used by SEND_EMAIL actions and its
// SMTP and log-only implementations.
package email

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/recruitflow/pkg/template"
)

// Message is an outgoing email. HTML is optional.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Result describes the outcome of a send. Success=false carries the reason in Error.
type Result struct {
	Success   bool
	MessageID string
	Error     string
	Provider  string
}

// Service sends emails and renders their templates.
type Service interface {
	SendEmail(ctx context.Context, message Message) (*Result, error)
	RenderTemplate(template string, variables map[string]any) string
	IsValidEmail(address string) bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsValidEmail reports whether address is a syntactically valid email address.
func IsValidEmail(address string) bool {
	if address == "" {
		return false
	}

	return validate.Var(address, "email") == nil
}

// RenderTemplate substitutes {{variable}} placeholders.
func RenderTemplate(input string, variables map[string]any) string {
	return template.Render(input, variables)
}
