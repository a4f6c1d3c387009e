package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/recruitflow/pkg/email"
	"github.com/dukex/recruitflow/pkg/notification"
)

// MockEmailService is a mock implementation of email.Service interface. Only SendEmail
// is mocked; rendering and address validation use the real implementations.
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendEmail(ctx context.Context, message email.Message) (*email.Result, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*email.Result), args.Error(1)
}

func (m *MockEmailService) RenderTemplate(template string, variables map[string]any) string {
	return email.RenderTemplate(template, variables)
}

func (m *MockEmailService) IsValidEmail(address string) bool {
	return email.IsValidEmail(address)
}

// MockNotifier is a mock implementation of notification.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n notification.Notification) error {
	args := m.Called(ctx, n)

	return args.Error(0)
}
