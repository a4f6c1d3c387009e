package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dukex/recruitflow/pkg/email"
)

var ErrUserNotFound = errors.New("user not found")

// UserDirectory resolves CRM user ids to email addresses.
type UserDirectory interface {
	EmailFor(ctx context.Context, userID string) (string, error)
}

// StaticUserDirectory maps user ids to email addresses. A user id that is itself an email
// address resolves to itself.
type StaticUserDirectory map[string]string

func (d StaticUserDirectory) EmailFor(_ context.Context, userID string) (string, error) {
	if address, ok := d[userID]; ok {
		return address, nil
	}

	if email.IsValidEmail(userID) {
		return userID, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUserNotFound, userID)
}

// LoadUserDirectory reads a JSON object of user id to email address. An empty path yields
// an empty directory.
func LoadUserDirectory(path string) (StaticUserDirectory, error) {
	directory := StaticUserDirectory{}
	if path == "" {
		return directory, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}

	err = json.Unmarshal(data, &directory)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user directory: %w", err)
	}

	return directory, nil
}
