package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/dukex/recruitflow/pkg/persistence"
	"github.com/dukex/recruitflow/pkg/persistence/file"
	"github.com/dukex/recruitflow/pkg/persistence/memory"
	"github.com/dukex/recruitflow/pkg/persistence/mongodb"
	"github.com/dukex/recruitflow/pkg/persistence/postgresql"
)

const defaultMongoDatabase = "recruitflow"

var supportedPersistenceProviders = []string{"file", "memory", "postgres", "postgresql", "mongodb", "mongodb+srv"}

// NewPersistence opens the store named by the scheme of databaseURL. A URL without a
// supported scheme is a path for the file store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "memory":
		return memory.NewPersistence()
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "mongodb", "mongodb+srv":
		database, err := mongoDatabase(databaseURL)
		if err != nil {
			return nil, err
		}

		return mongodb.NewPersistence(ctx, logger, databaseURL, database)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

// mongoDatabase takes the database name from the URL path.
func mongoDatabase(databaseURL string) (string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid MongoDB URL: %w", err)
	}

	database := strings.Trim(parsed.Path, "/")
	if database == "" {
		return defaultMongoDatabase, nil
	}

	return database, nil
}
