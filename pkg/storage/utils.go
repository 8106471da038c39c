package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fedecaccia/mongodb/pkg/domain"
)

// checkContext maps an expired or cancelled context to an error. Deadline
// expiry matches both domain.ErrTimeout and context.DeadlineExceeded.
func checkContext(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		// the deadline timer may not have fired yet
		deadline, ok := ctx.Deadline()
		if !ok || time.Now().Before(deadline) {
			return nil
		}
		err = context.DeadlineExceeded
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return err
}

// scanCheckEvery bounds how many documents a scan visits between context checks
const scanCheckEvery = 256

func validateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: database name cannot be empty", domain.ErrInvalidDocument)
	}
	if strings.ContainsAny(name, "/\\. \"$\x00") {
		return fmt.Errorf("%w: invalid database name %q", domain.ErrInvalidDocument, name)
	}
	return nil
}

func validateNamespace(dbName, collName string) error {
	if err := validateDatabaseName(dbName); err != nil {
		return err
	}
	if collName == "" {
		return fmt.Errorf("%w: collection name cannot be empty", domain.ErrInvalidDocument)
	}
	if strings.ContainsAny(collName, "/$\x00") || strings.HasPrefix(collName, "system.") {
		return fmt.Errorf("%w: invalid collection name %q", domain.ErrInvalidDocument, collName)
	}
	return nil
}
