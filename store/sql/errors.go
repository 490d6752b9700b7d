package sqlstore

import (
	"errors"
	"strings"
)

var errStoreNotConfigured = errors.New("sqlstore: store is not configured")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
