package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// storageErr marks a failed storage call as retryable. A cancelled request is
// passed through unchanged since nobody is waiting for a retry hint.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrStorageUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// normalizePage applies the 1-based page default and the limit cap.
func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
