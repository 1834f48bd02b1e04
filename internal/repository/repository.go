package repository

import (
	"errors"

	"stcoins/internal/domain"

	"gorm.io/gorm"
)

// translate maps gorm's not-found to the domain sentinel so services never import gorm errors for lookups.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// IsDuplicate reports whether err is a unique-index violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
