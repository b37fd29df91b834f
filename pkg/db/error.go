package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKeyErr reports whether err is a unique constraint violation on any supported dialect.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var duplicateKeyMarkers = []string{
	"duplicate key value violates unique constraint", // postgres 23505
	"Error 1062",                                     // mysql
	"UNIQUE constraint failed",                       // sqlite 2067
}
