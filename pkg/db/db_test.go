package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type widget struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestNewTestDetectsDuplicates(t *testing.T) {
	conn, err := NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))

	require.NoError(t, conn.Create(&widget{ID: 1, Code: "a"}).Error)
	err = conn.Create(&widget{ID: 2, Code: "a"}).Error
	assert.True(t, IsDuplicateKeyErr(err), "got %v", err)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("create: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry")))
}

func TestDialect(t *testing.T) {
	for _, kind := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialect(Config{Type: kind, Name: "flowmarket"})
		require.NoError(t, err, kind)
		assert.NotNil(t, d)
	}

	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}
