package database

import (
	"fmt"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
)

func TestIsNoChange(t *testing.T) {
	assert.True(t, isNoChange(migrate.ErrNoChange))
	assert.True(t, isNoChange(migrate.ErrNilVersion))

	// Wrapped sentinels still classify as no-change.
	assert.True(t, isNoChange(fmt.Errorf("rolling back migration: %w", migrate.ErrNilVersion)))

	assert.False(t, isNoChange(nil))
	assert.False(t, isNoChange(assert.AnError))
}
