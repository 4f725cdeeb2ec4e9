package resultstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/amd-treatment-sim/internal/domain"
)

func TestRunKey_Deterministic(t *testing.T) {
	a := RunKey("checksum-a", 1000, 5, 42)
	b := RunKey("checksum-a", 1000, 5, 42)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "amdsim:run:"))
}

func TestRunKey_SensitiveToEveryInput(t *testing.T) {
	base := RunKey("checksum-a", 1000, 5, 42)

	assert.NotEqual(t, base, RunKey("checksum-b", 1000, 5, 42))
	assert.NotEqual(t, base, RunKey("checksum-a", 1001, 5, 42))
	assert.NotEqual(t, base, RunKey("checksum-a", 1000, 5.5, 42))
	assert.NotEqual(t, base, RunKey("checksum-a", 1000, 5, 43))
}

func TestNewCacheClient_BadURL(t *testing.T) {
	_, err := NewCacheClient(domain.CacheConfig{RedisURL: "not-a-url"})
	assert.Error(t, err)
}
