package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "localhost", cfg.GetString("rspamd.host"))
	assert.Equal(t, 11333, cfg.GetInt("rspamd.port"))

	timeout, err := cfg.GetDuration("rspamd.timeout")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	assert.Equal(t, "0.0.0.0:10025", cfg.GetString("filter.listen_address"))
	assert.False(t, cfg.GetBool("filter.block_quarantine"))
	assert.Equal(t, "X-Phish-Classification", cfg.GetString("filter.headers.classification"))

	assert.Equal(t, "memory", cfg.GetString("store.type"))
	retention, err := cfg.GetDuration("store.retention")
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, retention)

	assert.Equal(t, []string{"*"}, cfg.GetStringSlice("http.cors_origins"))
}

func TestGetDurationRejectsGarbage(t *testing.T) {
	v := NewEmptyViper()
	v.Set("rspamd.timeout", "not a duration")
	cfg := NewFromViper(v)

	_, err := cfg.GetDuration("rspamd.timeout")
	assert.Error(t, err)
}
