package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, DefaultSchedulerInterval, cfg.SchedulerInterval)
	assert.Equal(t, DefaultSchedulerBatch, cfg.SchedulerBatchSize)
	assert.True(t, cfg.UseSimLedger())
	assert.False(t, cfg.ResumeAfterFailure)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SCHEDULER_INTERVAL", "30s")
	t.Setenv("SCHEDULER_RESUME_AFTER_FAILURE", "true")
	t.Setenv("LEDGER_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.SchedulerInterval)
	assert.Equal(t, 5*time.Second, cfg.LedgerTimeout)
	assert.True(t, cfg.ResumeAfterFailure)
}

func TestValidate_PrivateKey(t *testing.T) {
	cfg := &Config{
		PrivateKey:         "deadbeef", // too short
		RPCURL:             DefaultRPCURL,
		SchedulerInterval:  time.Minute,
		SchedulerBatchSize: 10,
		SchedulerWorkers:   2,
	}
	assert.Error(t, cfg.Validate())

	cfg.PrivateKey = "0x" + repeat("ab", 32)
	assert.NoError(t, cfg.Validate())

	cfg.PrivateKey = repeat("ab", 32)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_SchedulerBounds(t *testing.T) {
	cfg := &Config{
		SchedulerInterval:  500 * time.Millisecond,
		SchedulerBatchSize: 10,
		SchedulerWorkers:   2,
	}
	assert.Error(t, cfg.Validate())

	cfg.SchedulerInterval = time.Minute
	cfg.SchedulerBatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg.SchedulerBatchSize = 10
	cfg.SchedulerWorkers = 0
	assert.Error(t, cfg.Validate())
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}
