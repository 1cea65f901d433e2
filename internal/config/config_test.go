package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, k := range keys {
		prev, existed := os.LookupEnv(k)
		os.Unsetenv(k)

		t.Cleanup(func() {
			if existed {
				os.Setenv(k, prev)
			}
		})
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_MODE", "KOHAKU_HUB_DB_BACKEND", "KOHAKU_HUB_DATABASE_URL")
	os.Setenv("KOHAKU_HUB_DATABASE_URL", "sqlite:///tmp/test.db")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Mode)
	assert.Equal(t, "sqlite", cfg.DBBackend)
	assert.Equal(t, int64(10*1024*1024), cfg.LFSThresholdBytes)
	assert.Equal(t, int64(300), cfg.FallbackCacheTTLSeconds)
}

func TestNew_RejectsMissingDatabaseURL(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_DATABASE_URL")

	_, err := New()
	assert.Error(t, err)
}

func TestNew_ParsesNullableQuotaField(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_DATABASE_URL", "KOHAKU_HUB_QUOTA_DEFAULT_USER_PRIVATE_BYTES")
	os.Setenv("KOHAKU_HUB_DATABASE_URL", "sqlite:///tmp/test.db")
	os.Setenv("KOHAKU_HUB_QUOTA_DEFAULT_USER_PRIVATE_BYTES", "5368709120")

	cfg, err := New()
	require.NoError(t, err)
	require.NotNil(t, cfg.QuotaDefaultUserPrivateBytes)
	assert.EqualValues(t, 5368709120, *cfg.QuotaDefaultUserPrivateBytes)
}

func TestNew_LeavesUnsetQuotaFieldNil(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_DATABASE_URL", "KOHAKU_HUB_QUOTA_DEFAULT_ORG_PUBLIC_BYTES")
	os.Setenv("KOHAKU_HUB_DATABASE_URL", "sqlite:///tmp/test.db")

	cfg, err := New()
	require.NoError(t, err)
	assert.Nil(t, cfg.QuotaDefaultOrgPublicBytes)
}

func TestNew_ParsesCommaSeparatedFallbackSources(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_DATABASE_URL", "KOHAKU_HUB_FALLBACK_SOURCES")
	os.Setenv("KOHAKU_HUB_DATABASE_URL", "sqlite:///tmp/test.db")
	os.Setenv("KOHAKU_HUB_FALLBACK_SOURCES", "https://huggingface.co, https://hf-mirror.com")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://huggingface.co", "https://hf-mirror.com"}, cfg.FallbackSources)
}

func TestNew_RejectsAdminEnabledWithoutSecret(t *testing.T) {
	clearEnv(t, "KOHAKU_HUB_DATABASE_URL", "KOHAKU_HUB_ADMIN_ENABLED", "KOHAKU_HUB_ADMIN_SECRET_TOKEN")
	os.Setenv("KOHAKU_HUB_DATABASE_URL", "sqlite:///tmp/test.db")
	os.Setenv("KOHAKU_HUB_ADMIN_ENABLED", "true")

	_, err := New()
	assert.Error(t, err)
}
