package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/sms-archive/internal/archive"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "XML_DEDUP_KEY", "CSV_DEDUP_KEY", "CSV_TIMEZONE", "SKIP_INVALID_RECORDS", "RABBIT_QUEUE", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "import_jobs", cfg.RabbitQueue)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.SkipInvalidRecords)

	opts, err := cfg.IngestOptions()
	require.NoError(t, err)
	assert.Equal(t, archive.DedupByContact, opts.XMLDedup)
	assert.Equal(t, archive.DedupByConversation, opts.CSVDedup)
	assert.Equal(t, time.Local, opts.Location)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("XML_DEDUP_KEY", "Conversation")
	t.Setenv("CSV_TIMEZONE", "America/New_York")
	t.Setenv("SKIP_INVALID_RECORDS", "true")
	t.Setenv("ETAG_CACHE_TTL", "90m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.ETagCacheTTL)

	opts, err := cfg.IngestOptions()
	require.NoError(t, err)
	assert.Equal(t, archive.DedupByConversation, opts.XMLDedup)
	assert.Equal(t, "America/New_York", opts.Location.String())
	assert.True(t, opts.SkipInvalid)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_DRIVER", "")
	t.Setenv("CSV_DEDUP_KEY", "sender")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("CSV_DEDUP_KEY", "")
	t.Setenv("CSV_TIMEZONE", "Mars/Olympus_Mons")
	_, err = Load()
	assert.Error(t, err)
}
