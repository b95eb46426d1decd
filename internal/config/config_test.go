package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLoadMainConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "data_dir: ./ledger\ningest_timeout: 90s\ncsv:\n  delimiter: \"|\"\n")

	cfg, err := LoadMainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./ledger", cfg.DataDir)
	assert.Equal(t, "./input", cfg.InputDir)
	assert.Equal(t, 90*time.Second, cfg.IngestTimeout)
	assert.Equal(t, 50, cfg.MaxFileMB)
	assert.Equal(t, int64(50<<20), cfg.MaxFileBytes())
	assert.Equal(t, 10000, cfg.ChunkRows)
	assert.Equal(t, "|", cfg.CSV.Delimiter)
	assert.Equal(t, 1, cfg.CSV.HeaderRows)
	assert.Equal(t, 2, cfg.CSV.DataStartRow)
	assert.Equal(t, BackendXLSX, cfg.Storage.Backend)
	assert.Equal(t, filepath.Join("./ledger", "commit.journal"), cfg.JournalPath())
}

func TestValidate(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg := Default()
	require.NoError(t, Validate(cfg))

	bad := Default()
	bad.LogLevel = "chatty"
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.Storage.Backend = "sqlite"
	assert.Error(t, Validate(bad))

	bad = Default()
	bad.Storage.Backend = BackendPostgres
	assert.Error(t, Validate(bad), "postgres needs a DSN")

	bad.Storage.DSN = "postgres://localhost/freight"
	assert.NoError(t, Validate(bad))

	bad = Default()
	bad.CSV.DataStartRow = 1
	assert.Error(t, Validate(bad))
}

func TestFromViperEnvOverride(t *testing.T) {
	t.Setenv("FREIGHTBILL_MAX_FILE_MB", "5")

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("FREIGHTBILL")
	v.AutomaticEnv()

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxFileMB)
	assert.Equal(t, 5*time.Minute, cfg.IngestTimeout)
	assert.Equal(t, ",", cfg.CSV.Delimiter)
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "fedex.yaml"), `
carrier: FedEx
csv_settings:
  delimiter: ";"
  header_rows: 2
column_overrides:
  "Acct Name": client
`)
	writeFile(t, filepath.Join(dir, "ups.yml"), "sheet: Detail\n")

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	fedex := profiles.Lookup(" fedex ")
	require.NotNil(t, fedex)
	assert.Equal(t, "client", fedex.ColumnOverrides["Acct Name"])

	ups := profiles.Lookup("UPS")
	require.NotNil(t, ups)
	assert.Equal(t, "Detail", ups.Sheet)

	cfg := Default()
	merged := cfg.CSVFor(fedex)
	assert.Equal(t, ";", merged.Delimiter)
	assert.Equal(t, 2, merged.HeaderRows)
	assert.Equal(t, 3, merged.DataStartRow)
	assert.Equal(t, "UTF-8", merged.Encoding)

	assert.Nil(t, profiles.Lookup("dhl"))
}

func TestLoadProfilesMissingDir(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}
