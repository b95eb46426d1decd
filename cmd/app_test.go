package cmd

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/billing"
	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
)

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	prev := appConfig
	t.Cleanup(func() { appConfig = prev })
	appConfig = &config.MainConfig{OutputDir: "out"}

	assert.Equal(t, filepath.Join("out", "a.xlsx"), outputPath("", "a.xlsx"))
	assert.Equal(t, "elsewhere.xlsx", outputPath("elsewhere.xlsx", "a.xlsx"))
}

func TestWriteOutput(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "nested", "ok.txt")
	require.NoError(t, writeOutput(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	failed := filepath.Join(dir, "failed.txt")
	boom := errors.New("boom")
	err = writeOutput(failed, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, failed)
}

func TestValidationTarget(t *testing.T) {
	prev := appConfig
	t.Cleanup(func() { appConfig = prev })
	appConfig = config.Default()

	cfg, err := validationTarget(nil)
	require.NoError(t, err)
	assert.Same(t, appConfig, cfg)

	path := filepath.Join(t.TempDir(), "candidate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: ./elsewhere\n"), 0644))
	cfg, err = validationTarget([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "./elsewhere", cfg.DataDir)

	_, err = validationTarget([]string{filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printResult(&buf, billing.Result{Success: true, Message: "done"}))
	assert.Equal(t, "done\n", buf.String())

	cause := errors.New("nope")
	buf.Reset()
	assert.ErrorIs(t, printResult(&buf, billing.Result{Error: cause}), cause)
	assert.Empty(t, buf.String())
}
