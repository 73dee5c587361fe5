// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pagefinder/internal/config"
)

func TestInitialize_ConsoleColors(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	InitializeWriter(config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "pagefinder",
		Colors:      config.ColorConfig{Info: "green"},
	}, &buf)

	Component("scan").Info("region visited")
	Sync()

	out := buf.String()
	assert.Contains(t, out, ansiColors["green"]+"INFO"+ansiReset)
	assert.Contains(t, out, "[pagefinder.scan]")
	assert.Contains(t, out, "region visited")
}

func TestInitialize_JSONFormat(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	InitializeWriter(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "pf"}, &buf)
	GetLogger().Debug("hidden")
	GetLogger().Warn("shown")
	Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug entries are below the configured level")

	var entry map[string]any
	require.NoError(t, jsoniter.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "pf", entry["logger"])
	assert.Equal(t, "shown", entry["msg"])
}

func TestInitialize_OnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var first, second bytes.Buffer
	InitializeWriter(config.LoggerConfig{Level: "info", Format: "json"}, &first)
	InitializeWriter(config.LoggerConfig{Level: "info", Format: "json"}, &second)

	GetLogger().Info("hello")
	Sync()
	assert.NotEmpty(t, first.String())
	assert.Empty(t, second.String())
}

func TestInitialize_InvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	InitializeWriter(config.LoggerConfig{Level: "loud", Format: "json"}, &buf)
	GetLogger().Debug("no")
	GetLogger().Info("yes")
	Sync()

	assert.NotContains(t, buf.String(), `"no"`)
	assert.Contains(t, buf.String(), `"yes"`)
}

func TestInitialize_RotatingFile(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	path := filepath.Join(t.TempDir(), "pagefinder.log")
	var console bytes.Buffer
	InitializeWriter(config.LoggerConfig{
		Level:   "info",
		Format:  "console",
		LogFile: path,
		MaxSize: 1,
	}, &console)

	GetLogger().Info("persisted entry")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"persisted entry"`)
}

func TestGetLogger_BeforeInitializeIsNop(t *testing.T) {
	ResetForTest()
	l := GetLogger()
	require.NotNil(t, l)
	l.Info("dropped")
	Sync()
}
