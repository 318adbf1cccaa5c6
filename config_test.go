package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(WithDefaults())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", config.SerialPort)
	assert.Equal(t, 115200, config.BaudRate)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, ".mesh_state.json", config.StateFile)
	assert.Equal(t, 10, config.ScanSeconds)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meshctl.yaml")
	content := []byte("serial_port: /dev/ttyACM0\nbaud_rate: 9600\nlog_level: debug\nscan_seconds: 5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	config, err := LoadConfig(WithDefaults(), WithFile(path))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", config.SerialPort)
	assert.Equal(t, 9600, config.BaudRate)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, 5, config.ScanSeconds)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, ".mesh_state.json", config.StateFile)
}

func TestLoadConfigEmptyFilePathIsNoop(t *testing.T) {
	config, err := LoadConfig(WithDefaults(), WithFile(""))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", config.SerialPort)
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	_, err := LoadConfig(WithDefaults(), WithFile(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")
	t.Setenv("BAUD_RATE", "57600")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("STATE_FILE", "/tmp/mesh.json")

	config, err := LoadConfig(WithDefaults(), WithEnv())
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS1", config.SerialPort)
	assert.Equal(t, 57600, config.BaudRate)
	assert.Equal(t, "warn", config.LogLevel)
	assert.Equal(t, "/tmp/mesh.json", config.StateFile)
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SERIAL_PORT", "/dev/ttyS1")

	fSet := flag.NewFlagSet("test", flag.ContinueOnError)
	fSet.String("serial-port", "/dev/ttyUSB0", "")
	fSet.Int("scan-seconds", 10, "")
	require.NoError(t, fSet.Parse([]string{"-serial-port", "/dev/ttyACM3", "-scan-seconds", "30"}))

	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fSet))
	require.NoError(t, err)

	// Only flags the user actually set override earlier sources.
	assert.Equal(t, "/dev/ttyACM3", config.SerialPort)
	assert.Equal(t, 30, config.ScanSeconds)
	assert.Equal(t, 115200, config.BaudRate)
}

func TestLoadConfigUnsetFlagsDoNotOverride(t *testing.T) {
	fSet := flag.NewFlagSet("test", flag.ContinueOnError)
	fSet.String("serial-port", "/dev/ttyUSB0", "")
	require.NoError(t, fSet.Parse(nil))

	t.Setenv("SERIAL_PORT", "/dev/ttyS9")
	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fSet))
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyS9", config.SerialPort)
}
