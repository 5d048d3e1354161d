package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blebridge/internal/device"
	"github.com/srg/blebridge/internal/host/mqttpub"
	"github.com/srg/blebridge/internal/registry"
	"github.com/srg/blebridge/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const validConfig = `
accessories:
  - id: living-room
    name: Living Room Sensor
    address: "AA:BB:CC:DD:EE:01"
    model: environmental
  - id: keys
    address: aa-bb-cc-dd-ee-02
    model: alert_tag
    services: ["1802"]
`

type CommandTestSuite struct {
	suite.Suite
	dir string
}

func (s *CommandTestSuite) SetupSuite() {
	color.NoColor = true
}

func (s *CommandTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *CommandTestSuite) writeConfig(content string) string {
	path := filepath.Join(s.dir, "blebridge.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600), "config write MUST succeed")
	return path
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func (s *CommandTestSuite) TestCheckConfigPrintsResolvedServices() {
	path := s.writeConfig(validConfig)

	out, err := s.ExecuteCommand(rootCmd, "check-config", "--config", path)
	s.Require().NoError(err, "valid config MUST pass")

	s.Contains(out, "2 accessories")
	s.Contains(out, "living-room")
	s.Contains(out, `"Living Room Sensor"`)
	s.Contains(out, "aabbccddee01", "address MUST be printed normalized")
	s.Contains(out, "EnvironmentalSensor")
	s.Contains(out, "CurrentTemperature")
	s.Contains(out, `"keys"`, "name MUST default to the id")

	idx := strings.Index(out, "\nkeys")
	s.Require().GreaterOrEqual(idx, 0, "keys entry MUST be printed")
	living, keys := out[:idx], out[idx:]
	s.Contains(living, "BatteryLevel", "unfiltered model MUST keep every service")
	s.Contains(keys, "AlertLevel")
	s.Contains(keys, "identify")
	s.NotContains(keys, "BatteryLevel", "service subset MUST exclude the battery service")
}

func (s *CommandTestSuite) TestCheckConfigRejectsInvalidRegistry() {
	path := s.writeConfig(`
accessories:
  - id: a
    address: AA:BB:CC:DD:EE:01
  - id: b
    address: aa:bb:cc:dd:ee:01
`)

	_, err := s.ExecuteCommand(rootCmd, "check-config", "--config", path)
	s.Require().Error(err, "duplicate address MUST be rejected")
	s.ErrorIs(err, registry.ErrConfiguration)
}

func (s *CommandTestSuite) TestCheckConfigMissingFile() {
	_, err := s.ExecuteCommand(rootCmd, "check-config", "--config", filepath.Join(s.dir, "missing.yaml"))
	s.Error(err, "missing config MUST fail")
}

func (s *CommandTestSuite) TestModelsListsCatalog() {
	out, err := s.ExecuteCommand(rootCmd, "models")
	s.Require().NoError(err)

	for _, model := range registry.Models() {
		s.Contains(out, model.Name)
		s.Contains(out, model.Description)
	}
	s.Contains(out, "HeartRateMeasurement")
	s.Contains(out, "6e400002")
}

func (s *CommandTestSuite) TestRunRejectsEmptyRegistry() {
	path := s.writeConfig("platform: Bluetooth\n")

	_, err := s.ExecuteCommand(rootCmd, "run", "--config", path)
	s.Require().Error(err, "run MUST refuse a config without accessories")
	s.ErrorIs(err, registry.ErrConfiguration)
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "configuration",
			err:      fmt.Errorf("load: %w", &registry.ConfigurationError{Index: 0, ID: "x", Reason: "unknown model"}),
			contains: `accessory "x": unknown model (see the accessories section`,
		},
		{
			name:     "bluetooth off",
			err:      fmt.Errorf("open: %w", device.ErrBluetoothOff),
			contains: "Bluetooth is turned off",
		},
		{
			name:     "mqtt",
			err:      fmt.Errorf("%w: refused", mqttpub.ErrConnectionFailed),
			contains: "cannot reach the MQTT broker",
		},
		{
			name:     "other",
			err:      errors.New("boom"),
			contains: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, FormatUserError(tt.err), tt.contains)
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	newCmd := func(args ...string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", "", "")
		cmd.Flags().Bool("verbose", false, "")
		require.NoError(t, cmd.Flags().Parse(args))
		return cmd
	}
	cfg := config.DefaultConfig()

	logger, err := configureLogger(newCmd(), cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel(), "config level MUST apply without flags")

	logger, err = configureLogger(newCmd("--verbose"), cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger, err = configureLogger(newCmd("--verbose", "--log-level", "trace"), cfg)
	require.NoError(t, err)
	assert.Equal(t, logrus.TraceLevel, logger.GetLevel(), "--log-level MUST win over --verbose")

	_, err = configureLogger(newCmd("--log-level", "loud"), cfg)
	assert.Error(t, err)
}
