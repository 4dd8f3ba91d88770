package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetConfigFile(t *testing.T) {
	original := cfgFile
	defer func() { cfgFile = original }()

	tests := []struct {
		name  string
		value string
	}{
		{name: "default config file", value: "tablediff.yaml"},
		{name: "custom config file", value: "/path/to/custom.yaml"},
		{name: "config file with spaces", value: "/path/to/my config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.value
			assert.Equal(t, tt.value, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	originalLogLevel := logLevel
	originalLogFormat := logFormat
	originalBisectFactor := bisectFactor
	originalBisectThresh := bisectThresh
	originalNoThreaded := noThreaded
	defer func() {
		logLevel = originalLogLevel
		logFormat = originalLogFormat
		bisectFactor = originalBisectFactor
		bisectThresh = originalBisectThresh
		noThreaded = originalNoThreaded
	}()

	tests := []struct {
		name         string
		logLevel     string
		logFormat    string
		bisectFactor int
		bisectThresh int
		noThreaded   bool
		want         CLIOverrides
	}{
		{
			name: "empty overrides",
			want: CLIOverrides{Threaded: true},
		},
		{
			name:         "all overrides set",
			logLevel:     "debug",
			logFormat:    "text",
			bisectFactor: 8,
			bisectThresh: 5000,
			noThreaded:   true,
			want: CLIOverrides{
				LogLevel:     "debug",
				LogFormat:    "text",
				BisectFactor: 8,
				BisectThresh: 5000,
				Threaded:     false,
			},
		},
		{
			name:         "partial overrides",
			logLevel:     "warn",
			bisectFactor: 4,
			want: CLIOverrides{
				LogLevel:     "warn",
				BisectFactor: 4,
				Threaded:     true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logLevel = tt.logLevel
			logFormat = tt.logFormat
			bisectFactor = tt.bisectFactor
			bisectThresh = tt.bisectThresh
			noThreaded = tt.noThreaded

			assert.Equal(t, tt.want, GetCLIOverrides())
		})
	}
}

func TestRootCommandStructure(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "tablediff", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}

func TestRootCommandPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag, err := flags.GetString("config")
	assert.NoError(t, err)
	assert.Equal(t, "tablediff.yaml", configFlag)

	logLevelFlag, err := flags.GetString("log-level")
	assert.NoError(t, err)
	assert.Equal(t, "", logLevelFlag)

	factorFlag, err := flags.GetInt("bisection-factor")
	assert.NoError(t, err)
	assert.Equal(t, 0, factorFlag)

	threshFlag, err := flags.GetInt("bisection-threshold")
	assert.NoError(t, err)
	assert.Equal(t, 0, threshFlag)

	noThreadedFlag, err := flags.GetBool("no-threaded")
	assert.NoError(t, err)
	assert.Equal(t, false, noThreadedFlag)
}

func TestRootCommandSubcommands(t *testing.T) {
	commands := rootCmd.Commands()
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name()
	}

	for _, expected := range []string{"diff", "plan", "version"} {
		assert.Contains(t, names, expected, "expected command %s not found", expected)
	}
}
