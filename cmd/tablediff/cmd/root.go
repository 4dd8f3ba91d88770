package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	bisectFactor int
	bisectThresh int
	noThreaded   bool
)

var rootCmd = &cobra.Command{
	Use:   "tablediff",
	Short: "Hash-based recursive bisection differ for MySQL tables",
	Long: `tablediff compares two MySQL tables (on the same server or two
different servers) and reports every row that differs, without
transferring every row across the wire.

Features:
  - Recursive checksum-and-bisect comparison, down to a leaf size where
    rows are downloaded and diffed directly
  - Concurrent, priority-ordered bisection via a bounded worker pool
  - Schema reconciliation across dialects (precision, key-type checks)
  - JSON-column semantic equivalence (ignores key order, whitespace)`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "tablediff.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&bisectFactor, "bisection-factor", 0,
		"Override bisection factor (number of segments each split produces)")
	rootCmd.PersistentFlags().IntVar(&bisectThresh, "bisection-threshold", 0,
		"Override bisection threshold (row count below which a segment is leaf-diffed)")
	rootCmd.PersistentFlags().BoolVar(&noThreaded, "no-threaded", false,
		"Run the bisection synchronously instead of on the worker pool")
}

// GetConfigFile returns the config file path.
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings.
type CLIOverrides struct {
	LogLevel     string
	LogFormat    string
	BisectFactor int
	BisectThresh int
	Threaded     bool
}

// GetCLIOverrides returns the CLI flag override values.
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		BisectFactor: bisectFactor,
		BisectThresh: bisectThresh,
		Threaded:     !noThreaded,
	}
}
