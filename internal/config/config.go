// Package config provides configuration structures and loading for tablediff.
package config

// Config represents the complete application configuration.
type Config struct {
	Left    DatabaseConfig       `yaml:"left" mapstructure:"left"`
	Right   DatabaseConfig       `yaml:"right" mapstructure:"right"`
	Jobs    map[string]DiffJob   `yaml:"jobs" mapstructure:"jobs"`
	Bisect  BisectionConfig      `yaml:"bisection" mapstructure:"bisection"`
	Logging LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents a MySQL database connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// DiffJob represents one table-pair comparison job.
type DiffJob struct {
	LeftTable  string  `yaml:"left_table" mapstructure:"left_table"`
	RightTable string  `yaml:"right_table" mapstructure:"right_table"`
	KeyColumns []string `yaml:"key_columns" mapstructure:"key_columns"`
	// IgnoredColumns are excluded from both the checksum and the leaf
	// row-level comparison (§4.1 with_ignored_columns).
	IgnoredColumns []string `yaml:"ignored_columns" mapstructure:"ignored_columns"`
	// JSONColumns get semantic-equivalence comparison instead of byte
	// comparison in the leaf diff (§4.5).
	JSONColumns []string `yaml:"json_columns" mapstructure:"json_columns"`
	Where       string   `yaml:"where" mapstructure:"where"`
	// DependsOn names other jobs that must complete before this one runs
	// (internal/graph builds the run order from this).
	DependsOn []string         `yaml:"depends_on" mapstructure:"depends_on"`
	Bisect    *BisectionConfig `yaml:"bisection,omitempty" mapstructure:"bisection"`
}

// BisectionConfig controls the recursive bisection algorithm (spec.md §6).
type BisectionConfig struct {
	// Factor is the number of segments each bisection step splits a
	// mismatched range into (spec.md §4.3 calls this the branching factor).
	Factor int `yaml:"factor" mapstructure:"factor"`
	// Threshold is the row count below which a mismatched segment is
	// downloaded and leaf-diffed instead of bisected further.
	Threshold int `yaml:"threshold" mapstructure:"threshold"`
	// Disabled skips bisection entirely: any mismatched segment is leaf-diffed.
	Disabled bool `yaml:"disabled" mapstructure:"disabled"`
	// AutoFactor derives Factor from a segment's row count divided by
	// SegmentRows instead of using a fixed Factor (spec.md §4.3
	// auto-bisection factor).
	AutoFactor bool `yaml:"auto_factor" mapstructure:"auto_factor"`
	// SegmentRows is the preferred rows per child segment; when AutoFactor
	// is set, every segment's factor is recomputed from it.
	SegmentRows int `yaml:"segment_rows" mapstructure:"segment_rows"`
	// Threaded enables the concurrent ThreadedYielder; false runs the
	// bisection synchronously (useful for deterministic tests and small jobs).
	Threaded bool `yaml:"threaded" mapstructure:"threaded"`
	// MaxThreadpoolSize bounds the ThreadedYielder worker pool.
	MaxThreadpoolSize int `yaml:"max_threadpool_size" mapstructure:"max_threadpool_size"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Left: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Right: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Bisect: BisectionConfig{
			Factor:            10,
			Threshold:         1000,
			SegmentRows:       50000,
			Threaded:          true,
			MaxThreadpoolSize: 8,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// GetJobBisection returns the bisection config for a job by name, merged
// over the global default.
func (c *Config) GetJobBisection(jobName string) BisectionConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Bisect
	}
	return job.GetJobBisection(c.Bisect)
}

// GetJobBisection merges a job's bisection overrides over the global default.
func (jc *DiffJob) GetJobBisection(global BisectionConfig) BisectionConfig {
	if jc.Bisect == nil {
		return global
	}

	result := global
	if jc.Bisect.Factor > 0 {
		result.Factor = jc.Bisect.Factor
	}
	if jc.Bisect.Threshold > 0 {
		result.Threshold = jc.Bisect.Threshold
	}
	result.Disabled = jc.Bisect.Disabled || global.Disabled
	result.AutoFactor = jc.Bisect.AutoFactor || global.AutoFactor
	if jc.Bisect.SegmentRows > 0 {
		result.SegmentRows = jc.Bisect.SegmentRows
	}
	if jc.Bisect.MaxThreadpoolSize > 0 {
		result.MaxThreadpoolSize = jc.Bisect.MaxThreadpoolSize
	}
	// Threaded defaults true; only an explicit job override of false wins.
	if jc.Bisect.Threaded != global.Threaded {
		result.Threaded = jc.Bisect.Threaded
	}
	return result
}
