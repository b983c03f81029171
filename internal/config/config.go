// Package config loads CoolCache's server configuration from command-line
// flags layered over COOLCACHE_*-prefixed environment variables, with
// flags taking precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultPort              = 6379
	DefaultMaxConns          = 10000
	DefaultReplBacklogBytes  = 1 << 20 // 1 MiB, per the Open Question decision on backlog sizing
	DefaultAutoSaveScheduleS = "900 1 300 10 60 10000"
)

// SavePoint is one (seconds, changes) pair from the auto-save schedule:
// BGSAVE fires once at least `seconds` have passed since the previous save
// and at least `changes` writes have landed since then.
type SavePoint struct {
	Seconds int
	Changes int
}

// Config holds every setting the server needs at startup. Fields group
// loosely by the component that consumes them.
type Config struct {
	Host     string
	Port     int
	MaxConns int
	LogLevel string // debug, info, warn, error

	Dir        string
	DBFilename string
	Save       []SavePoint

	ReplicaOf        string // "host:port", empty if this instance starts as a leader
	ReplBacklogBytes int
	MetricsAddr      string // empty disables the /metrics HTTP listener
	ImportRDBPath    string // best-effort rdbcompat import at startup, empty disables it
}

// Load parses args (pass os.Args[1:] in production) against a fresh flag
// set, then overlays COOLCACHE_* environment variables for anything the
// flags left at their default.
func Load(args []string) (*Config, error) {
	cfg := &Config{
		Host:             "0.0.0.0",
		Port:             DefaultPort,
		MaxConns:         DefaultMaxConns,
		LogLevel:         "info",
		Dir:              ".",
		DBFilename:       "dump.rdb",
		ReplBacklogBytes: DefaultReplBacklogBytes,
	}

	fs := flag.NewFlagSet("coolcache-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to bind to")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port to listen on")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum concurrent client connections")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory for the RDB file")
	fs.StringVar(&cfg.DBFilename, "dbfilename", cfg.DBFilename, "RDB snapshot filename")
	saveSchedule := fs.String("save", DefaultAutoSaveScheduleS, "auto-save schedule as space-separated seconds/changes pairs, e.g. \"900 1 300 10\"")
	fs.StringVar(&cfg.ReplicaOf, "replicaof", cfg.ReplicaOf, "leader address \"host:port\" to replicate from, empty to start as leader")
	fs.IntVar(&cfg.ReplBacklogBytes, "repl-backlog-bytes", cfg.ReplBacklogBytes, "replication backlog ring buffer size in bytes")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve Prometheus /metrics on, empty disables it")
	fs.StringVar(&cfg.ImportRDBPath, "import-rdb", cfg.ImportRDBPath, "best-effort import of a real-Redis RDB file at startup")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, fs)

	points, err := ParseSavePoints(*saveSchedule)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Save = points

	return cfg, nil
}

func applyEnvOverrides(cfg *Config, fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["host"] {
		if v := os.Getenv("COOLCACHE_HOST"); v != "" {
			cfg.Host = v
		}
	}
	if !set["port"] {
		if v := os.Getenv("COOLCACHE_PORT"); v != "" {
			if p, err := strconv.Atoi(v); err == nil {
				cfg.Port = p
			}
		}
	}
	if !set["max-conns"] {
		if v := os.Getenv("COOLCACHE_MAX_CONNS"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.MaxConns = n
			}
		}
	}
	if !set["log-level"] {
		if v := os.Getenv("COOLCACHE_LOG_LEVEL"); v != "" {
			cfg.LogLevel = v
		}
	}
	if !set["dir"] {
		if v := os.Getenv("COOLCACHE_DIR"); v != "" {
			cfg.Dir = v
		}
	}
	if !set["dbfilename"] {
		if v := os.Getenv("COOLCACHE_DBFILENAME"); v != "" {
			cfg.DBFilename = v
		}
	}
	if !set["replicaof"] {
		if v := os.Getenv("COOLCACHE_REPLICAOF"); v != "" {
			cfg.ReplicaOf = v
		}
	}
	if !set["repl-backlog-bytes"] {
		if v := os.Getenv("COOLCACHE_REPL_BACKLOG_BYTES"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				cfg.ReplBacklogBytes = n
			}
		}
	}
	if !set["metrics-addr"] {
		if v := os.Getenv("COOLCACHE_METRICS_ADDR"); v != "" {
			cfg.MetricsAddr = v
		}
	}
	if !set["import-rdb"] {
		if v := os.Getenv("COOLCACHE_IMPORT_RDB"); v != "" {
			cfg.ImportRDBPath = v
		}
	}
}

// ParseSavePoints parses "s1 c1 s2 c2 ..." into SavePoints. An empty
// string disables auto-save entirely (CONFIG SET save "").
func ParseSavePoints(s string) ([]SavePoint, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("save schedule must have an even number of fields, got %q", s)
	}
	points := make([]SavePoint, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		secs, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("invalid seconds value %q: %w", fields[i], err)
		}
		changes, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid changes value %q: %w", fields[i+1], err)
		}
		points = append(points, SavePoint{Seconds: secs, Changes: changes})
	}
	return points, nil
}

// Address returns the "host:port" string to pass to net.Listen.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RDBPath returns the full path to the configured snapshot file.
func (c *Config) RDBPath() string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(c.Dir, "/"), c.DBFilename)
}

// Validate checks the loaded configuration for internally inconsistent or
// out-of-range values.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("max-conns must be positive: %d", c.MaxConns)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}
	if c.ReplBacklogBytes < 1 {
		return fmt.Errorf("repl-backlog-bytes must be positive: %d", c.ReplBacklogBytes)
	}
	if c.ReplicaOf != "" && !strings.Contains(c.ReplicaOf, ":") {
		return fmt.Errorf("replicaof must be \"host:port\": %s", c.ReplicaOf)
	}
	return nil
}

// FormatSavePoints renders a schedule back into CONFIG GET save's textual
// form.
func FormatSavePoints(points []SavePoint) string {
	parts := make([]string, 0, len(points)*2)
	for _, p := range points {
		parts = append(parts, strconv.Itoa(p.Seconds), strconv.Itoa(p.Changes))
	}
	return strings.Join(parts, " ")
}

// FormatSaveSchedule renders Save back into CONFIG GET save's textual form.
func (c *Config) FormatSaveSchedule() string {
	return FormatSavePoints(c.Save)
}
