package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gftdcojp/escat/internal/events"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Store      StoreConfig      `yaml:"store"`
	Read       ReadConfig       `yaml:"read"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ConnectionConfig struct {
	URL             string    `yaml:"url"`
	Host            string    `yaml:"host"`
	Port            int       `yaml:"port"`
	TLS             TLSConfig `yaml:"tls"`
	Username        string    `yaml:"username"`
	Password        string    `yaml:"password"`
	CredentialsFile string    `yaml:"credentials_file"`
	NKeySeedFile    string    `yaml:"nkey_seed_file"`
	ConnectionName  string    `yaml:"connection_name"`
	ConnectTimeout  Duration  `yaml:"connect_timeout"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type StoreConfig struct {
	Stream        string `yaml:"stream"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type ReadConfig struct {
	Follow       bool   `yaml:"follow"`
	Offset       string `yaml:"offset"`
	FromPosition uint64 `yaml:"from_position"`
	Count        int    `yaml:"count"`
}

type OutputConfig struct {
	Metadata bool `yaml:"metadata"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Quiet  bool   `yaml:"quiet"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"`
	Path   string `yaml:"path"`
}

// Enabled reports whether the metrics server should run.
func (m MetricsConfig) Enabled() bool {
	return m.Listen != ""
}

// Load reads a YAML file on top of DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Connection.URL == "" {
		if c.Connection.Host == "" {
			return fmt.Errorf("connection.host is required when connection.url is not set")
		}
		if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
			return fmt.Errorf("connection.port must be between 1 and 65535, got %d", c.Connection.Port)
		}
	}
	if (c.Connection.TLS.CertFile == "") != (c.Connection.TLS.KeyFile == "") {
		return fmt.Errorf("connection.tls.cert_file and connection.tls.key_file must be set together")
	}

	if c.Store.Stream == "" {
		return fmt.Errorf("store.stream is required")
	}
	if err := ValidateSubjectPrefix(c.Store.SubjectPrefix); err != nil {
		return fmt.Errorf("store.subject_prefix: %w", err)
	}

	offset, err := events.ParseOffset(c.Read.Offset)
	if err != nil {
		return fmt.Errorf("read.offset: %w", err)
	}
	if c.Read.FromPosition > 0 && offset != events.OffsetStart {
		return fmt.Errorf("read.from_position cannot be combined with offset %q", c.Read.Offset)
	}
	if c.Read.Count < 0 {
		return fmt.Errorf("read.count must be >= 0, got %d", c.Read.Count)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

// ReadOptions converts the read section into store read options.
func (c *Config) ReadOptions() (events.ReadOptions, error) {
	offset, err := events.ParseOffset(c.Read.Offset)
	if err != nil {
		return events.ReadOptions{}, err
	}
	return events.ReadOptions{
		Offset:       offset,
		FromPosition: c.Read.FromPosition,
	}, nil
}

// ConnectionURL returns the server URL: URL verbatim when set, otherwise one
// built from Host, Port and TLS. A port embedded in Host wins over Port.
func (c ConnectionConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	scheme := "nats"
	if c.TLS.Enabled {
		scheme = "tls"
	}
	hostPort := c.Host
	if _, _, err := net.SplitHostPort(hostPort); err != nil {
		hostPort = net.JoinHostPort(strings.Trim(c.Host, "[]"), strconv.Itoa(c.Port))
	}
	return scheme + "://" + hostPort
}

// Credentials returns the username and password when both are configured.
func (c ConnectionConfig) Credentials() (user, password string, ok bool) {
	if c.Username == "" || c.Password == "" {
		return "", "", false
	}
	return c.Username, c.Password, true
}

// ValidateSubjectPrefix checks that prefix is a literal subject.
func ValidateSubjectPrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("must not be empty")
	}
	for _, tok := range strings.Split(prefix, ".") {
		if tok == "" {
			return fmt.Errorf("empty token in %q", prefix)
		}
		if tok == "*" || tok == ">" || strings.ContainsAny(tok, " \t\r\n") {
			return fmt.Errorf("invalid token %q in %q", tok, prefix)
		}
	}
	return nil
}

// Duration wraps time.Duration for YAML unmarshaling of strings like "5s", "1m".
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
