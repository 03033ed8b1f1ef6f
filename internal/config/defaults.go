package config

import "time"

func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host:           "localhost",
			Port:           4222,
			ConnectionName: "escat",
			ConnectTimeout: Duration(5 * time.Second),
		},
		Store: StoreConfig{
			Stream:        "EVENTS",
			SubjectPrefix: "events",
		},
		Read: ReadConfig{
			Offset: "start",
		},
		Output: OutputConfig{
			Metadata: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
	}
}
