// Package cli implements the escat command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/gftdcojp/escat/internal/events"
	"github.com/gftdcojp/escat/internal/eventstore"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time.
var Version = "dev"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// usageError marks errors caused by bad arguments or configuration.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// errReported is returned once a fatal error has been logged.
var errReported = errors.New("fatal error reported")

// flags holds raw flag values. Only flags set on the command line override
// the configuration file.
type flags struct {
	configPath string

	url, host      string
	port           int
	tls            bool
	tlsCA          string
	tlsCert        string
	tlsKey         string
	username       string
	password       string
	creds          string
	nkey           string
	connectTimeout time.Duration

	follow, noFollow     bool
	metadata, noMetadata bool
	count                int
	offset               string
	fromPosition         uint64

	store, subjectPrefix string

	quiet               bool
	logLevel, logFormat string
	metricsListen       string
}

// NewRootCommand creates the escat command writing records to stdout and
// diagnostics to stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd, _ := newRootCommand(stdout, stderr)
	return cmd
}

func newRootCommand(stdout, stderr io.Writer) (*cobra.Command, *flags) {
	f := &flags{}
	def := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "escat [flags] <stream_name | $all>",
		Short: "Print events of an event stream as JSON lines",
		Long: `escat reads a named stream, or every stream with $all, from a NATS
JetStream event store and prints one JSON object per event on stdout.

Examples:
  escat orders-1
  escat --follow --offset end '$all'
  escat --no-metadata --count 10 billing.invoices`,
		Version: Version,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return &usageError{fmt.Errorf("expected exactly one stream name, got %d", len(args))}
			}
			if args[0] != events.AllStream {
				if err := eventstore.ValidateStreamName(args[0]); err != nil {
					return &usageError{err}
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, f)
			if err != nil {
				return &usageError{err}
			}

			logger := newLogger(cfg.Logging, stderr)
			defer logger.Sync()

			state, err := run(cmd.Context(), cfg, args[0], stdout, logger)
			if err != nil {
				logger.Error("fatal error", zap.Error(err))
				return errReported
			}
			if !state.Graceful() {
				logger.Error("read ended unexpectedly", zap.Stringer("state", state))
				return errReported
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	fl := cmd.Flags()
	fl.SortFlags = false
	fl.StringVar(&f.host, "host", def.Connection.Host, "server host, optionally host:port")
	fl.IntVar(&f.port, "port", def.Connection.Port, "server port")
	fl.StringVar(&f.url, "url", "", "full connection URL (nats:// or tls://), overrides --host and --port")
	fl.BoolVar(&f.tls, "tls", false, "connect with TLS")
	fl.StringVar(&f.tlsCA, "tls-ca", "", "CA certificate file")
	fl.StringVar(&f.tlsCert, "tls-cert", "", "client certificate file")
	fl.StringVar(&f.tlsKey, "tls-key", "", "client key file")
	fl.StringVar(&f.username, "username", "", "username")
	fl.StringVar(&f.password, "password", "", "password")
	fl.StringVar(&f.creds, "creds", "", "NATS credentials file")
	fl.StringVar(&f.nkey, "nkey", "", "NKey seed file")
	fl.DurationVar(&f.connectTimeout, "connect-timeout", def.Connection.ConnectTimeout.Duration(), "connection timeout")

	fl.BoolVarP(&f.follow, "follow", "f", false, "keep reading new events after the end of the stream")
	fl.BoolVar(&f.noFollow, "no-follow", false, "stop at the end of the stream")
	fl.BoolVarP(&f.metadata, "metadata", "m", def.Output.Metadata, "wrap each payload with event metadata")
	fl.BoolVar(&f.noMetadata, "no-metadata", false, "print payloads only")
	fl.IntVarP(&f.count, "count", "c", 0, "stop after N records (0 means no limit)")
	fl.StringVarP(&f.offset, "offset", "o", def.Read.Offset, "where to start: start, end or last")
	fl.Uint64Var(&f.fromPosition, "from-position", 0, "start at this global position")

	fl.StringVar(&f.store, "store", def.Store.Stream, "JetStream stream holding the events")
	fl.StringVar(&f.subjectPrefix, "subject-prefix", def.Store.SubjectPrefix, "subject prefix of event streams")

	fl.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "only report errors")
	fl.StringVar(&f.logLevel, "log-level", def.Logging.Level, "log level: debug, info, warn or error")
	fl.StringVar(&f.logFormat, "log-format", def.Logging.Format, "log format: console or json")
	fl.StringVar(&f.metricsListen, "metrics-listen", "", "serve /metrics, /healthz and /readyz on this address")

	return cmd, f
}

// resolveConfig layers defaults, the configuration file and explicitly set
// flags, then validates the result.
func resolveConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	changed := cmd.Flags().Changed
	set := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}

	c := &cfg.Connection
	set("url", func() { c.URL = f.url })
	set("host", func() { c.Host = f.host })
	set("port", func() { c.Port = f.port })
	set("tls", func() { c.TLS.Enabled = f.tls })
	set("tls-ca", func() { c.TLS.CAFile = f.tlsCA })
	set("tls-cert", func() { c.TLS.CertFile = f.tlsCert })
	set("tls-key", func() { c.TLS.KeyFile = f.tlsKey })
	set("username", func() { c.Username = f.username })
	set("password", func() { c.Password = f.password })
	set("creds", func() { c.CredentialsFile = f.creds })
	set("nkey", func() { c.NKeySeedFile = f.nkey })
	set("connect-timeout", func() { c.ConnectTimeout = config.Duration(f.connectTimeout) })

	set("follow", func() { cfg.Read.Follow = f.follow })
	set("no-follow", func() { cfg.Read.Follow = !f.noFollow })
	set("metadata", func() { cfg.Output.Metadata = f.metadata })
	set("no-metadata", func() { cfg.Output.Metadata = !f.noMetadata })
	set("count", func() { cfg.Read.Count = f.count })
	set("offset", func() { cfg.Read.Offset = f.offset })
	set("from-position", func() { cfg.Read.FromPosition = f.fromPosition })

	set("store", func() { cfg.Store.Stream = f.store })
	set("subject-prefix", func() { cfg.Store.SubjectPrefix = f.subjectPrefix })

	set("quiet", func() { cfg.Logging.Quiet = f.quiet })
	set("log-level", func() { cfg.Logging.Level = f.logLevel })
	set("log-format", func() { cfg.Logging.Format = f.logFormat })
	set("metrics-listen", func() { cfg.Metrics.Listen = f.metricsListen })

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute runs escat with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	var usage *usageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "escat: %v\nRun 'escat --help' for usage.\n", err)
		return ExitUsage
	case errors.Is(err, errReported):
		return ExitFailure
	default:
		fmt.Fprintf(stderr, "escat: %v\n", err)
		return ExitFailure
	}
}
