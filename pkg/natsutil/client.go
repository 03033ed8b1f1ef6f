// Package natsutil provides helpers for establishing NATS connections
// with TLS, user credentials, NKey, and connection lifecycle logging.
package natsutil

import (
	"fmt"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Options builds the connection options for cfg.
func Options(cfg config.ConnectionConfig, logger *zap.Logger) ([]nats.Option, error) {
	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		// Reads do not resume across reconnects; a dropped connection ends them.
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS async error", zap.Error(err))
		}),
	}

	if t := cfg.ConnectTimeout.Duration(); t > 0 {
		opts = append(opts, nats.Timeout(t))
	}

	if user, pass, ok := cfg.Credentials(); ok {
		opts = append(opts, nats.UserInfo(user, pass))
	} else if cfg.Username != "" || cfg.Password != "" {
		logger.Warn("ignoring partial credentials: both username and password are required")
	}

	if cfg.CredentialsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredentialsFile))
	}

	if cfg.NKeySeedFile != "" {
		opt, err := nats.NkeyOptionFromSeed(cfg.NKeySeedFile)
		if err != nil {
			return nil, fmt.Errorf("loading nkey seed: %w", err)
		}
		opts = append(opts, opt)
	}

	if cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "" {
		opts = append(opts, nats.ClientCert(cfg.TLS.CertFile, cfg.TLS.KeyFile))
	}
	if cfg.TLS.CAFile != "" {
		opts = append(opts, nats.RootCAs(cfg.TLS.CAFile))
	}

	return opts, nil
}

// Connect establishes a connection to NATS with the given configuration.
func Connect(cfg config.ConnectionConfig, logger *zap.Logger) (*nats.Conn, error) {
	opts, err := Options(cfg, logger)
	if err != nil {
		return nil, err
	}

	url := cfg.ConnectionURL()
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}

	logger.Debug("connected to NATS",
		zap.String("url", nc.ConnectedUrlRedacted()),
		zap.String("server_id", nc.ConnectedServerId()),
	)

	return nc, nil
}
