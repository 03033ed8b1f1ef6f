package cli

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/gftdcojp/escat/internal/eventstore"
	"github.com/gftdcojp/escat/internal/metrics"
	"github.com/gftdcojp/escat/internal/reader"
	"github.com/gftdcojp/escat/pkg/natsutil"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// run connects to the store and reads stream into out until the read ends.
func run(ctx context.Context, cfg *config.Config, stream string, out io.Writer, logger *zap.Logger) (reader.State, error) {
	var ln net.Listener
	if cfg.Metrics.Enabled() {
		var err error
		if ln, err = metrics.Listen(cfg.Metrics); err != nil {
			return reader.StateFailed, fmt.Errorf("metrics server: %w", err)
		}
		defer ln.Close()
	}

	nc, err := natsutil.Connect(cfg.Connection, logger.Named("nats"))
	if err != nil {
		if ctx.Err() != nil {
			return reader.StateStoppedByCancel, nil
		}
		return reader.StateFailed, &reader.ConnectionError{Op: "connect", Err: err}
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return reader.StateFailed, fmt.Errorf("creating JetStream context: %w", err)
	}

	store, err := eventstore.New(eventstore.Config{
		JS:            js,
		Stream:        cfg.Store.Stream,
		SubjectPrefix: cfg.Store.SubjectPrefix,
		Logger:        logger.Named("eventstore"),
	})
	if err != nil {
		return reader.StateFailed, err
	}

	opts, err := cfg.ReadOptions()
	if err != nil {
		return reader.StateFailed, err
	}

	rd := reader.New(store, reader.Config{
		Stream:       stream,
		Follow:       cfg.Read.Follow,
		WithMetadata: cfg.Output.Metadata,
		Count:        cfg.Read.Count,
		Options:      opts,
	}, out, logger)

	if ln == nil {
		return rd.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	var state reader.State
	g.Go(func() error {
		defer stopServer()
		var err error
		state, err = rd.Run(gctx)
		return err
	})
	g.Go(func() error {
		logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
		if err := metrics.Serve(serverCtx, ln, cfg.Metrics, metrics.NewHealthChecker(nc, rd.Progress)); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return reader.StateFailed, err
	}
	return state, nil
}
