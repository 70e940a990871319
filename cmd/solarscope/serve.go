package main

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/solarscope/internal/engine"
	"github.com/ivlev/solarscope/internal/server"
)

var serveOpts struct {
	address        string
	metricsAddress string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web form, the JSON API and the metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("address") {
			cfg.Server.Address = serveOpts.address
		}
		if cmd.Flags().Changed("metrics-address") {
			cfg.Server.MetricsAddress = serveOpts.metricsAddress
		}

		logger := zap.S().Named("cli")
		logger.Infow("Starting solarscope", "version", version)
		defer logger.Info("solarscope stopped")

		assessor, err := engine.NewAssessorFromConfig(cfg)
		if err != nil {
			return err
		}

		listener, err := newListener(cfg.Server.Address)
		if err != nil {
			return errors.Wrap(err, "creating listener")
		}
		metricsListener, err := newListener(cfg.Server.MetricsAddress)
		if err != nil {
			listener.Close()
			return errors.Wrap(err, "creating metrics listener")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer cancel()
			srv := server.New(cfg, assessor, listener, prometheus.DefaultRegisterer)
			return srv.Run(gctx)
		})
		g.Go(func() error {
			defer cancel()
			return server.NewMetricServer(cfg.Server.MetricsAddress, metricsListener, prometheus.DefaultGatherer).Run(gctx)
		})

		return g.Wait()
	},
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.address, "address", ":8080", "Address of the web form and API")
	f.StringVar(&serveOpts.metricsAddress, "metrics-address", ":9090", "Address of the Prometheus metrics endpoint")
}

