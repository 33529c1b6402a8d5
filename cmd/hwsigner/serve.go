package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btccom/hwsigner/api"
	"github.com/btccom/hwsigner/metrics"
	"github.com/btccom/hwsigner/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 5 * time.Second

var serve = cli.Command{
	Name:  "serve",
	Usage: "serve the device to a wallet UI over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address to listen on",
		},
	},
	Action: serveAction,
}

func serveAction(ctx *cli.Context) error {
	if ctx.IsSet("listen") {
		cfg.ListenAddr = ctx.String("listen")
	}

	var (
		observer session.Observer
		registry *prometheus.Registry
	)
	if cfg.Metrics {
		registry = prometheus.NewRegistry()
		collector, err := metrics.NewCollector(registry)
		if err != nil {
			return err
		}
		collector.Track()
		observer = collector
	}

	s, err := newSigner(observer)
	if err != nil {
		return err
	}
	defer s.Disconnect()

	srv := api.NewServer(s)
	defer srv.Close()
	if registry != nil {
		srv.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		mainLog.Infof("listening on %s", cfg.ListenAddr)
		errc <- httpServer.ListenAndServe()
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		mainLog.Infof("received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
