// Command extools queries EVM nodes over batched JSON-RPC and token prices
// from the public price APIs.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourorg/extools/internal/config"
	"github.com/yourorg/extools/internal/jsonrpc"
	"github.com/yourorg/extools/internal/logman"
	"github.com/yourorg/extools/internal/metrics"
	"github.com/yourorg/extools/internal/otel"
)

// app is the state shared by every subcommand, built before any of them runs
type app struct {
	cfg      config.Config
	registry *prometheus.Registry
	metrics  *metrics.Collector
	output   string

	closers []func()
}

// close releases resources in reverse order of acquisition. It is safe to call twice.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) engine() *jsonrpc.Engine {
	return jsonrpc.NewEngine(a.cfg.Node.URL,
		jsonrpc.WithPoster(jsonrpc.NewHTTPPoster(jsonrpc.HTTPOptions{
			Timeout:  a.cfg.Node.Timeout,
			RetryMax: a.cfg.Node.RetryMax,
		})),
		jsonrpc.WithMetrics(a.metrics),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := execute(ctx, &app{}, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree on args. Whatever the pre-run opened is
// closed on return, also when the command fails.
func execute(ctx context.Context, a *app, args []string) error {
	defer a.close()
	cmd := rootCmd(a)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func rootCmd(a *app) *cobra.Command {
	var (
		cfgPath     string
		envFile     string
		logLevel    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:           "extools",
		Short:         "Batched JSON-RPC and token price toolkit",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}

			var err error
			if cfgPath != "" {
				a.cfg, err = config.LoadFile(cfgPath)
			} else {
				a.cfg = config.Load()
				err = a.cfg.Validate()
			}
			if err != nil {
				return err
			}
			if logLevel != "" {
				a.cfg.LogLevel = logLevel
			}
			if metricsAddr != "" {
				a.cfg.MetricsAddr = metricsAddr
			}

			logman.Setup(a.cfg.LogLevel, a.cfg.LogFormat)
			if a.cfg.LogFile != "" {
				sink, err := logman.AddFile(a.cfg.LogFile)
				if err != nil {
					return err
				}
				a.closers = append(a.closers, func() { sink.Close() })
				sink.Debugf("Logging to %s", a.cfg.LogFile)
			}

			a.closers = append(a.closers, otel.InitTracer(a.cfg))
			a.registry = prometheus.NewRegistry()
			a.metrics = metrics.New(a.registry)
			if a.cfg.MetricsAddr != "" {
				a.closers = append(a.closers, serveMetrics(a.cfg.MetricsAddr, a.registry))
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "YAML config file overriding the environment")
	flags.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVarP(&a.output, "output", "o", "table", "Output format: table|json")

	cmd.AddCommand(rpcCmd(a), apiCmd(a), cacheCmd(a), historyCmd(a))
	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logrus.Infof("Serving metrics on %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Metrics server: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logrus.Warnf("Metrics server shutdown: %v", err)
		}
	}
}
