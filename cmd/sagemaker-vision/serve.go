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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/sagemaker-vision/internal/cli"
	"github.com/fpang/sagemaker-vision/internal/config"
	"github.com/fpang/sagemaker-vision/internal/httpapi"
	"github.com/fpang/sagemaker-vision/internal/logging"
	"github.com/fpang/sagemaker-vision/internal/metrics"
	"github.com/fpang/sagemaker-vision/internal/service"
)

const shutdownTimeout = 10 * time.Second

var (
	addrFlag       string
	corsOriginFlag []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the vision API over HTTP; SIGHUP reloads the attributes file",
	Args:  cobra.NoArgs,
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringSliceVar(&corsOriginFlag, "cors-origin", nil, "Allowed CORS origin (repeatable); CORS is off when unset")
}

func runServe(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attrs, err := loadAttributes()
	if err != nil {
		cli.HandleServiceError(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	invocations := metrics.NewCollectors(reg)

	res, err := service.NewResource(ctx, attrs, nil, service.WithObserver(invocations.Observe))
	if err != nil {
		cli.HandleServiceError(err)
	}
	defer res.Close(context.Background())

	go reloadOnHangup(ctx, res)

	srv := &http.Server{
		Addr:              addrFlag,
		Handler:           httpapi.NewRouter(res, httpapi.Options{Registry: reg, AllowedOrigins: corsOriginFlag}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logStartup("sagemaker-vision serve", attrs, res.Current(), time.Since(initStart)).
		Config("addr", addrFlag).
		Log()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("addr", addrFlag).Msg("HTTP server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// loadAttributes reads --config and applies --timeout.
func loadAttributes() (config.Attributes, error) {
	attrs, err := config.Load(configFlag)
	if err != nil {
		return config.Attributes{}, err
	}
	if timeoutFlag != "" {
		attrs.RequestTimeout = timeoutFlag
	}
	return attrs, nil
}

// reloadOnHangup rebuilds the service from the attributes file on SIGHUP.
// A bad file leaves the running configuration in place.
func reloadOnHangup(ctx context.Context, res *service.Resource) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			log.Info().Str("config", configFlag).Msg("SIGHUP received, reloading configuration")
			attrs, err := loadAttributes()
			if err != nil {
				log.Error().Err(err).Msg("Failed to reload attributes file")
				continue
			}
			_ = res.Reconfigure(ctx, attrs)
		}
	}
}

func logStartup(name string, attrs config.Attributes, svc *service.Service, initDuration time.Duration) *logging.StartupLogger {
	return logging.NewStartupLogger(name).
		CommitHash(commitHash).
		BuildTime(buildTime).
		Endpoint(svc.EndpointName(), attrs.AWSRegion).
		AccessFile(attrs.AccessJSON).
		Cameras(svc.Cameras()...).
		Feature("downscale", attrs.MaxImageDimension > 0).
		Feature("requestTimeout", attrs.RequestTimeout != "").
		InitDuration(initDuration)
}
