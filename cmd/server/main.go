package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
	"sigs.k8s.io/yaml"

	"orderdash/internal/api"
	"orderdash/internal/config"
	"orderdash/internal/format"
	"orderdash/internal/logger"
	"orderdash/internal/source"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:          "orderdash",
		Short:        "Orders dashboard API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().String("data", "", "dataset path (overrides data.path)")
	root.PersistentFlags().String("log-level", "", "log level (overrides log.level)")
	_ = v.BindPFlag("data.path", root.PersistentFlags().Lookup("data"))
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Load the dataset in the background and serve the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup(v, configFile, os.Stdout)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, log)
		},
	}
	serve.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = v.BindPFlag("server.addr", serve.Flags().Lookup("addr"))

	var start, end, outFormat string
	report := &cobra.Command{
		Use:   "report",
		Short: "Print every dashboard view once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(v, configFile, os.Stderr)
			if err != nil {
				return err
			}
			return runReport(cmd.Context(), cmd.OutOrStdout(), cfg, start, end, outFormat)
		},
	}
	report.Flags().StringVar(&start, "start", "", "first purchase day, YYYY-MM-DD")
	report.Flags().StringVar(&end, "end", "", "last purchase day, YYYY-MM-DD")
	report.Flags().StringVar(&outFormat, "format", "json", "output format: json or yaml")

	root.AddCommand(serve, report)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func setup(v *viper.Viper, configFile string, out io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: out,
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, log, nil
}

func runServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	opts, err := cfg.AggregateOptions()
	if err != nil {
		return err
	}
	currency, err := format.NewCurrency(cfg.Display.Currency, cfg.Display.Locale)
	if err != nil {
		return err
	}

	// The API is live immediately and answers 503 until the snapshot is in.
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(glog.WARN)
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logger.RequestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	if cfg.Server.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	}

	h := api.NewHandler(nil, opts, currency, log)
	h.RegisterRoutes(e)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("path", cfg.Data.Path).Str("format", cfg.Data.Format).Msg("loading dataset in background")
		store, err := source.Load(ctx, cfg.Data)
		if err != nil {
			log.Error().Err(err).Msg("dataset load failed; data routes stay unavailable")
			return
		}
		h.SetData(store)
		log.Info().Msg("dataset ready")
	}()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		errc <- e.Start(cfg.Server.Addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func runReport(ctx context.Context, w io.Writer, cfg *config.Config, start, end, outFormat string) error {
	if outFormat != "json" && outFormat != "yaml" {
		return fmt.Errorf("unknown output format %q", outFormat)
	}
	opts, err := cfg.AggregateOptions()
	if err != nil {
		return err
	}
	currency, err := format.NewCurrency(cfg.Display.Currency, cfg.Display.Locale)
	if err != nil {
		return err
	}
	from, err := parseDay(start)
	if err != nil {
		return fmt.Errorf("--start: %w", err)
	}
	to, err := parseDay(end)
	if err != nil {
		return fmt.Errorf("--end: %w", err)
	}

	store, err := source.Load(ctx, cfg.Data)
	if err != nil {
		return err
	}
	if !from.IsZero() || !to.IsZero() {
		if store, err = store.FilterByPurchaseDate(from, to); err != nil {
			return err
		}
	}

	data, aggErr := store.Aggregate(opts)
	if data.Summary != nil {
		currency.Annotate(data.Summary)
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if outFormat == "yaml" {
		if out, err = yaml.JSONToYAML(out); err != nil {
			return err
		}
	}
	if _, err := w.Write(out); err != nil {
		return err
	}
	if outFormat == "json" {
		fmt.Fprintln(w)
	}
	return aggErr
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
