package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wilhg/y8bridge/pkg/bridge"
	"github.com/wilhg/y8bridge/pkg/codec"
	"github.com/wilhg/y8bridge/pkg/config"
	"github.com/wilhg/y8bridge/pkg/mcpserver"
	"github.com/wilhg/y8bridge/pkg/metrics"
	"github.com/wilhg/y8bridge/pkg/otel"
	"github.com/wilhg/y8bridge/pkg/store"
	"github.com/wilhg/y8bridge/pkg/store/entstore"
	"github.com/wilhg/y8bridge/pkg/webhost"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "y8bridge: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}

	var (
		showVersion bool
		replayID    string
	)
	fs := flag.NewFlagSet("y8bridge", flag.ContinueOnError)
	fs.BoolVar(&showVersion, "version", false, "print version and exit")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.AppID, "app-id", cfg.AppID, "Y8 application id")
	fs.StringVar(&cfg.AdsID, "ads-id", cfg.AdsID, "Y8 ads id; empty disables ads")
	fs.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "journal DSN (sqlite:... or postgres://...)")
	fs.BoolVar(&cfg.MCPStdio, "mcp", cfg.MCPStdio, "serve MCP tools on stdin/stdout")
	fs.StringVar(&replayID, "replay", "", "print a summary of the given journal and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Printf("y8bridge %s (commit=%s, date=%s)\n", version, commit, date)
		return nil
	}
	if replayID != "" {
		return replay(context.Background(), cfg.DatabaseURL, replayID, os.Stdout)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceCfg := otel.Config{
		ServiceVersion: version,
		AppID:          cfg.AppID,
		AdsEnabled:     cfg.AdsID != "",
		SampleRatio:    cfg.TraceSample,
		UseStdout:      cfg.TraceStdout,
	}
	if cfg.MCPStdio {
		// stdout carries the MCP stream.
		traceCfg.Writer = os.Stderr
	}
	shutdownTracing, err := otel.Init(ctx, traceCfg)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []bridge.Option{
		bridge.WithIDs(cfg.AppID, cfg.AdsID),
		bridge.WithLogger(logger),
		bridge.WithMetrics(metrics.New(reg)),
		bridge.WithHostLanguage(cfg.HostTag()),
		bridge.WithSaveLimiter(rate.NewLimiter(rate.Limit(cfg.SaveRate), cfg.SaveBurst)),
	}
	if cfg.StrictPayloads {
		opts = append(opts, bridge.WithCodec(codec.New(codec.WithSchemaValidation())))
	}
	if cfg.DatabaseURL != "" {
		st, err := entstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, bridge.WithJournal(st, ""))
	}

	out := webhost.NewOutbox()
	defer out.Close()
	display := &webhost.Display{}
	opts = append(opts, bridge.WithFullscreen(display.Fullscreen))
	b := bridge.New(out, opts...)
	logger.Info("bridge configured", "journal_id", b.JournalID(), "strict_payloads", cfg.StrictPayloads)

	host := webhost.NewServer(b, out, display, webhost.WithPollWait(cfg.PollWait), webhost.WithLogger(logger))
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           buildMux(host, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		// Release long-polling pages before the server drains connections.
		out.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})
	if cfg.MCPStdio {
		g.Go(func() error {
			err := mcpserver.New(b, version).ServeStdio(gctx)
			// The MCP client hanging up ends the process.
			stop()
			return err
		})
	}
	return g.Wait()
}

func replay(ctx context.Context, databaseURL, journalID string, w io.Writer) error {
	if databaseURL == "" {
		return errors.New("replay needs a journal database (-db or DATABASE_URL)")
	}
	st, err := entstore.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	sum, err := store.Replay(ctx, st, journalID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// buildMux serves the SDK host routes and /metrics behind otelhttp.
func buildMux(host *webhost.Server, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	host.Register(mux)
	mux.Handle("GET /metrics", metrics.Handler(g))
	return otelhttp.NewHandler(mux, "y8bridge")
}
