package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fusion/internal/catalog"
	"github.com/roach88/fusion/internal/session"
	"github.com/roach88/fusion/internal/store"
	"github.com/roach88/fusion/internal/transport/ws"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Book     string
	Addr     string
	Database string
	HandSize int

	// listener overrides Addr (for testing).
	listener net.Listener
	// ready receives the bound address once the server is listening (for testing).
	ready chan<- string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions over WebSocket",
		Long: `Start the WebSocket adapter. Each connection plays its own session
against the book's catalog; with --db every session is recorded.

Endpoints:
  /ws       WebSocket session (JSON requests: deal, toggle_on, toggle_off,
            toggle, clear, fuse)
  /healthz  catalog status

SIGHUP reloads the book: the new catalog is swapped in and sessions that
connect afterwards are recorded against the new book. SIGINT or SIGTERM
shut down gracefully.

Examples:
  fusion serve --book ./books/elements.cue
  fusion serve --book ./books --addr :9000 --db ./fusion.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Book, "book", rootOpts.Config.Book, "recipe book (.cue, .yaml or CUE directory)")
	cmd.Flags().StringVar(&opts.Addr, "addr", rootOpts.Config.Addr, "listen address")
	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.Config.DB, "path to SQLite database (sessions are not recorded when empty)")
	cmd.Flags().IntVar(&opts.HandSize, "hand-size", session.DefaultHandSize, "maximum hand size")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := opts.Logger(cmd.ErrOrStderr())

	if opts.Book == "" {
		return outputCommandError(formatter, ErrCodeBadArgument, "--book is required")
	}

	book, err := LoadBook(opts.Book)
	if err != nil {
		return outputLoadError(formatter, "✗ Serve failed", err)
	}
	cat, report := buildCatalog(book, logger)
	holder := catalog.NewHolder(cat).WithLogger(logger)
	logger.Info("catalog built", "book", opts.Book, "loaded", report.Loaded, "skipped", report.Skipped())

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsOpts := []ws.Option{
		ws.WithHandSize(opts.HandSize),
		ws.WithLogger(logger),
	}

	var (
		st    *store.Store
		clock *session.Clock
	)
	if opts.Database != "" {
		st, err = openStore(opts.Database)
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
		clock = session.NewClockAt(last)

		hash, err := st.WriteBook(ctx, book, clock.Next())
		if err != nil {
			return outputCommandError(formatter, ErrCodeDatabase, err.Error())
		}
		wsOpts = append(wsOpts, ws.WithStore(st, hash), ws.WithClock(clock))
		logger.Info("recording sessions", "db", opts.Database, "book_hash", hash)
	}

	srv := ws.NewServer(holder, wsOpts...)

	mux := http.NewServeMux()
	mux.Handle("/ws", srv.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"recipes": holder.Load().Len(),
		})
	})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				reloadBook(ctx, opts.Book, holder, srv, st, clock, logger)
			case <-ctx.Done():
				return
			}
		}
	}()

	ln := opts.listener
	if ln == nil {
		ln, err = net.Listen("tcp", opts.Addr)
		if err != nil {
			return outputCommandError(formatter, ErrCodeGeneric, fmt.Sprintf("listen %s: %v", opts.Addr, err))
		}
	}

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	addr := ln.Addr().String()
	logger.Info("listening", "addr", addr)
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving sessions on ws://%s/ws\n", addr)
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}
	if opts.ready != nil {
		opts.ready <- addr
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}

	logger.Info("server stopped gracefully")
	return nil
}

// reloadBook rebuilds the catalog from path. A book that fails to load
// leaves the current catalog in place.
func reloadBook(ctx context.Context, path string, holder *catalog.Holder, srv *ws.Server, st *store.Store, clock *session.Clock, logger *slog.Logger) {
	book, err := LoadBook(path)
	if err != nil {
		logger.Error("reload failed, keeping current catalog", "book", path, "error", err)
		return
	}

	if st != nil {
		hash, err := st.WriteBook(ctx, book, clock.Next())
		if err != nil {
			logger.Error("reload failed, keeping current catalog", "book", path, "error", err)
			return
		}
		srv.SetBookHash(hash)
	}

	report := holder.Rebuild(catalog.FromSpecs(book.Recipes))
	logger.Info("catalog reloaded", "book", path, "loaded", report.Loaded, "skipped", report.Skipped())
}
