package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/leads-cli/internal/dedup"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the duplicate review API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		api := newAPIServer(st, newAnalyzer(st), cfg.Server.RunsPerMinute, cfg.Dedup.ResetBeforeRun)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", resolvePort(servePort, cfg.Server.Port)),
			Handler:           buildRouter(api, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		interval := time.Duration(cfg.Server.RunIntervalSecs) * time.Second
		return startServer(ctx, srv, api, interval)
	},
}

// resolvePort returns the flag port if set, otherwise the config port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves until ctx is cancelled, then shuts down gracefully. A
// positive interval also runs analysis on a schedule.
func startServer(ctx context.Context, srv *http.Server, api *apiServer, interval time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if interval > 0 {
		g.Go(func() error {
			api.runScheduled(gctx, interval)
			return nil
		})
	}

	return g.Wait()
}

// apiServer holds the handlers' dependencies. At most one analysis run is in
// flight at a time.
type apiServer struct {
	store        store.Store
	analyzer     *dedup.Analyzer
	limiter      *rate.Limiter
	defaultReset bool
	runMu        sync.Mutex
}

func newAPIServer(st store.Store, analyzer *dedup.Analyzer, runsPerMinute float64, defaultReset bool) *apiServer {
	if runsPerMinute <= 0 {
		runsPerMinute = 1
	}
	return &apiServer{
		store:        st,
		analyzer:     analyzer,
		limiter:      rate.NewLimiter(rate.Limit(runsPerMinute/60), max(int(runsPerMinute), 1)),
		defaultReset: defaultReset,
	}
}

func buildRouter(api *apiServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", api.handleStats)
		r.Get("/duplicates/groups", api.handleListGroups)
		r.Get("/duplicates/groups/{groupID}", api.handleGetGroup)
		r.Post("/duplicates/run", api.handleRun)
	})

	return r
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.analyzer.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.store.ListDuplicateGroups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if groups == nil {
		groups = []model.GroupSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups, "count": len(groups)})
}

func (s *apiServer) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")

	rows, err := s.store.GetDuplicatesByGroup(r.Context(), groupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(rows) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "duplicate group not found"})
		return
	}

	details, err := resolveMatches(r.Context(), s.store, rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"duplicate_group_id": groupID,
		"matches":            details,
	})
}

type runRequest struct {
	Reset  *bool `json:"reset"`
	DryRun bool  `json:"dry_run"`
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "analysis rate limit exceeded"})
		return
	}
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "analysis already running"})
		return
	}
	defer s.runMu.Unlock()

	opts := dedup.RunOptions{Reset: s.defaultReset, DryRun: req.DryRun}
	if req.Reset != nil {
		opts.Reset = *req.Reset
	}

	summary, err := s.analyzer.Run(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// runScheduled runs analysis every interval until ctx is done. A tick that
// finds a run in progress is skipped.
func (s *apiServer) runScheduled(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.runMu.TryLock() {
				zap.L().Info("scheduled analysis skipped, run in progress")
				continue
			}
			summary, err := s.analyzer.Run(ctx, dedup.RunOptions{Reset: s.defaultReset})
			s.runMu.Unlock()
			if err != nil {
				zap.L().Error("scheduled analysis failed", zap.Error(err))
				continue
			}
			zap.L().Info("scheduled analysis complete",
				zap.Int("matches", summary.Matches),
				zap.Int("groups", summary.Groups),
			)
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("api request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
