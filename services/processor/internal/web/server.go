package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/processor/internal/metrics"
)

// DBPinger is the readiness contract for the database pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// BrokerCheck reports whether the outcome publisher connection is open.
type BrokerCheck interface {
	Ready() bool
}

// Server exposes the operational endpoints. The processor has no public
// API; health, readiness and metrics are all it serves.
type Server struct {
	addr   string
	db     DBPinger
	broker BrokerCheck
	lg     zerolog.Logger
	srv    *http.Server
}

func NewServer(addr string, db DBPinger, broker BrokerCheck, lg zerolog.Logger) *Server {
	s := &Server{
		addr:   addr,
		db:     db,
		broker: broker,
		lg:     lg.With().Str("component", "ops_web").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()

	s.lg.Info().Str("addr", s.addr).Msg("ops server listening")
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	s.lg.Info().Msg("ops server shutting down")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz checks the dependencies a delivery actually needs: the DB
// answers a ping and the publisher connection is open.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": "database unreachable",
			})
			return
		}
	}
	if s.broker != nil && !s.broker.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "broker connection down",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
