package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"postgrab/pkg/config"
	errs "postgrab/pkg/errors"
	"postgrab/pkg/grabber"
	"postgrab/pkg/logger"
	"postgrab/pkg/messaging"
)

// Server is the local HTTP/WebSocket bridge in front of the grabber bus.
type Server struct {
	grabber *grabber.Grabber
	hub     *Hub
	cfg     config.BridgeConfig
	logger  logger.Logger
	http    *http.Server
}

// NewServer wires the bridge to a grabber: bus events stream to the hub,
// HTTP requests become bus requests.
func NewServer(g *grabber.Grabber, cfg config.BridgeConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Server{
		grabber: g,
		hub:     NewHub(log),
		cfg:     cfg,
		logger:  log,
	}
	g.Bus().Subscribe(s.hub.BroadcastEvent)

	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe runs the bridge until the listener fails or Shutdown is
// called.
func (s *Server) ListenAndServe() error {
	go s.hub.Run()
	s.logger.WithField("addr", s.cfg.ListenAddr).Info("bridge listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.Wrap(errs.KindUnavailable, err, "bridge server failed")
	}
	return nil
}

// Shutdown stops accepting requests and drains in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.routes() }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/extract", s.dispatch(messaging.TypeExtractImages, true))
		r.Post("/downloads", s.dispatch(messaging.TypeDownloadSingle, true))
		r.Post("/downloads/batch", s.dispatch(messaging.TypeDownloadBatch, true))
		r.Post("/downloads/cancel", s.dispatch(messaging.TypeCancelAll, false))
		r.Post("/downloads/retry", s.dispatch(messaging.TypeRetryFailed, false))
		r.Get("/progress", s.dispatch(messaging.TypeGetProgress, false))
		r.Get("/config", s.dispatch(messaging.TypeGetConfig, false))
		r.Patch("/config", s.dispatch(messaging.TypeUpdateConfig, true))
	})
	return r
}

// dispatch turns an HTTP request into a bus request of the given type,
// forwarding the JSON body as the payload when one is expected.
func (s *Server) dispatch(t messaging.MessageType, wantBody bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload json.RawMessage
		if wantBody {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
			if err != nil {
				respondError(w, errs.Wrap(errs.KindValidation, err, "failed to read request body"))
				return
			}
			payload = body
		}

		req, err := messaging.NewRequest(t, payload)
		if err != nil {
			respondError(w, errs.Wrap(errs.KindValidation, err, "failed to build request"))
			return
		}

		ctx := r.Context()
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
		}

		resp := s.grabber.Bus().Request(ctx, req)
		if !resp.Success {
			respondJSON(w, statusForKind(errs.Kind(resp.ErrorKind)), resp)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusForKind(errs.KindOf(err)), messaging.Response{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: string(errs.KindOf(err)),
		Timestamp: time.Now().UTC(),
	})
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnsupported:
		return http.StatusUnprocessableEntity
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnavailable:
		return http.StatusServiceUnavailable
	case errs.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
