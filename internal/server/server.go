// Package server exposes the compliance engine over HTTP for form front ends
// that cannot link the Go packages directly.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/timzifer/evcert/chargers"
	"github.com/timzifer/evcert/electrical"
	"github.com/timzifer/evcert/engine"
	"github.com/timzifer/evcert/protection"
	"github.com/timzifer/evcert/validation"
)

const maxBodyBytes = 1 << 20

// EngineFunc returns the engine to serve a request with. It is called per
// request so a reloaded engine takes effect immediately.
type EngineFunc func() *engine.Engine

// Server wires the HTTP endpoints to the engine.
type Server struct {
	engine   EngineFunc
	logger   zerolog.Logger
	gatherer prometheus.Gatherer
}

// New constructs a server. A nil gatherer disables /metrics.
func New(engineFn EngineFunc, logger zerolog.Logger, gatherer prometheus.Gatherer) *Server {
	return &Server{engine: engineFn, logger: logger, gatherer: gatherer}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/validate", s.handleValidate)
		r.Get("/chargers", s.handleChargers)
		r.Get("/chargers/{id}", s.handleCharger)
		r.Get("/chargers/{id}/defaults", s.handleChargerDefaults)
		r.Get("/max-zs", s.handleMaxZs)
		r.Get("/dno", s.handleDNO)
		r.Get("/convert", s.handleConvert)
	})
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("http api listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var form engine.Form
	if !decodeBody(w, r, &form) {
		return
	}
	writeJSON(w, http.StatusOK, s.engine().Evaluate(form))
}

type validateRequest struct {
	Tests validation.TestResults `json:"tests"`
	MaxZs validation.Value       `json:"max_zs"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	results, err := s.engine().Validate(req.Tests, req.MaxZs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleChargers(w http.ResponseWriter, r *http.Request) {
	reg := s.engine().Chargers()
	var specs []chargers.Spec
	if name := r.URL.Query().Get("make"); name != "" {
		specs = reg.ByMake(name)
	} else {
		specs = reg.All()
	}
	if specs == nil {
		specs = []chargers.Spec{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"chargers": specs})
}

func (s *Server) handleCharger(w http.ResponseWriter, r *http.Request) {
	spec, err := s.engine().Chargers().Lookup(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, spec)
}

func (s *Server) handleChargerDefaults(w http.ResponseWriter, r *http.Request) {
	fields, err := s.engine().ChargerDefaults(chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, chargers.ErrUnknownCharger) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleMaxZs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	device, err := protection.ParseDevice(q.Get("type"), q.Get("rating"), q.Get("curve"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	entry, ok := s.engine().LookupMaxZs(device)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no tabulated maximum Zs for " + device.String()})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDNO(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	power, err := strconv.ParseFloat(q.Get("power_kw"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("power_kw must be a number"))
		return
	}
	phases, err := electrical.ParsePhases(q.Get("phases"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := s.engine().CheckDNO(power, phases)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	phases, err := electrical.ParsePhases(q.Get("phases"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e := s.engine()
	switch {
	case q.Get("power_kw") != "":
		power, err := strconv.ParseFloat(q.Get("power_kw"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("power_kw must be a number"))
			return
		}
		current, err := e.PowerToCurrent(power, phases)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"current_a": current})
	case q.Get("current_a") != "":
		current, err := strconv.ParseFloat(q.Get("current_a"), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("current_a must be a number"))
			return
		}
		power, err := e.CurrentToPower(current, phases)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]float64{"power_kw": power})
	default:
		writeError(w, http.StatusBadRequest, errors.New("power_kw or current_a is required"))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
