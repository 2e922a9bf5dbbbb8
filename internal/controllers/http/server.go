package httpctrl

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Agrid-Dev/thermostep/internal/ports"
	"github.com/Agrid-Dev/thermostep/internal/thermostat"
)

type Server struct {
	svc      ports.ThermostatService
	srv      *http.Server
	deviceID string
}

// New returns a runnable server.
func New(svc ports.ThermostatService, addr string, deviceID string) *Server {
	mux := http.NewServeMux()
	s := &Server{svc: svc, deviceID: deviceID}

	// Read
	mux.HandleFunc("GET /v1", s.handleGet)

	// Write: the target request plus the two step commands
	mux.HandleFunc("POST /v1/target_temp", s.handlePostTarget)
	mux.HandleFunc("POST /v1/tick", s.handlePostTick)
	mux.HandleFunc("POST /v1/reconcile", s.handlePostReconcile)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	return s
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ---- DTOs ----

type stateDTO struct {
	DeviceID    string `json:"device_id"`
	CurrentTemp int    `json:"current_temp"`
	TargetTemp  int    `json:"target_temp"`
	Mode        string `json:"mode"`
	FanSpeed    string `json:"fan_speed"`
	Delta       int    `json:"delta"`
}

func toDTO(s thermostat.State) stateDTO {
	return stateDTO{
		CurrentTemp: s.CurrentTemp,
		TargetTemp:  s.TargetTemp,
		Mode:        s.Mode.String(),
		FanSpeed:    s.FanSpeed.String(),
		Delta:       s.Delta(),
	}
}

// ---- Handlers ----

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request) {
	s.respondState(w)
}

func (s *Server) handlePostTarget(w http.ResponseWriter, r *http.Request) {
	// body: {"value": 25}. An out-of-window value is not a transport error;
	// the device ignores it and the response carries the unchanged state.
	postValue(s, w, r, func(v int) {
		s.svc.SetTarget(v)
	})
}

func (s *Server) handlePostTick(w http.ResponseWriter, _ *http.Request) {
	s.svc.Tick()
	s.respondState(w)
}

func (s *Server) handlePostReconcile(w http.ResponseWriter, _ *http.Request) {
	s.svc.Reconcile()
	s.respondState(w)
}

// ---- generic helpers ----
func (s *Server) respondState(w http.ResponseWriter) {
	dto := toDTO(s.svc.Get())
	dto.DeviceID = s.deviceID
	writeJSON(w, http.StatusOK, dto)
}

func postValue[T any](s *Server, w http.ResponseWriter, r *http.Request, apply func(T)) {
	dec := json.NewDecoder(r.Body)
	var req struct {
		Value *T `json:"value"`
	}
	if err := dec.Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Value == nil {
		writeErr(w, http.StatusBadRequest, "missing field 'value'")
		return
	}

	apply(*req.Value)
	s.respondState(w)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
