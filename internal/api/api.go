package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/internal/controller"
	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

// Controller is the part of the control loop the API drives. Mutations are
// queued and return the intent ID that will appear in the loop's log.
type Controller interface {
	Snapshot() model.Snapshot
	SetSetpoint(zone int, value float64) (string, error)
	SetAllSetpoints(value float64) (string, error)
	SetSetting(key string, value float64) (string, error)
	ResetAllErrors() (string, error)
	TriggerScan() (string, error)
	Restart() (string, error)
}

type Server struct {
	ctrl   Controller
	router *mux.Router
	srv    *http.Server
}

type SetpointRequest struct {
	Setpoint *float64 `json:"setpoint"`
}

type IntentResponse struct {
	IntentIDs []string `json:"intent_ids"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewServer(ctrl Controller, port int) *Server {
	s := &Server{ctrl: ctrl, router: mux.NewRouter()}

	r := s.router.PathPrefix("/api").Subrouter()
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/zones", s.getZones).Methods(http.MethodGet)
	r.HandleFunc("/zones/{id}", s.getZone).Methods(http.MethodGet)
	r.HandleFunc("/zones/{id}/setpoint", s.setZoneSetpoint).Methods(http.MethodPut)
	r.HandleFunc("/setpoint", s.setAllSetpoints).Methods(http.MethodPut)
	r.HandleFunc("/settings", s.getSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.updateSettings).Methods(http.MethodPut)
	r.HandleFunc("/sensors", s.getSensors).Methods(http.MethodGet)
	r.HandleFunc("/commands/reset-errors", s.command(ctrl.ResetAllErrors)).Methods(http.MethodPost)
	r.HandleFunc("/commands/scan", s.command(ctrl.TriggerScan)).Methods(http.MethodPost)
	r.HandleFunc("/commands/restart", s.command(ctrl.Restart)).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler wraps the router with CORS, panic recovery and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	recovered := handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))
	return handlers.LoggingHandler(log.Logger, recovered(cors(s.router)))
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("address", s.srv.Addr).Msg("Starting REST API server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) getZones(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, snap.Zones)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneID(w, r)
	if !ok {
		return
	}
	snap := s.ctrl.Snapshot()
	zone, found := snap.Zone(id)
	if !found {
		writeError(w, http.StatusNotFound, "Zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) setZoneSetpoint(w http.ResponseWriter, r *http.Request) {
	id, ok := zoneID(w, r)
	if !ok {
		return
	}
	setpoint, ok := decodeSetpoint(w, r)
	if !ok {
		return
	}

	intentID, err := s.ctrl.SetSetpoint(id, setpoint)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	log.Info().Int("zone", id).Float64("setpoint", setpoint).Str("intent_id", intentID).Msg("Zone setpoint requested via API")
	writeJSON(w, http.StatusAccepted, IntentResponse{IntentIDs: []string{intentID}})
}

func (s *Server) setAllSetpoints(w http.ResponseWriter, r *http.Request) {
	setpoint, ok := decodeSetpoint(w, r)
	if !ok {
		return
	}

	intentID, err := s.ctrl.SetAllSetpoints(setpoint)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	log.Info().Float64("setpoint", setpoint).Str("intent_id", intentID).Msg("Global setpoint requested via API")
	writeJSON(w, http.StatusAccepted, IntentResponse{IntentIDs: []string{intentID}})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, map[string]float64{
		model.KeyHysteresis:          snap.Hysteresis,
		model.KeyPumpStartDelay:      snap.PumpStartDelaySec,
		model.KeyPumpStopDelay:       snap.PumpStopDelaySec,
		model.KeyErrorDisableMinutes: snap.ErrorDisableMin,
	})
}

// updateSettings accepts a partial map of setting keys. Every value is
// checked before any is queued so a bad request changes nothing.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req map[string]float64
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if len(req) == 0 {
		writeError(w, http.StatusBadRequest, "No settings given")
		return
	}

	keys := make([]string, 0, len(req))
	for k := range req {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var candidate model.Settings
	for _, k := range keys {
		if err := candidate.Apply(k, req[k]); err != nil {
			writeIntentError(w, err)
			return
		}
	}

	var resp IntentResponse
	for _, k := range keys {
		intentID, err := s.ctrl.SetSetting(k, req[k])
		if err != nil {
			writeIntentError(w, err)
			return
		}
		resp.IntentIDs = append(resp.IntentIDs, intentID)
		log.Info().Str("key", k).Float64("value", req[k]).Str("intent_id", intentID).Msg("Setting change requested via API")
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) getSensors(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		State    model.ScanState   `json:"scan_state"`
		LastScan *model.ScanReport `json:"last_scan"`
	}{snap.ScanState, snap.LastScan})
}

func (s *Server) command(fn func() (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		intentID, err := fn()
		if err != nil {
			writeIntentError(w, err)
			return
		}
		log.Info().Str("path", r.URL.Path).Str("intent_id", intentID).Msg("Command requested via API")
		writeJSON(w, http.StatusAccepted, IntentResponse{IntentIDs: []string{intentID}})
	}
}

func zoneID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Zone not found")
		return 0, false
	}
	return id, true
}

func decodeSetpoint(w http.ResponseWriter, r *http.Request) (float64, bool) {
	var req SetpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Setpoint == nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return 0, false
	}
	return *req.Setpoint, true
}

func writeIntentError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSetpointOutOfRange),
		errors.Is(err, model.ErrSettingOutOfRange),
		errors.Is(err, model.ErrUnknownSetting):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrScanUnavailable):
		return http.StatusConflict
	case errors.Is(err, controller.ErrBusy):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}
