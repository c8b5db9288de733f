package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/radiant-controller/internal/controller"
	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

type call struct {
	name  string
	zone  int
	key   string
	value float64
}

type fakeController struct {
	snap  model.Snapshot
	calls []call
	err   error
}

func newFakeController() *fakeController {
	f := &fakeController{}
	for i := range f.snap.Zones {
		f.snap.Zones[i] = model.Zone{ID: i + 1, Label: "Zone", Setpoint: 20, DisplayState: model.DisplayIdle}
	}
	f.snap.Hysteresis = 0.5
	f.snap.PumpStartDelaySec = 5
	f.snap.PumpStopDelaySec = 30
	f.snap.ErrorDisableMin = 5
	f.snap.ScanState = model.ScanIdle
	return f
}

func (f *fakeController) Snapshot() model.Snapshot { return f.snap }

func (f *fakeController) record(c call) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, c)
	return "intent-" + c.name, nil
}

func (f *fakeController) SetSetpoint(zone int, value float64) (string, error) {
	if err := model.ValidateZoneID(zone); err != nil {
		return "", err
	}
	if err := model.ValidateSetpoint(value); err != nil {
		return "", err
	}
	return f.record(call{name: "setpoint", zone: zone, value: value})
}

func (f *fakeController) SetAllSetpoints(value float64) (string, error) {
	if err := model.ValidateSetpoint(value); err != nil {
		return "", err
	}
	return f.record(call{name: "all_setpoints", value: value})
}

func (f *fakeController) SetSetting(key string, value float64) (string, error) {
	return f.record(call{name: "setting", key: key, value: value})
}

func (f *fakeController) ResetAllErrors() (string, error) { return f.record(call{name: "reset"}) }
func (f *fakeController) TriggerScan() (string, error)    { return f.record(call{name: "scan"}) }
func (f *fakeController) Restart() (string, error)        { return f.record(call{name: "restart"}) }

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

func TestGetStatus(t *testing.T) {
	ctrl := newFakeController()
	ctrl.snap.ActiveZones = 2
	ctrl.snap.Pump.RelayOn = true

	w := do(t, NewServer(ctrl, 0), http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var snap model.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 2, snap.ActiveZones)
	assert.True(t, snap.Pump.RelayOn)
	assert.Equal(t, 7, snap.Zones[6].ID)
}

func TestGetZones(t *testing.T) {
	w := do(t, NewServer(newFakeController(), 0), http.MethodGet, "/api/zones", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var zones []model.Zone
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zones))
	assert.Len(t, zones, model.NumZones)
}

func TestGetZone(t *testing.T) {
	ctrl := newFakeController()
	temp := 19.5
	ctrl.snap.Zones[2].Temperature = &temp
	s := NewServer(ctrl, 0)

	w := do(t, s, http.MethodGet, "/api/zones/3", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var zone model.Zone
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &zone))
	assert.Equal(t, 3, zone.ID)
	require.NotNil(t, zone.Temperature)
	assert.Equal(t, 19.5, *zone.Temperature)

	for _, path := range []string{"/api/zones/0", "/api/zones/8", "/api/zones/kitchen"} {
		w := do(t, s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Zone not found", errorMessage(t, w))
	}
}

func TestSetZoneSetpoint(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
	}{
		{"valid", "/api/zones/2/setpoint", `{"setpoint": 22.5}`, http.StatusAccepted},
		{"lower bound", "/api/zones/2/setpoint", `{"setpoint": 10}`, http.StatusAccepted},
		{"too low", "/api/zones/2/setpoint", `{"setpoint": 9.9}`, http.StatusBadRequest},
		{"too high", "/api/zones/2/setpoint", `{"setpoint": 30.1}`, http.StatusBadRequest},
		{"unknown zone", "/api/zones/9/setpoint", `{"setpoint": 21}`, http.StatusNotFound},
		{"invalid json", "/api/zones/2/setpoint", `not json`, http.StatusBadRequest},
		{"missing field", "/api/zones/2/setpoint", `{}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			w := do(t, NewServer(ctrl, 0), http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus == http.StatusAccepted {
				var resp IntentResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, []string{"intent-setpoint"}, resp.IntentIDs)
				require.Len(t, ctrl.calls, 1)
				assert.Equal(t, 2, ctrl.calls[0].zone)
			} else {
				assert.Empty(t, ctrl.calls)
			}
		})
	}
}

func TestSetAllSetpoints(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, 0)

	w := do(t, s, http.MethodPut, "/api/setpoint", `{"setpoint": 18}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ctrl.calls, 1)
	assert.Equal(t, call{name: "all_setpoints", value: 18}, ctrl.calls[0])

	w = do(t, s, http.MethodPut, "/api/setpoint", `{"setpoint": 31}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, ctrl.calls, 1)
}

func TestSettings(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, 0)

	w := do(t, s, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var got map[string]float64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 0.5, got[model.KeyHysteresis])
	assert.Equal(t, 30.0, got[model.KeyPumpStopDelay])

	w = do(t, s, http.MethodPut, "/api/settings", `{"hysteresis": 0.8, "pump_stop_delay_seconds": 60}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ctrl.calls, 2)
	assert.Equal(t, "hysteresis", ctrl.calls[0].key)
	assert.Equal(t, "pump_stop_delay_seconds", ctrl.calls[1].key)
}

func TestUpdateSettings_RejectsWholeRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"out of range", `{"hysteresis": 0.8, "pump_stop_delay_seconds": 601}`},
		{"unknown key", `{"hysteresis": 0.8, "boiler_temp": 60}`},
		{"setpoint key", `{"zone_1_setpoint": 21}`},
		{"empty", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			w := do(t, NewServer(ctrl, 0), http.MethodPut, "/api/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, ctrl.calls)
		})
	}
}

func TestCommands(t *testing.T) {
	for path, name := range map[string]string{
		"/api/commands/reset-errors": "reset",
		"/api/commands/scan":         "scan",
		"/api/commands/restart":      "restart",
	} {
		ctrl := newFakeController()
		w := do(t, NewServer(ctrl, 0), http.MethodPost, path, "")
		assert.Equal(t, http.StatusAccepted, w.Code, path)
		require.Len(t, ctrl.calls, 1, path)
		assert.Equal(t, name, ctrl.calls[0].name)
	}
}

func TestIntentErrors(t *testing.T) {
	tests := []struct {
		err            error
		expectedStatus int
	}{
		{controller.ErrBusy, http.StatusServiceUnavailable},
		{controller.ErrScanUnavailable, http.StatusConflict},
	}
	for _, tt := range tests {
		ctrl := newFakeController()
		ctrl.err = tt.err
		w := do(t, NewServer(ctrl, 0), http.MethodPost, "/api/commands/scan", "")
		assert.Equal(t, tt.expectedStatus, w.Code)
		assert.Equal(t, tt.err.Error(), errorMessage(t, w))
	}
}

func TestGetSensors(t *testing.T) {
	ctrl := newFakeController()
	reading := 21.25
	ctrl.snap.ScanState = model.ScanReporting
	ctrl.snap.LastScan = &model.ScanReport{
		ID:      "scan-1",
		Count:   1,
		Sensors: []model.DiscoveredSensor{{Index: 1, Address: "28-0000000001", Reading: &reading}},
	}

	w := do(t, NewServer(ctrl, 0), http.MethodGet, "/api/sensors", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		State    model.ScanState   `json:"scan_state"`
		LastScan *model.ScanReport `json:"last_scan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, model.ScanReporting, resp.State)
	require.NotNil(t, resp.LastScan)
	assert.Equal(t, "28-0000000001", resp.LastScan.Sensors[0].Address)
}

func TestMethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/status"},
		{http.MethodDelete, "/api/zones/1"},
		{http.MethodPost, "/api/zones/1/setpoint"},
		{http.MethodGet, "/api/commands/restart"},
	}
	s := NewServer(newFakeController(), 0)
	for _, tt := range tests {
		w := do(t, s, tt.method, tt.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, tt.method+" "+tt.path)
	}
}

func TestUnknownPath(t *testing.T) {
	w := do(t, NewServer(newFakeController(), 0), http.MethodGet, "/api/boiler", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/zones/1/setpoint", nil)
	req.Header.Set("Origin", "http://display.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()

	NewServer(newFakeController(), 0).Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
