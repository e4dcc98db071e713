// Package control exposes the engine over HTTP.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mrdg/groove/clock"
	"github.com/mrdg/groove/engine"
	"github.com/mrdg/groove/graph"
	"github.com/mrdg/groove/midi"
	"github.com/rs/cors"
)

// Engine is the part of *engine.Engine the server drives.
type Engine interface {
	Snapshot() *engine.Snapshot
	Parameter(device, name string) (float64, error)
	SetParameter(device, name string, v float64) (clamped bool, err error)
	Play()
	Pause()
	Stop()
	Panic()
	Seek(p clock.Position)
	SetTempo(bpm float64) error
	SubmitEvent(ev midi.Event)
	Stats() engine.Stats
}

type server struct {
	engine Engine
	logger *slog.Logger
}

// Handler returns the HTTP handler for the control API.
func Handler(e Engine, logger *slog.Logger) http.Handler {
	s := &server{engine: e, logger: logger}
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/devices", s.handleDevices).Methods("GET")
	router.HandleFunc("/devices/{id}/params/{name}", s.handleGetParam).Methods("GET")
	router.HandleFunc("/devices/{id}/params/{name}", s.handleSetParam).Methods("PUT")
	router.HandleFunc("/transport/seek", s.handleSeek).Methods("POST")
	router.HandleFunc("/transport/tempo", s.handleTempo).Methods("POST")
	router.HandleFunc("/transport/{action:play|pause|stop|panic}", s.handleTransport).Methods("POST")
	router.HandleFunc("/events", s.handleEvent).Methods("POST")
	router.HandleFunc("/stats", s.handleStats).Methods("GET")

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodPost},
	})
	return c.Handler(router)
}

type paramInfo struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type deviceInfo struct {
	ID     string      `json:"id"`
	Role   string      `json:"role"`
	Params []paramInfo `json:"params"`
}

func (s *server) handleDevices(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		s.fail(w, engine.ErrNoProject)
		return
	}
	devices := make([]deviceInfo, 0)
	for _, n := range snap.Graph.Nodes() {
		info := deviceInfo{ID: n.ID, Role: n.Role.String(), Params: make([]paramInfo, 0)}
		for _, p := range n.Device.Params().All() {
			lo, hi := p.Range()
			info.Params = append(info.Params, paramInfo{Name: p.Name(), Value: p.Value(), Min: lo, Max: hi})
		}
		devices = append(devices, info)
	}
	s.reply(w, devices)
}

type paramValue struct {
	Value   *float64 `json:"value"`
	Clamped bool     `json:"clamped,omitempty"`
}

func (s *server) handleGetParam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	v, err := s.engine.Parameter(vars["id"], vars["name"])
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, paramValue{Value: &v})
}

func (s *server) handleSetParam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var body paramValue
	if !s.decode(w, r, &body) {
		return
	}
	if body.Value == nil {
		s.badRequest(w, errors.New("missing value"))
		return
	}
	clamped, err := s.engine.SetParameter(vars["id"], vars["name"], *body.Value)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.reply(w, paramValue{Value: body.Value, Clamped: clamped})
}

func (s *server) handleTransport(w http.ResponseWriter, r *http.Request) {
	switch mux.Vars(r)["action"] {
	case "play":
		s.engine.Play()
	case "pause":
		s.engine.Pause()
	case "stop":
		s.engine.Stop()
	case "panic":
		s.engine.Panic()
	}
	w.WriteHeader(http.StatusNoContent)
}

type seekRequest struct {
	Measure int `json:"measure"`
	Beat    int `json:"beat"`
	Tick    int `json:"tick"`
}

func (s *server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var body seekRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Measure < 0 || body.Beat < 0 || body.Tick < 0 {
		s.badRequest(w, fmt.Errorf("negative position %+v", body))
		return
	}
	s.engine.Seek(clock.Position{Measure: body.Measure, Beat: body.Beat, Tick: body.Tick})
	w.WriteHeader(http.StatusNoContent)
}

type tempoRequest struct {
	BPM float64 `json:"bpm"`
}

func (s *server) handleTempo(w http.ResponseWriter, r *http.Request) {
	var body tempoRequest
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.engine.SetTempo(body.BPM); err != nil {
		s.badRequest(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventRequest struct {
	Type     string `json:"type"`
	Channel  int    `json:"channel"`
	Pitch    int    `json:"pitch"`
	Velocity int    `json:"velocity"`
}

func (s *server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var body eventRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Channel < 0 || body.Channel >= midi.NumChannels || body.Pitch < 0 || body.Pitch > 127 ||
		body.Velocity < 0 || body.Velocity > 127 {
		s.badRequest(w, fmt.Errorf("event out of range: %+v", body))
		return
	}
	var ev midi.Event
	switch body.Type {
	case "note-on":
		ev = midi.On(uint8(body.Channel), uint8(body.Pitch), uint8(body.Velocity))
	case "note-off":
		ev = midi.Off(uint8(body.Channel), uint8(body.Pitch))
	default:
		s.badRequest(w, fmt.Errorf("unknown event type %q", body.Type))
		return
	}
	s.engine.SubmitEvent(ev)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.reply(w, s.engine.Stats())
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.badRequest(w, fmt.Errorf("could not decode request body: %w", err))
		return false
	}
	return true
}

func (s *server) reply(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) badRequest(w http.ResponseWriter, err error) {
	s.writeError(w, http.StatusBadRequest, err)
}

func (s *server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, engine.ErrNoProject):
		s.writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.logger.Error("request failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, err)
	}
}

func (s *server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
