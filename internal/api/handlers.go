package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/larsks/pductl/internal/switchcollection"
)

const (
	outletStateOn     = "on"
	outletStateOff    = "off"
	outletStateReboot = "reboot"
)

type outletRequest struct {
	State string `json:"state"`
}

type outletState struct {
	ID    uint   `json:"id"`
	State string `json:"state"`
}

type jsonResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Outlets []outletState `json:"outlets,omitempty"`
}

func (s *Server) sendJSONResponse(w http.ResponseWriter, resp jsonResponse, httpCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(resp) //nolint:errcheck
}

func (s *Server) sendError(w http.ResponseWriter, message string, httpCode int) {
	s.sendJSONResponse(w, jsonResponse{Status: "error", Message: message}, httpCode)
}

// outletFromRequest resolves the {id} URL parameter to a switch. Outlet ids
// are 1-based on the wire and in the API; the collection is 0-based.
func (s *Server) outletFromRequest(r *http.Request) (switchcollection.Switch, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if id < 1 {
		return nil, fmt.Errorf("invalid outlet id %d", id)
	}
	return s.switches.GetSwitch(uint(id - 1))
}

func (s *Server) outletHandler(w http.ResponseWriter, r *http.Request) {
	var req outletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}

	if req.State != outletStateOn && req.State != outletStateOff && req.State != outletStateReboot {
		s.sendError(w, "Invalid state, must be 'on', 'off', or 'reboot'", http.StatusBadRequest)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if chi.URLParam(r, "id") == "all" {
		if err := s.handleAll(req.State); err != nil {
			if err == errRebootAll {
				s.sendError(w, "Reboot is not supported for 'all'", http.StatusBadRequest)
				return
			}
			log.Printf("failed to switch all outlets %s: %v", req.State, err)
			s.sendError(w, "Failed to switch outlets", http.StatusInternalServerError)
			return
		}
		s.sendJSONResponse(w, jsonResponse{Status: "ok"}, http.StatusOK)
		return
	}

	sw, err := s.outletFromRequest(r)
	if err != nil {
		s.sendError(w, "Unknown outlet", http.StatusNotFound)
		return
	}

	if err := s.handleOutlet(sw, req.State); err != nil {
		log.Printf("failed to switch %s %s: %v", sw, req.State, err)
		s.sendError(w, "Failed to switch outlet", http.StatusInternalServerError)
		return
	}

	s.sendJSONResponse(w, jsonResponse{Status: "ok"}, http.StatusOK)
}

var errRebootAll = errors.New("reboot is not supported for all outlets")

func (s *Server) handleAll(state string) error {
	switch state {
	case outletStateOn:
		return s.switches.TurnOn()
	case outletStateOff:
		return s.switches.TurnOff()
	default:
		// the device has no all-outlet reboot command
		return errRebootAll
	}
}

func (s *Server) handleOutlet(sw switchcollection.Switch, state string) error {
	switch state {
	case outletStateOn:
		return sw.TurnOn()
	case outletStateOff:
		return sw.TurnOff()
	default:
		if rb, ok := sw.(switchcollection.Rebooter); ok {
			return rb.Reboot()
		}
		// fall back to an off/on pair for drivers without a
		// single-operation reboot
		if err := sw.TurnOff(); err != nil {
			return err
		}
		return sw.TurnOn()
	}
}

func (s *Server) outletStatusHandler(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	sw, err := s.outletFromRequest(r)
	if err != nil {
		s.sendError(w, "Unknown outlet", http.StatusNotFound)
		return
	}

	state, err := sw.GetState()
	if err != nil {
		log.Printf("failed to get state of %s: %v", sw, err)
		s.sendError(w, "Failed to get outlet state", http.StatusInternalServerError)
		return
	}

	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	s.sendJSONResponse(w, jsonResponse{
		Status:  "ok",
		Outlets: []outletState{{ID: uint(id), State: stateString(state)}},
	}, http.StatusOK)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	states, err := s.switches.GetDetailedState()
	if err != nil {
		log.Printf("failed to get outlet states: %v", err)
		s.sendError(w, "Failed to get outlet states", http.StatusInternalServerError)
		return
	}

	outlets := make([]outletState, len(states))
	for i, state := range states {
		outlets[i] = outletState{ID: uint(i) + 1, State: stateString(state)}
	}

	s.sendJSONResponse(w, jsonResponse{Status: "ok", Outlets: outlets}, http.StatusOK)
}

func stateString(on bool) string {
	if on {
		return outletStateOn
	}
	return outletStateOff
}
