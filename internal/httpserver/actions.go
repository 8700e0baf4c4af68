package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"cafedeck/internal/gateway"
	"cafedeck/internal/lifecycle"
	"cafedeck/internal/models"
	"cafedeck/internal/store"
)

type lockRequest struct {
	LockedFor string `json:"lockedFor"`
}

type startSessionRequest struct {
	CustomerName  string          `json:"customerName"`
	TimeMinutes   int             `json:"timeMinutes"`
	PrepaidAmount decimal.Decimal `json:"prepaidAmount"`
}

type addTimeRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handlers) createStation(w http.ResponseWriter, r *http.Request) {
	var st models.Station
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid station payload")
		return
	}
	if err := h.Gateway.CreateStation(r.Context(), st); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (h *Handlers) deleteStation(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.Gateway.DeleteStation(r.Context(), id); err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) stationAction(w http.ResponseWriter, r *http.Request, id, action string) {
	ctx := r.Context()
	var err error

	switch action {
	case "lock":
		var req lockRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		err = h.Gateway.Lock(ctx, id, req.LockedFor)
	case "unlock":
		err = h.Gateway.Unlock(ctx, id)
	case "sessions":
		var req startSessionRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid session payload")
			return
		}
		err = h.Gateway.StartSession(ctx, id, req.CustomerName, req.TimeMinutes, req.PrepaidAmount)
	case "sessions/end":
		err = h.Gateway.EndSession(ctx, id)
	case "sessions/add-time":
		var req addTimeRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			writeError(w, http.StatusBadRequest, "invalid add-time payload")
			return
		}
		err = h.Gateway.AddTime(ctx, id, req.Minutes)
	case "raise-hand":
		err = h.Gateway.RaiseHand(ctx, id)
	case "lower-hand":
		err = h.Gateway.LowerHand(ctx, id)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}

	if err != nil {
		writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeActionError maps gateway failures: precondition errors are the
// operator's mistake, everything else is a backend failure that was already
// rolled back.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrStationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrNoActiveSession),
		errors.Is(err, gateway.ErrStationLocked),
		errors.Is(err, gateway.ErrStationBusy),
		errors.Is(err, lifecycle.ErrStationOccupied),
		errors.Is(err, lifecycle.ErrStationUnavailable),
		errors.Is(err, lifecycle.ErrNoActiveSession),
		errors.Is(err, lifecycle.ErrSessionMismatch),
		errors.Is(err, lifecycle.ErrInvalidDuration):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
