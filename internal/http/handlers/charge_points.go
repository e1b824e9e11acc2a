package handlers

import (
	"net/http"
	"strings"

	"github.com/stefan2811/port-16/internal/models"
	"github.com/stefan2811/port-16/internal/service"
)

// NewCreateChargePointHandler returns POST /charge-points handler.
func NewCreateChargePointHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var record models.ChargePoint
		if err := decodeJSON(r, &record); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(record.Identity) == "" {
			writeError(w, http.StatusBadRequest, "identity is required")
			return
		}

		created, err := svc.CreateChargePoint(r.Context(), record)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

// NewListChargePointsHandler returns GET /charge-points handler.
func NewListChargePointsHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.ListChargePoints(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"chargePoints": records,
		})
	}
}

// NewGetChargePointHandler returns GET /charge-points/{id} handler.
func NewGetChargePointHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.GetChargePoint(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// NewDeleteChargePointHandler returns DELETE /charge-points/{id} handler.
func NewDeleteChargePointHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.DeleteChargePoint(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// NewStartChargePointHandler returns POST /charge-points/{id}/start handler.
func NewStartChargePointHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.StartChargePoint(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}
