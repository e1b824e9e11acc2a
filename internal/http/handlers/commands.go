package handlers

import (
	"net/http"
	"strings"

	"github.com/stefan2811/port-16/internal/models"
	"github.com/stefan2811/port-16/internal/service"
)

// NewBootNotificationHandler returns POST /charge-points/{id}/commands/boot-notification handler.
func NewBootNotificationHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.ExecuteBoot(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// NewHeartbeatHandler returns POST /charge-points/{id}/commands/heartbeat
// handler. The loop itself runs in the background; the response only confirms
// scheduling.
func NewHeartbeatHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := svc.ExecuteHeartbeat(r.Context(), r.PathValue("id"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, record)
	}
}

// NewAuthorizeHandler returns POST /charge-points/{id}/commands/authorize handler.
func NewAuthorizeHandler(svc *service.Commands) http.HandlerFunc {
	type request struct {
		IdTag string `json:"idTag"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body request
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(body.IdTag) == "" {
			writeError(w, http.StatusBadRequest, "idTag is required")
			return
		}

		info, err := svc.ExecuteAuthorize(r.Context(), r.PathValue("id"), body.IdTag)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}

// NewStartTransactionHandler returns POST /charge-points/{id}/commands/start-transaction handler.
func NewStartTransactionHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.StartTransactionRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(body.IdTag) == "" {
			writeError(w, http.StatusBadRequest, "idTag is required")
			return
		}
		if body.ConnectorID <= 0 {
			writeError(w, http.StatusBadRequest, "connectorId is required")
			return
		}

		transactionID, info, err := svc.ExecuteStartTransaction(r.Context(), r.PathValue("id"), body)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"transactionId": transactionID,
			"idTagInfo":     info,
		})
	}
}

// NewStopTransactionHandler returns POST /charge-points/{id}/commands/stop-transaction handler.
func NewStopTransactionHandler(svc *service.Commands) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body models.StopTransactionRequest
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.TransactionID <= 0 {
			writeError(w, http.StatusBadRequest, "transactionId is required")
			return
		}

		info, err := svc.ExecuteStopTransaction(r.Context(), r.PathValue("id"), body)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"idTagInfo": info,
		})
	}
}
