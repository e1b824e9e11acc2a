package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	CreateChargePoint http.HandlerFunc
	ListChargePoints  http.HandlerFunc
	GetChargePoint    http.HandlerFunc
	DeleteChargePoint http.HandlerFunc
	StartChargePoint  http.HandlerFunc
	BootNotification  http.HandlerFunc
	Heartbeat         http.HandlerFunc
	Authorize         http.HandlerFunc
	StartTransaction  http.HandlerFunc
	StopTransaction   http.HandlerFunc
	Health            http.HandlerFunc
	Metrics           http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.CreateChargePoint != nil {
		mux.Handle("POST /charge-points", routes.CreateChargePoint)
	}
	if routes.ListChargePoints != nil {
		mux.Handle("GET /charge-points", routes.ListChargePoints)
	}
	if routes.GetChargePoint != nil {
		mux.Handle("GET /charge-points/{id}", routes.GetChargePoint)
	}
	if routes.DeleteChargePoint != nil {
		mux.Handle("DELETE /charge-points/{id}", routes.DeleteChargePoint)
	}
	if routes.StartChargePoint != nil {
		mux.Handle("POST /charge-points/{id}/start", routes.StartChargePoint)
	}
	if routes.BootNotification != nil {
		mux.Handle("POST /charge-points/{id}/commands/boot-notification", routes.BootNotification)
	}
	if routes.Heartbeat != nil {
		mux.Handle("POST /charge-points/{id}/commands/heartbeat", routes.Heartbeat)
	}
	if routes.Authorize != nil {
		mux.Handle("POST /charge-points/{id}/commands/authorize", routes.Authorize)
	}
	if routes.StartTransaction != nil {
		mux.Handle("POST /charge-points/{id}/commands/start-transaction", routes.StartTransaction)
	}
	if routes.StopTransaction != nil {
		mux.Handle("POST /charge-points/{id}/commands/stop-transaction", routes.StopTransaction)
	}
	if routes.Health != nil {
		mux.Handle("GET /health", routes.Health)
	}
	if routes.Metrics != nil {
		mux.Handle("GET /metrics", routes.Metrics)
	}
	return mux
}
