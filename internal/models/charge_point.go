package models

import "time"

// LifecycleState is the single active lifecycle value of a charge point.
type LifecycleState string

const (
	StateIdle           LifecycleState = "IDLE"
	StateAccepted       LifecycleState = "ACCEPTED"
	StateRejected       LifecycleState = "REJECTED"
	StateUpdateFirmware LifecycleState = "UPDATE_FIRMWARE"
	StateGetDiagnostics LifecycleState = "GET_DIAGNOSTICS"
	StateClosed         LifecycleState = "CLOSED"
)

// ConnectorStatus mirrors the OCPP 1.6 charge point status vocabulary the
// simulator uses for its connectors.
type ConnectorStatus string

const (
	ConnectorAvailable   ConnectorStatus = "Available"
	ConnectorUnavailable ConnectorStatus = "Unavailable"
	ConnectorCharging    ConnectorStatus = "Charging"
	ConnectorFaulted     ConnectorStatus = "Faulted"
)

// ChargePoint is the durable record of a simulated charger. Everything except
// State is fixed at registration time.
type ChargePoint struct {
	Identity          string         `json:"identity"`
	Model             string         `json:"model"`
	Vendor            string         `json:"vendor"`
	SerialNumber      string         `json:"serialNumber"`
	HeartbeatInterval int            `json:"heartbeatInterval"`
	Endpoint          string         `json:"endpoint"`
	Protocol          string         `json:"protocol"`
	ConnectorCount    int            `json:"connectorCount"`
	State             LifecycleState `json:"state"`
}

// ApplyDefaults fills the optional registration fields.
func (c *ChargePoint) ApplyDefaults() {
	if c.Model == "" {
		c.Model = "Dummy model"
	}
	if c.Vendor == "" {
		c.Vendor = "Some vendor"
	}
	if c.SerialNumber == "" {
		c.SerialNumber = "123456789"
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5
	}
	if c.Protocol == "" {
		c.Protocol = "ocpp1.6"
	}
	if c.ConnectorCount <= 0 {
		c.ConnectorCount = 1
	}
	if c.State == "" {
		c.State = StateIdle
	}
}

// AuthStatusAccepted is the only decision status the cache will persist.
const AuthStatusAccepted = "Accepted"

// AuthTagInfo is the last known authorization decision for an id tag.
type AuthTagInfo struct {
	Status      string     `json:"status"`
	ExpiryDate  *time.Time `json:"expiryDate,omitempty"`
	ParentIdTag string     `json:"parentIdTag,omitempty"`
}

// StartTransactionRequest carries the façade input for starting a transaction.
type StartTransactionRequest struct {
	ConnectorID int    `json:"connectorId"`
	IdTag       string `json:"idTag"`
	MeterStart  int    `json:"meterStart"`
}

// StopTransactionRequest carries the façade input for stopping a transaction.
// IdTag is optional; Reason defaults to Local.
type StopTransactionRequest struct {
	TransactionID int    `json:"transactionId"`
	MeterStop     int    `json:"meterStop"`
	IdTag         string `json:"idTag,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ApplyDefaults fills the simulated meter reading.
func (r *StartTransactionRequest) ApplyDefaults() {
	if r.MeterStart <= 0 {
		r.MeterStart = 20
	}
}

// ApplyDefaults fills the simulated meter reading and stop reason.
func (r *StopTransactionRequest) ApplyDefaults() {
	if r.MeterStop <= 0 {
		r.MeterStop = 10
	}
	if r.Reason == "" {
		r.Reason = "Local"
	}
}
