package session

import (
	ocpp16 "github.com/lorenzodonini/ocpp-go/ocpp1.6"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"

	"github.com/stefan2811/port-16/internal/models"
)

// Client is the slice of the ocpp-go charge point client a Session drives.
// The protocol library owns framing, correlation and the websocket itself;
// tests substitute a scripted fake.
type Client interface {
	BootNotification(chargePointModel string, chargePointVendor string, props ...func(request *core.BootNotificationRequest)) (*core.BootNotificationConfirmation, error)
	Authorize(idTag string, props ...func(request *core.AuthorizeRequest)) (*core.AuthorizeConfirmation, error)
	Heartbeat(props ...func(request *core.HeartbeatRequest)) (*core.HeartbeatConfirmation, error)
	StartTransaction(connectorId int, idTag string, meterStart int, timestamp *types.DateTime, props ...func(request *core.StartTransactionRequest)) (*core.StartTransactionConfirmation, error)
	StopTransaction(meterStop int, timestamp *types.DateTime, transactionId int, props ...func(request *core.StopTransactionRequest)) (*core.StopTransactionConfirmation, error)
	StatusNotification(connectorId int, errorCode core.ChargePointErrorCode, status core.ChargePointStatus, props ...func(request *core.StatusNotificationRequest)) (*core.StatusNotificationConfirmation, error)
	FirmwareStatusNotification(status firmware.FirmwareStatus, props ...func(request *firmware.FirmwareStatusNotificationRequest)) (*firmware.FirmwareStatusNotificationConfirmation, error)
	DiagnosticsStatusNotification(status firmware.DiagnosticsStatus, props ...func(request *firmware.DiagnosticsStatusNotificationRequest)) (*firmware.DiagnosticsStatusNotificationConfirmation, error)
	SetCoreHandler(handler core.ChargePointHandler)
	SetFirmwareManagementHandler(handler firmware.ChargePointHandler)
	Start(centralSystemURL string) error
	Stop()
	IsConnected() bool
}

// Dial connects a new ocpp-go charge point client to the central system
// endpoint declared in the charger's record. The library appends the charger
// identity to the endpoint path and negotiates the ocpp1.6 subprotocol.
func Dial(record models.ChargePoint) (Client, error) {
	client := ocpp16.NewChargePoint(record.Identity, nil, nil)
	if err := client.Start(record.Endpoint); err != nil {
		return nil, err
	}
	return client, nil
}
