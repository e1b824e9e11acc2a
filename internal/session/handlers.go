package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/models"
)

// Inbound remote commands. The protocol requires a synchronous
// acknowledgment distinct from the actual outcome, so every handler answers
// "accepted" immediately and runs its side effects in a goroutine. A
// follow-up that fails after the ack is logged and dropped.

// OnUpdateFirmware moves the lifecycle into UPDATE_FIRMWARE; the heartbeat
// loop picks the state up and runs the simulated download/install sequence.
func (s *Session) OnUpdateFirmware(request *firmware.UpdateFirmwareRequest) (*firmware.UpdateFirmwareConfirmation, error) {
	s.logger.Info("starting UpdateFirmware process", zap.String("location", request.Location))
	if _, err := s.stores.Points.UpdateState(context.Background(), s.id, models.StateUpdateFirmware); err != nil {
		s.logger.Error("failed to enter firmware state", zap.Error(err))
	}
	return firmware.NewUpdateFirmwareConfirmation(), nil
}

// OnGetDiagnostics moves the lifecycle into GET_DIAGNOSTICS and names the
// file the upload would produce.
func (s *Session) OnGetDiagnostics(request *firmware.GetDiagnosticsRequest) (*firmware.GetDiagnosticsConfirmation, error) {
	s.logger.Info("starting GetDiagnostics process", zap.String("location", request.Location))
	if _, err := s.stores.Points.UpdateState(context.Background(), s.id, models.StateGetDiagnostics); err != nil {
		s.logger.Error("failed to enter diagnostics state", zap.Error(err))
	}
	confirmation := firmware.NewGetDiagnosticsConfirmation()
	confirmation.FileName = fmt.Sprintf("%s-%s.log", s.id, uuid.NewString())
	return confirmation, nil
}

func (s *Session) OnRemoteStartTransaction(request *core.RemoteStartTransactionRequest) (*core.RemoteStartTransactionConfirmation, error) {
	connectorID := 1
	if request.ConnectorId != nil {
		connectorID = *request.ConnectorId
	}
	go s.afterRemoteStartTransaction(connectorID, request.IdTag)
	return core.NewRemoteStartTransactionConfirmation(types.RemoteStartStopStatusAccepted), nil
}

func (s *Session) afterRemoteStartTransaction(connectorID int, idTag string) {
	ctx := context.Background()
	s.logger.Info("remote start transaction",
		zap.Int("connector", connectorID), zap.String("idTag", idTag))

	info, err := s.SendAuthorize(idTag)
	if err != nil {
		s.logger.Warn("remote start authorize failed", zap.Error(err))
		return
	}
	if info.Status != models.AuthStatusAccepted {
		s.logger.Warn("remote start aborted, tag not accepted",
			zap.String("idTag", idTag), zap.String("reason", info.Status))
		return
	}

	request := models.StartTransactionRequest{ConnectorID: connectorID, IdTag: idTag}
	request.ApplyDefaults()
	transactionID, _, err := s.SendStartTransaction(request)
	if err != nil {
		s.logger.Warn("remote start transaction failed", zap.Error(err))
		return
	}
	if _, err := s.stores.Connectors.SetStatus(ctx, s.id, connectorID, models.ConnectorCharging); err != nil {
		s.logger.Error("failed to mark connector charging", zap.Error(err))
		return
	}
	if err := s.PushConnectorStatus(connectorID, models.ConnectorCharging); err != nil {
		s.logger.Warn("failed to push connector status", zap.Error(err))
	}
	if err := s.stores.Transactions.Add(ctx, s.id, transactionID, connectorID); err != nil {
		s.logger.Error("failed to record transaction", zap.Error(err))
	}
}

func (s *Session) OnRemoteStopTransaction(request *core.RemoteStopTransactionRequest) (*core.RemoteStopTransactionConfirmation, error) {
	go s.afterRemoteStopTransaction(request.TransactionId)
	return core.NewRemoteStopTransactionConfirmation(types.RemoteStartStopStatusAccepted), nil
}

func (s *Session) afterRemoteStopTransaction(transactionID int) {
	ctx := context.Background()
	s.logger.Info("remote stop transaction", zap.Int("transaction", transactionID))

	if err := s.stores.Transactions.ValidateExists(ctx, s.id, transactionID); err != nil {
		s.logger.Warn("remote stop aborted", zap.Error(err))
		return
	}

	request := models.StopTransactionRequest{TransactionID: transactionID}
	request.ApplyDefaults()
	if _, err := s.SendStopTransaction(request); err != nil {
		s.logger.Warn("remote stop transaction failed", zap.Error(err))
		return
	}

	connectorID, err := s.stores.Transactions.Remove(ctx, s.id, transactionID)
	if err != nil {
		s.logger.Error("failed to remove transaction", zap.Error(err))
		return
	}
	if _, err := s.stores.Connectors.SetStatus(ctx, s.id, connectorID, models.ConnectorAvailable); err != nil {
		s.logger.Error("failed to release connector", zap.Error(err))
		return
	}
	if err := s.PushConnectorStatus(connectorID, models.ConnectorAvailable); err != nil {
		s.logger.Warn("failed to push connector status", zap.Error(err))
	}
}

func (s *Session) OnChangeAvailability(request *core.ChangeAvailabilityRequest) (*core.ChangeAvailabilityConfirmation, error) {
	go s.afterChangeAvailability(request.ConnectorId, request.Type)
	return core.NewChangeAvailabilityConfirmation(core.AvailabilityStatusAccepted), nil
}

func (s *Session) afterChangeAvailability(connectorID int, availability core.AvailabilityType) {
	ctx := context.Background()
	s.logger.Info("change availability",
		zap.Int("connector", connectorID), zap.String("type", string(availability)))

	statuses, err := s.stores.Connectors.Statuses(ctx, s.id)
	if err != nil {
		s.logger.Warn("change availability aborted", zap.Error(err))
		return
	}
	if _, ok := statuses[connectorID]; !ok {
		s.logger.Warn("change availability aborted, connector unknown",
			zap.Int("connector", connectorID))
		return
	}

	status := models.ConnectorAvailable
	if availability == core.AvailabilityTypeInoperative {
		status = models.ConnectorUnavailable
	}
	if _, err := s.stores.Connectors.SetStatus(ctx, s.id, connectorID, status); err != nil {
		s.logger.Error("failed to set connector status", zap.Error(err))
		return
	}
	if err := s.PushConnectorStatus(connectorID, status); err != nil {
		s.logger.Warn("failed to push connector status", zap.Error(err))
	}
}

// OnReset re-runs the boot handshake, which resets the lifecycle according
// to the central system's verdict.
func (s *Session) OnReset(request *core.ResetRequest) (*core.ResetConfirmation, error) {
	s.logger.Info("reset requested", zap.String("type", string(request.Type)))
	go func() {
		if _, err := s.SendBootNotification(context.Background()); err != nil {
			s.logger.Warn("boot after reset failed", zap.Error(err))
		}
	}()
	return core.NewResetConfirmation(core.ResetStatusAccepted), nil
}

// The remaining core-profile commands are not simulated.

func (s *Session) OnChangeConfiguration(request *core.ChangeConfigurationRequest) (*core.ChangeConfigurationConfirmation, error) {
	return core.NewChangeConfigurationConfirmation(core.ConfigurationStatusNotSupported), nil
}

func (s *Session) OnGetConfiguration(request *core.GetConfigurationRequest) (*core.GetConfigurationConfirmation, error) {
	confirmation := core.NewGetConfigurationConfirmation([]core.ConfigurationKey{})
	confirmation.UnknownKey = request.Key
	return confirmation, nil
}

func (s *Session) OnClearCache(request *core.ClearCacheRequest) (*core.ClearCacheConfirmation, error) {
	return core.NewClearCacheConfirmation(core.ClearCacheStatusRejected), nil
}

func (s *Session) OnDataTransfer(request *core.DataTransferRequest) (*core.DataTransferConfirmation, error) {
	return core.NewDataTransferConfirmation(core.DataTransferStatusRejected), nil
}

func (s *Session) OnUnlockConnector(request *core.UnlockConnectorRequest) (*core.UnlockConnectorConfirmation, error) {
	return core.NewUnlockConnectorConfirmation(core.UnlockStatusNotSupported), nil
}
