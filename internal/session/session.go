package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
	"github.com/stefan2811/port-16/internal/metrics"
	"github.com/stefan2811/port-16/internal/models"
	"github.com/stefan2811/port-16/internal/storage"
)

// firmwareStepDelay paces the simulated firmware/diagnostics sequences.
// Overridden in tests.
var firmwareStepDelay = time.Second

// Stores bundles the durable stores a session reads and writes.
type Stores struct {
	Points       *storage.ChargePointStore
	Connectors   *storage.ConnectorStore
	Transactions *storage.TransactionStore
	Tags         *storage.AuthTagStore
}

// Session is the live representation of one connected charger. It owns the
// lifecycle state machine, the outbound command methods and the inbound
// remote-command handlers. All outbound protocol sends go through a single
// mutex, so the heartbeat loop and concurrently triggered commands never have
// two requests in flight on the same connection.
type Session struct {
	id     string
	client Client
	stores Stores
	logger *zap.Logger

	sendMu      sync.Mutex
	heartbeatOn atomic.Bool
}

// New builds a session for record on top of an already-connected client and
// registers the inbound handlers.
func New(record models.ChargePoint, client Client, stores Stores, logger *zap.Logger) *Session {
	s := &Session{
		id:     record.Identity,
		client: client,
		stores: stores,
		logger: logger.With(zap.String("chargePoint", record.Identity)),
	}
	client.SetCoreHandler(s)
	client.SetFirmwareManagementHandler(s)
	return s
}

// ID returns the charger identity.
func (s *Session) ID() string {
	return s.id
}

// Close tears down the underlying connection.
func (s *Session) Close() {
	s.client.Stop()
}

// SendBootNotification runs the boot handshake and records the resulting
// lifecycle state. It always returns the updated record.
func (s *Session) SendBootNotification(ctx context.Context) (models.ChargePoint, error) {
	record, err := s.stores.Points.Get(ctx, s.id)
	if err != nil {
		return models.ChargePoint{}, err
	}

	s.sendMu.Lock()
	confirmation, err := s.client.BootNotification(record.Model, record.Vendor,
		func(request *core.BootNotificationRequest) {
			request.ChargeBoxSerialNumber = record.SerialNumber
		})
	s.sendMu.Unlock()
	if err != nil {
		return models.ChargePoint{}, apperr.TransportFailure("boot notification failed", err)
	}

	state := models.StateRejected
	if confirmation.Status == core.RegistrationStatusAccepted {
		state = models.StateAccepted
		s.logger.Info("connected to central system")
	} else {
		s.logger.Info("rejected by central system", zap.String("status", string(confirmation.Status)))
	}
	return s.stores.Points.UpdateState(ctx, s.id, state)
}

// SendAuthorize asks the central system for a decision on idTag and returns
// it verbatim. Caching the decision is the orchestration layer's job.
func (s *Session) SendAuthorize(idTag string) (models.AuthTagInfo, error) {
	s.sendMu.Lock()
	confirmation, err := s.client.Authorize(idTag)
	s.sendMu.Unlock()
	if err != nil {
		return models.AuthTagInfo{}, apperr.TransportFailure("authorize failed", err)
	}
	return tagInfoFromOCPP(confirmation.IdTagInfo), nil
}

// SendStartTransaction starts a transaction on the central system and returns
// the assigned transaction id together with the decision.
func (s *Session) SendStartTransaction(request models.StartTransactionRequest) (int, models.AuthTagInfo, error) {
	s.sendMu.Lock()
	confirmation, err := s.client.StartTransaction(
		request.ConnectorID, request.IdTag, request.MeterStart, types.NewDateTime(time.Now().UTC()))
	s.sendMu.Unlock()
	if err != nil {
		return 0, models.AuthTagInfo{}, apperr.TransportFailure("start transaction failed", err)
	}
	return confirmation.TransactionId, tagInfoFromOCPP(confirmation.IdTagInfo), nil
}

// SendStopTransaction stops a transaction on the central system. The returned
// tag info is nil when the central system sent no decision, which it only
// does when the request carried an id tag.
func (s *Session) SendStopTransaction(request models.StopTransactionRequest) (*models.AuthTagInfo, error) {
	s.sendMu.Lock()
	confirmation, err := s.client.StopTransaction(
		request.MeterStop, types.NewDateTime(time.Now().UTC()), request.TransactionID,
		func(r *core.StopTransactionRequest) {
			r.IdTag = request.IdTag
			r.Reason = core.Reason(request.Reason)
		})
	s.sendMu.Unlock()
	if err != nil {
		return nil, apperr.TransportFailure("stop transaction failed", err)
	}
	if confirmation.IdTagInfo == nil {
		return nil, nil
	}
	info := tagInfoFromOCPP(confirmation.IdTagInfo)
	return &info, nil
}

// PushConnectorStatus sends a status notification for one connector. It does
// not persist anything; the caller owns the connector store.
func (s *Session) PushConnectorStatus(connectorID int, status models.ConnectorStatus) error {
	s.sendMu.Lock()
	_, err := s.client.StatusNotification(connectorID, core.NoError, core.ChargePointStatus(status))
	s.sendMu.Unlock()
	if err != nil {
		return apperr.TransportFailure("status notification failed", err)
	}
	s.logger.Info("connector status pushed",
		zap.Int("connector", connectorID), zap.String("status", string(status)))
	return nil
}

// RunHeartbeat is the long-lived keepalive loop. Each tick re-reads the
// lifecycle state: ACCEPTED sends a heartbeat, the firmware/diagnostics
// states run their simulated sequence and return to ACCEPTED, CLOSED (or a
// deleted record) ends the loop. The shutdown context is observed after
// every sleep, never mid-send.
func (s *Session) RunHeartbeat(ctx context.Context) {
	if !s.heartbeatOn.CompareAndSwap(false, true) {
		s.logger.Warn("heartbeat loop already running")
		return
	}
	defer s.heartbeatOn.Store(false)
	s.logger.Info("starting heartbeat loop")

	for {
		record, err := s.stores.Points.Get(ctx, s.id)
		switch {
		case apperr.IsNotFound(err):
			s.logger.Info("charge point record gone, stopping heartbeat loop")
			return
		case err != nil:
			s.logger.Warn("heartbeat state read failed", zap.Error(err))
		case record.State == models.StateAccepted:
			s.sendHeartbeat()
		case record.State == models.StateUpdateFirmware:
			s.simulateFirmwareUpdate(ctx)
		case record.State == models.StateGetDiagnostics:
			s.simulateDiagnosticsUpload(ctx)
		case record.State == models.StateClosed:
			s.logger.Info("lifecycle closed, stopping heartbeat loop")
			return
		default:
			s.logger.Info("heartbeat skipped", zap.String("state", string(record.State)))
		}

		interval := time.Duration(record.HeartbeatInterval) * time.Second
		if interval <= 0 {
			interval = 5 * time.Second
		}
		select {
		case <-ctx.Done():
			s.logger.Info("shutdown observed, stopping heartbeat loop")
			return
		case <-time.After(interval):
		}
	}
}

func (s *Session) sendHeartbeat() {
	s.sendMu.Lock()
	confirmation, err := s.client.Heartbeat()
	s.sendMu.Unlock()
	if err != nil {
		metrics.CountTransportFailure(s.id)
		s.logger.Warn("heartbeat send failed", zap.Error(err))
		return
	}
	metrics.CountHeartbeat(s.id)
	if confirmation.CurrentTime != nil {
		s.logger.Info("heartbeat done", zap.Time("serverTime", confirmation.CurrentTime.Time))
	}
}

func (s *Session) simulateFirmwareUpdate(ctx context.Context) {
	steps := []firmware.FirmwareStatus{
		firmware.FirmwareStatusDownloading,
		firmware.FirmwareStatusDownloaded,
		firmware.FirmwareStatusInstalling,
		firmware.FirmwareStatusInstalled,
	}
	for i, status := range steps {
		s.logger.Info("sending firmware status notification", zap.String("status", string(status)))
		s.sendMu.Lock()
		_, err := s.client.FirmwareStatusNotification(status)
		s.sendMu.Unlock()
		if err != nil {
			metrics.CountTransportFailure(s.id)
			s.logger.Warn("firmware status notification failed", zap.Error(err))
			return
		}
		if i < len(steps)-1 && !s.pause(ctx) {
			return
		}
	}
	if _, err := s.stores.Points.UpdateState(ctx, s.id, models.StateAccepted); err != nil {
		s.logger.Error("failed to leave firmware state", zap.Error(err))
		return
	}
	s.logger.Info("firmware update finished, back to ACCEPTED")
}

func (s *Session) simulateDiagnosticsUpload(ctx context.Context) {
	steps := []firmware.DiagnosticsStatus{
		firmware.DiagnosticsStatusUploading,
		firmware.DiagnosticsStatusUploaded,
	}
	for i, status := range steps {
		s.logger.Info("sending diagnostics status notification", zap.String("status", string(status)))
		s.sendMu.Lock()
		_, err := s.client.DiagnosticsStatusNotification(status)
		s.sendMu.Unlock()
		if err != nil {
			metrics.CountTransportFailure(s.id)
			s.logger.Warn("diagnostics status notification failed", zap.Error(err))
			return
		}
		if i < len(steps)-1 && !s.pause(ctx) {
			return
		}
	}
	if _, err := s.stores.Points.UpdateState(ctx, s.id, models.StateAccepted); err != nil {
		s.logger.Error("failed to leave diagnostics state", zap.Error(err))
		return
	}
	s.logger.Info("diagnostics upload finished, back to ACCEPTED")
}

// pause sleeps one simulation step, reporting false when shutdown interrupts.
func (s *Session) pause(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(firmwareStepDelay):
		return true
	}
}

func tagInfoFromOCPP(info *types.IdTagInfo) models.AuthTagInfo {
	if info == nil {
		return models.AuthTagInfo{}
	}
	result := models.AuthTagInfo{
		Status:      string(info.Status),
		ParentIdTag: info.ParentIdTag,
	}
	if info.ExpiryDate != nil {
		expiry := info.ExpiryDate.Time
		result.ExpiryDate = &expiry
	}
	return result
}
