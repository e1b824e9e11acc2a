package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
	"github.com/stefan2811/port-16/internal/metrics"
	"github.com/stefan2811/port-16/internal/models"
	"github.com/stefan2811/port-16/internal/session"
)

// Dialer opens a connection to the central system for a charger record.
// Injected so tests can substitute a scripted client.
type Dialer func(models.ChargePoint) (session.Client, error)

// Defaults are the configured fallbacks applied to a registration that leaves
// the corresponding fields empty.
type Defaults struct {
	Endpoint          string
	Protocol          string
	HeartbeatInterval int
}

// Commands sequences session calls with store reads/writes and enforces the
// cross-entity invariants. Every command fails fast with NotFound when the
// charger has no registered session, before touching anything else.
type Commands struct {
	shutdown context.Context
	registry *session.Registry
	stores   session.Stores
	dial     Dialer
	defaults Defaults
	logger   *zap.Logger
}

// NewCommands builds the orchestrator. The shutdown context is the parent of
// every background heartbeat loop, so process shutdown reaches them all.
func NewCommands(shutdown context.Context, registry *session.Registry, stores session.Stores, dial Dialer, defaults Defaults, logger *zap.Logger) *Commands {
	return &Commands{
		shutdown: shutdown,
		registry: registry,
		stores:   stores,
		dial:     dial,
		defaults: defaults,
		logger:   logger,
	}
}

func (c *Commands) lookup(id string) (*session.Session, error) {
	s, ok := c.registry.Lookup(id)
	if !ok {
		c.logger.Warn("charge point has no live session", zap.String("chargePoint", id))
		return nil, apperr.NotFound("charge point %s not found in system", id)
	}
	return s, nil
}

// CreateChargePoint registers a new charger and connects it to the central
// system. The durable record survives a failed connect so a later start can
// retry.
func (c *Commands) CreateChargePoint(ctx context.Context, record models.ChargePoint) (models.ChargePoint, error) {
	if record.Endpoint == "" {
		record.Endpoint = c.defaults.Endpoint
	}
	if record.Protocol == "" {
		record.Protocol = c.defaults.Protocol
	}
	if record.HeartbeatInterval <= 0 {
		record.HeartbeatInterval = c.defaults.HeartbeatInterval
	}
	record.ApplyDefaults()
	if err := c.stores.Points.Create(ctx, record); err != nil {
		return models.ChargePoint{}, err
	}
	if err := c.connect(record); err != nil {
		return models.ChargePoint{}, err
	}
	c.logger.Info("charge point created", zap.String("chargePoint", record.Identity))
	return record, nil
}

// StartChargePoint reconnects an already-registered charger from its durable
// record.
func (c *Commands) StartChargePoint(ctx context.Context, id string) (models.ChargePoint, error) {
	record, err := c.stores.Points.Get(ctx, id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	if _, ok := c.registry.Lookup(id); ok {
		return models.ChargePoint{}, apperr.Conflict("charge point %s is already connected", id)
	}
	if err := c.connect(record); err != nil {
		return models.ChargePoint{}, err
	}
	return record, nil
}

func (c *Commands) connect(record models.ChargePoint) error {
	client, err := c.dial(record)
	if err != nil {
		return apperr.TransportFailure("connect to central system failed", err)
	}
	c.registry.Register(session.New(record, client, c.stores, c.logger))
	return nil
}

// GetChargePoint returns the durable record of a connected charger.
func (c *Commands) GetChargePoint(ctx context.Context, id string) (models.ChargePoint, error) {
	if _, err := c.lookup(id); err != nil {
		return models.ChargePoint{}, err
	}
	return c.stores.Points.Get(ctx, id)
}

// ListChargePoints enumerates every registered charger record.
func (c *Commands) ListChargePoints(ctx context.Context) ([]models.ChargePoint, error) {
	return c.stores.Points.List(ctx)
}

// DeleteChargePoint closes the connection and removes the charger. The
// lifecycle is moved to CLOSED first so the heartbeat loop observes it and
// exits instead of sending into a dead connection. Connector and transaction
// records are kept, matching the reboot-survival semantics of initialize.
func (c *Commands) DeleteChargePoint(ctx context.Context, id string) (models.ChargePoint, error) {
	s, err := c.lookup(id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	record, err := c.stores.Points.UpdateState(ctx, id, models.StateClosed)
	if err != nil {
		return models.ChargePoint{}, err
	}
	s.Close()
	c.registry.Remove(id)
	if err := c.stores.Points.Delete(ctx, id); err != nil {
		return models.ChargePoint{}, err
	}
	c.logger.Info("charge point deleted", zap.String("chargePoint", id))
	return record, nil
}

// ExecuteBoot runs the boot handshake. On acceptance every connector is
// initialized and one status notification is pushed per connector.
func (c *Commands) ExecuteBoot(ctx context.Context, id string) (models.ChargePoint, error) {
	s, err := c.lookup(id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	metrics.CountCommand(id, "BootNotification")

	record, err := s.SendBootNotification(ctx)
	if err != nil {
		return models.ChargePoint{}, err
	}
	if record.State != models.StateAccepted {
		return record, nil
	}

	statuses, err := c.stores.Connectors.Initialize(ctx, id, record.ConnectorCount)
	if err != nil {
		return models.ChargePoint{}, err
	}
	for _, connectorID := range sortedConnectors(statuses) {
		if err := s.PushConnectorStatus(connectorID, statuses[connectorID]); err != nil {
			return models.ChargePoint{}, err
		}
	}
	return record, nil
}

// ExecuteHeartbeat schedules the heartbeat loop as a background task and
// returns the current record immediately.
func (c *Commands) ExecuteHeartbeat(ctx context.Context, id string) (models.ChargePoint, error) {
	s, err := c.lookup(id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	record, err := c.stores.Points.Get(ctx, id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	go s.RunHeartbeat(c.shutdown)
	return record, nil
}

// ExecuteAuthorize asks the central system for a decision on idTag and feeds
// it to the authorization cache, which rejects anything not accepted.
func (c *Commands) ExecuteAuthorize(ctx context.Context, id, idTag string) (models.AuthTagInfo, error) {
	s, err := c.lookup(id)
	if err != nil {
		return models.AuthTagInfo{}, err
	}
	metrics.CountCommand(id, "Authorize")

	info, err := s.SendAuthorize(idTag)
	if err != nil {
		return models.AuthTagInfo{}, err
	}
	if err := c.stores.Tags.Record(ctx, idTag, info, "Authorize"); err != nil {
		return models.AuthTagInfo{}, err
	}
	return info, nil
}

// ExecuteStartTransaction validates the cached tag decision and connector
// availability, starts the transaction remotely, then marks the connector
// charging and records the transaction relation. All validation happens
// before the remote call.
func (c *Commands) ExecuteStartTransaction(ctx context.Context, id string, request models.StartTransactionRequest) (int, models.AuthTagInfo, error) {
	s, err := c.lookup(id)
	if err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	request.ApplyDefaults()
	metrics.CountCommand(id, "StartTransaction")

	if _, err := c.stores.Tags.Validate(ctx, request.IdTag, "Start transaction"); err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	if err := c.stores.Connectors.ValidateAvailable(ctx, id, request.ConnectorID); err != nil {
		return 0, models.AuthTagInfo{}, err
	}

	transactionID, info, err := s.SendStartTransaction(request)
	if err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	if err := c.stores.Tags.Record(ctx, request.IdTag, info, "Start transaction"); err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	if _, err := c.stores.Connectors.SetStatus(ctx, id, request.ConnectorID, models.ConnectorCharging); err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	if err := s.PushConnectorStatus(request.ConnectorID, models.ConnectorCharging); err != nil {
		return 0, models.AuthTagInfo{}, err
	}
	if err := c.stores.Transactions.Add(ctx, id, transactionID, request.ConnectorID); err != nil {
		return 0, models.AuthTagInfo{}, err
	}

	c.logger.Info("transaction started",
		zap.String("chargePoint", id),
		zap.Int("transaction", transactionID),
		zap.Int("connector", request.ConnectorID))
	return transactionID, info, nil
}

// ExecuteStopTransaction validates the supplied tag (when present) and the
// transaction, stops it remotely, then releases the connector and removes
// the transaction relation.
func (c *Commands) ExecuteStopTransaction(ctx context.Context, id string, request models.StopTransactionRequest) (*models.AuthTagInfo, error) {
	s, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	request.ApplyDefaults()
	metrics.CountCommand(id, "StopTransaction")

	if request.IdTag != "" {
		if _, err := c.stores.Tags.Validate(ctx, request.IdTag, "Stop transaction"); err != nil {
			return nil, err
		}
	}
	if err := c.stores.Transactions.ValidateExists(ctx, id, request.TransactionID); err != nil {
		return nil, err
	}

	info, err := s.SendStopTransaction(request)
	if err != nil {
		return nil, err
	}
	if info != nil && request.IdTag != "" {
		if err := c.stores.Tags.Record(ctx, request.IdTag, *info, "Stop transaction"); err != nil {
			return nil, err
		}
	}

	connectorID, err := c.stores.Transactions.Remove(ctx, id, request.TransactionID)
	if err != nil {
		return nil, err
	}
	if _, err := c.stores.Connectors.SetStatus(ctx, id, connectorID, models.ConnectorAvailable); err != nil {
		return nil, err
	}
	if err := s.PushConnectorStatus(connectorID, models.ConnectorAvailable); err != nil {
		return nil, err
	}

	c.logger.Info("transaction stopped",
		zap.String("chargePoint", id),
		zap.Int("transaction", request.TransactionID),
		zap.Int("connector", connectorID))
	return info, nil
}

func sortedConnectors(statuses map[int]models.ConnectorStatus) []int {
	ids := make([]int, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
