package storage

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
	"github.com/stefan2811/port-16/internal/models"
)

const connectorNamespace = "CONNECTOR"

// ConnectorStore persists per-connector availability for a charger. The
// record is a map of connector index (as a string, matching the wire format)
// to status.
type ConnectorStore struct {
	entities *EntityStore
	logger   *zap.Logger
}

// NewConnectorStore builds the store.
func NewConnectorStore(kv KV, logger *zap.Logger) *ConnectorStore {
	return &ConnectorStore{
		entities: NewEntityStore(kv, connectorNamespace),
		logger:   logger,
	}
}

// Initialize creates connectors 1..count as Available. An existing record is
// returned unchanged, so connector states survive a reboot.
func (s *ConnectorStore) Initialize(ctx context.Context, id string, count int) (map[int]models.ConnectorStatus, error) {
	stored := map[string]string{}
	exists, err := s.entities.Get(ctx, id, &stored)
	if err != nil {
		return nil, err
	}
	if exists {
		return toConnectorMap(stored), nil
	}

	record := make(map[string]string, count)
	for i := 1; i <= count; i++ {
		record[strconv.Itoa(i)] = string(models.ConnectorAvailable)
	}
	if err := s.entities.Set(ctx, id, record); err != nil {
		return nil, err
	}
	return toConnectorMap(record), nil
}

// Statuses returns the connector map, failing with NotFound when the charger
// has no connector record.
func (s *ConnectorStore) Statuses(ctx context.Context, id string) (map[int]models.ConnectorStatus, error) {
	record := map[string]string{}
	ok, err := s.entities.Get(ctx, id, &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("charge point %s not found in system", id)
	}
	return toConnectorMap(record), nil
}

// ValidateAvailable checks that connectorID exists and is Available.
func (s *ConnectorStore) ValidateAvailable(ctx context.Context, id string, connectorID int) error {
	statuses, err := s.Statuses(ctx, id)
	if err != nil {
		return err
	}
	status, ok := statuses[connectorID]
	if !ok {
		s.logger.Warn("connector not found",
			zap.String("chargePoint", id), zap.Int("connector", connectorID))
		return apperr.NotFound("connector %d not found within charge point %s", connectorID, id)
	}
	if status != models.ConnectorAvailable {
		s.logger.Warn("connector not available",
			zap.String("chargePoint", id), zap.Int("connector", connectorID),
			zap.String("status", string(status)))
		return apperr.Conflict("connector %d is not available within charge point %s", connectorID, id)
	}
	return nil
}

// SetStatus patches one connector entry and returns the full updated map.
func (s *ConnectorStore) SetStatus(ctx context.Context, id string, connectorID int, status models.ConnectorStatus) (map[int]models.ConnectorStatus, error) {
	merged := map[string]string{}
	patch := map[string]any{strconv.Itoa(connectorID): string(status)}
	if err := s.entities.Merge(ctx, id, patch, &merged); err != nil {
		return nil, err
	}
	return toConnectorMap(merged), nil
}

// Delete drops the connector record for a charger.
func (s *ConnectorStore) Delete(ctx context.Context, id string) error {
	_, err := s.entities.Delete(ctx, id)
	return err
}

func toConnectorMap(record map[string]string) map[int]models.ConnectorStatus {
	statuses := make(map[int]models.ConnectorStatus, len(record))
	for key, value := range record {
		index, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		statuses[index] = models.ConnectorStatus(value)
	}
	return statuses
}
