package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
	"github.com/stefan2811/port-16/internal/models"
)

const chargePointNamespace = "CHARGE_POINT"

// ChargePointStore persists the declared configuration and current lifecycle
// state of each charger.
type ChargePointStore struct {
	entities *EntityStore
	logger   *zap.Logger
}

// NewChargePointStore builds the store.
func NewChargePointStore(kv KV, logger *zap.Logger) *ChargePointStore {
	return &ChargePointStore{
		entities: NewEntityStore(kv, chargePointNamespace),
		logger:   logger,
	}
}

// Create stores a new record, failing with Conflict when the identity is
// already registered.
func (s *ChargePointStore) Create(ctx context.Context, record models.ChargePoint) error {
	var existing models.ChargePoint
	ok, err := s.entities.Get(ctx, record.Identity, &existing)
	if err != nil {
		return err
	}
	if ok {
		return apperr.Conflict("charge point %s already exists", record.Identity)
	}
	return s.entities.Set(ctx, record.Identity, record)
}

// Get returns the record for id, failing with NotFound when absent.
func (s *ChargePointStore) Get(ctx context.Context, id string) (models.ChargePoint, error) {
	var record models.ChargePoint
	ok, err := s.entities.Get(ctx, id, &record)
	if err != nil {
		return models.ChargePoint{}, err
	}
	if !ok {
		s.logger.Warn("charge point not found in storage", zap.String("chargePoint", id))
		return models.ChargePoint{}, apperr.NotFound("charge point %s not found in system", id)
	}
	return record, nil
}

// UpdateState patches the lifecycle state and returns the full updated record.
func (s *ChargePointStore) UpdateState(ctx context.Context, id string, state models.LifecycleState) (models.ChargePoint, error) {
	record, err := s.Get(ctx, id)
	if err != nil {
		return models.ChargePoint{}, err
	}
	record.State = state
	if err := s.entities.Set(ctx, id, record); err != nil {
		return models.ChargePoint{}, err
	}
	return record, nil
}

// Delete removes the record; deleting an absent record is a no-op.
func (s *ChargePointStore) Delete(ctx context.Context, id string) error {
	_, err := s.entities.Delete(ctx, id)
	return err
}

// List returns every stored record, using the namespace index.
func (s *ChargePointStore) List(ctx context.Context) ([]models.ChargePoint, error) {
	ids, err := s.entities.Keys(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]models.ChargePoint, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if err != nil {
			if apperr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
