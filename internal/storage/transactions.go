package storage

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
)

const transactionNamespace = "TRANSACTION"

// TransactionStore persists the active transaction to connector relation for
// a charger. A transaction id appears at most once; removal always yields the
// connector it held.
type TransactionStore struct {
	entities *EntityStore
	logger   *zap.Logger
}

// NewTransactionStore builds the store.
func NewTransactionStore(kv KV, logger *zap.Logger) *TransactionStore {
	return &TransactionStore{
		entities: NewEntityStore(kv, transactionNamespace),
		logger:   logger,
	}
}

// Add records that transactionID occupies connectorID.
func (s *TransactionStore) Add(ctx context.Context, id string, transactionID, connectorID int) error {
	patch := map[string]any{strconv.Itoa(transactionID): connectorID}
	return s.entities.Merge(ctx, id, patch, nil)
}

// ValidateExists checks the charger has a transaction record containing
// transactionID.
func (s *TransactionStore) ValidateExists(ctx context.Context, id string, transactionID int) error {
	record := map[string]int{}
	ok, err := s.entities.Get(ctx, id, &record)
	if err != nil {
		return err
	}
	if !ok {
		s.logger.Warn("transaction record not found", zap.String("chargePoint", id))
		return apperr.NotFound("charge point %s not found in system", id)
	}
	if _, ok := record[strconv.Itoa(transactionID)]; !ok {
		s.logger.Warn("transaction not found",
			zap.String("chargePoint", id), zap.Int("transaction", transactionID))
		return apperr.NotFound("transaction %d not found within charge point %s", transactionID, id)
	}
	return nil
}

// Remove deletes the relation and returns the connector id it held. After a
// successful return the transaction is guaranteed absent.
func (s *TransactionStore) Remove(ctx context.Context, id string, transactionID int) (int, error) {
	record := map[string]int{}
	ok, err := s.entities.Get(ctx, id, &record)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, apperr.NotFound("charge point %s not found in system", id)
	}
	key := strconv.Itoa(transactionID)
	connectorID, ok := record[key]
	if !ok {
		return 0, apperr.NotFound("transaction %d not found within charge point %s", transactionID, id)
	}
	delete(record, key)
	if err := s.entities.Set(ctx, id, record); err != nil {
		return 0, err
	}
	return connectorID, nil
}

// Delete drops the whole transaction record for a charger.
func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	_, err := s.entities.Delete(ctx, id)
	return err
}
