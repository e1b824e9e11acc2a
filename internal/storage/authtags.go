package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/apperr"
	"github.com/stefan2811/port-16/internal/models"
)

const authTagNamespace = "AUTH_TAG"

// AuthTagStore caches the last known authorization decision per id tag.
// Only accepted decisions are ever persisted.
type AuthTagStore struct {
	entities *EntityStore
	logger   *zap.Logger
}

// NewAuthTagStore builds the store.
func NewAuthTagStore(kv KV, logger *zap.Logger) *AuthTagStore {
	return &AuthTagStore{
		entities: NewEntityStore(kv, authTagNamespace),
		logger:   logger,
	}
}

// Record caches info for idTag. A non-accepted decision fails with
// AuthorizationFailed before anything is stored, so a rejection never becomes
// the cached decision. The command name is only used for logging context.
func (s *AuthTagStore) Record(ctx context.Context, idTag string, info models.AuthTagInfo, command string) error {
	if info.Status != models.AuthStatusAccepted {
		s.logger.Warn("authorization failed",
			zap.String("idTag", idTag),
			zap.String("reason", info.Status),
			zap.String("command", command))
		return apperr.AuthorizationFailed(idTag, info.Status)
	}
	return s.entities.Set(ctx, idTag, info)
}

// Validate returns the cached decision for idTag, failing with NotFound when
// no decision is cached and with AuthorizationFailed when the cached decision
// is not accepted.
func (s *AuthTagStore) Validate(ctx context.Context, idTag string, command string) (models.AuthTagInfo, error) {
	var info models.AuthTagInfo
	ok, err := s.entities.Get(ctx, idTag, &info)
	if err != nil {
		return models.AuthTagInfo{}, err
	}
	if !ok {
		s.logger.Warn("no cached decision for id tag",
			zap.String("idTag", idTag), zap.String("command", command))
		return models.AuthTagInfo{}, apperr.NotFound("id tag %s not found in system", idTag)
	}
	if info.Status != models.AuthStatusAccepted {
		return models.AuthTagInfo{}, apperr.AuthorizationFailed(idTag, info.Status)
	}
	return info, nil
}
