package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stefan2811/port-16/internal/apperr"
)

// EntityStore is the generic CRUD-with-merge layer every typed store builds
// on. Records live under "{namespace}-{identity}" as JSON; the identities
// known to a namespace are tracked in a JSON list under "{namespace}-KEYS"
// so enumeration never needs a scan.
//
// Store failures are surfaced as TransportFailure and never retried here;
// retry policy belongs to the store collaborator.
type EntityStore struct {
	kv        KV
	namespace string
}

// NewEntityStore returns a store bound to one namespace.
func NewEntityStore(kv KV, namespace string) *EntityStore {
	return &EntityStore{kv: kv, namespace: namespace}
}

func (s *EntityStore) entityKey(id string) string {
	return fmt.Sprintf("%s-%s", s.namespace, id)
}

func (s *EntityStore) indexKey() string {
	return fmt.Sprintf("%s-KEYS", s.namespace)
}

// Get unmarshals the record for id into out. The second return value reports
// whether a record was present.
func (s *EntityStore) Get(ctx context.Context, id string, out any) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.entityKey(id))
	if err != nil {
		return false, apperr.TransportFailure("storage get "+s.entityKey(id), err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", s.entityKey(id), err)
	}
	return true, nil
}

// Set stores the record for id and registers id in the namespace index.
func (s *EntityStore) Set(ctx context.Context, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.entityKey(id), err)
	}
	if err := s.kv.Set(ctx, s.entityKey(id), string(data)); err != nil {
		return apperr.TransportFailure("storage set "+s.entityKey(id), err)
	}
	return s.addKey(ctx, id)
}

// Merge overwrites the stored record key-wise with the fields of patch.
// With no stored record the patch becomes the record as-is. The merged
// object is unmarshalled into out when out is non-nil.
func (s *EntityStore) Merge(ctx context.Context, id string, patch map[string]any, out any) error {
	merged := map[string]any{}
	if _, err := s.Get(ctx, id, &merged); err != nil {
		return err
	}
	for key, value := range patch {
		merged[key] = value
	}
	if err := s.Set(ctx, id, merged); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged %s: %w", s.entityKey(id), err)
	}
	return json.Unmarshal(data, out)
}

// Delete removes the record and drops id from the namespace index. It
// reports whether a record existed.
func (s *EntityStore) Delete(ctx context.Context, id string) (bool, error) {
	_, ok, err := s.kv.Get(ctx, s.entityKey(id))
	if err != nil {
		return false, apperr.TransportFailure("storage get "+s.entityKey(id), err)
	}
	if !ok {
		return false, nil
	}
	if err := s.kv.Del(ctx, s.entityKey(id)); err != nil {
		return false, apperr.TransportFailure("storage del "+s.entityKey(id), err)
	}
	return true, s.removeKey(ctx, id)
}

// Keys lists the identities known to the namespace.
func (s *EntityStore) Keys(ctx context.Context) ([]string, error) {
	raw, ok, err := s.kv.Get(ctx, s.indexKey())
	if err != nil {
		return nil, apperr.TransportFailure("storage get "+s.indexKey(), err)
	}
	if !ok {
		return []string{}, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.indexKey(), err)
	}
	return keys, nil
}

func (s *EntityStore) addKey(ctx context.Context, id string) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if key == id {
			return nil
		}
	}
	keys = append(keys, id)
	return s.writeKeys(ctx, keys)
}

func (s *EntityStore) removeKey(ctx context.Context, id string) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	filtered := keys[:0]
	for _, key := range keys {
		if key != id {
			filtered = append(filtered, key)
		}
	}
	return s.writeKeys(ctx, filtered)
}

func (s *EntityStore) writeKeys(ctx context.Context, keys []string) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.indexKey(), err)
	}
	if err := s.kv.Set(ctx, s.indexKey(), string(data)); err != nil {
		return apperr.TransportFailure("storage set "+s.indexKey(), err)
	}
	return nil
}
