package session

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/models"
)

func TestRegistryRegisterLookupRemove(t *testing.T) {
	registry := NewRegistry()
	stores := newTestStores()

	record := models.ChargePoint{Identity: "cp-1"}
	record.ApplyDefaults()
	s := New(record, newFakeClient(), stores, zap.NewNop())

	registry.Register(s)
	got, ok := registry.Lookup("cp-1")
	if !ok || got != s {
		t.Fatalf("expected registered session")
	}

	registry.Remove("cp-1")
	if _, ok := registry.Lookup("cp-1"); ok {
		t.Fatalf("expected session removed")
	}

	// Removing an unknown id must not panic.
	registry.Remove("cp-1")
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry()
	stores := newTestStores()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("cp-%d", n)
			record := models.ChargePoint{Identity: id}
			record.ApplyDefaults()
			s := New(record, newFakeClient(), stores, zap.NewNop())
			registry.Register(s)
			if _, ok := registry.Lookup(id); !ok {
				t.Errorf("session %s missing after register", id)
			}
			if n%2 == 0 {
				registry.Remove(id)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("cp-%d", i)
		_, ok := registry.Lookup(id)
		if i%2 == 0 && ok {
			t.Fatalf("session %s should have been removed", id)
		}
		if i%2 == 1 && !ok {
			t.Fatalf("session %s should still be registered", id)
		}
	}
}
