package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lorenzodonini/ocpp-go/ocpp1.6/core"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/firmware"
	"github.com/lorenzodonini/ocpp-go/ocpp1.6/types"
	"go.uber.org/zap"

	"github.com/stefan2811/port-16/internal/models"
	"github.com/stefan2811/port-16/internal/storage"
)

type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	return value, ok, nil
}

func (m *memKV) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type statusNote struct {
	connectorID int
	status      core.ChargePointStatus
}

// fakeClient scripts the central system side of the protocol client.
type fakeClient struct {
	mu sync.Mutex

	bootStatus        core.RegistrationStatus
	authStatus        types.AuthorizationStatus
	stopIdTagInfo     *types.IdTagInfo
	nextTransactionID int

	boots             int
	authorizes        int
	heartbeats        int
	startTransactions int
	stopTransactions  int
	statusNotes       []statusNote
	firmwareStatuses  []firmware.FirmwareStatus
	diagStatuses      []firmware.DiagnosticsStatus
	stopped           bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		bootStatus:        core.RegistrationStatusAccepted,
		authStatus:        types.AuthorizationStatusAccepted,
		nextTransactionID: 100,
	}
}

func (f *fakeClient) BootNotification(model string, vendor string, props ...func(request *core.BootNotificationRequest)) (*core.BootNotificationConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boots++
	return &core.BootNotificationConfirmation{
		CurrentTime: types.NewDateTime(time.Now()),
		Interval:    5,
		Status:      f.bootStatus,
	}, nil
}

func (f *fakeClient) Authorize(idTag string, props ...func(request *core.AuthorizeRequest)) (*core.AuthorizeConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authorizes++
	return &core.AuthorizeConfirmation{
		IdTagInfo: &types.IdTagInfo{Status: f.authStatus},
	}, nil
}

func (f *fakeClient) Heartbeat(props ...func(request *core.HeartbeatRequest)) (*core.HeartbeatConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return &core.HeartbeatConfirmation{CurrentTime: types.NewDateTime(time.Now())}, nil
}

func (f *fakeClient) StartTransaction(connectorId int, idTag string, meterStart int, timestamp *types.DateTime, props ...func(request *core.StartTransactionRequest)) (*core.StartTransactionConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startTransactions++
	f.nextTransactionID++
	return &core.StartTransactionConfirmation{
		TransactionId: f.nextTransactionID,
		IdTagInfo:     &types.IdTagInfo{Status: f.authStatus},
	}, nil
}

func (f *fakeClient) StopTransaction(meterStop int, timestamp *types.DateTime, transactionId int, props ...func(request *core.StopTransactionRequest)) (*core.StopTransactionConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopTransactions++
	return &core.StopTransactionConfirmation{IdTagInfo: f.stopIdTagInfo}, nil
}

func (f *fakeClient) StatusNotification(connectorId int, errorCode core.ChargePointErrorCode, status core.ChargePointStatus, props ...func(request *core.StatusNotificationRequest)) (*core.StatusNotificationConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusNotes = append(f.statusNotes, statusNote{connectorID: connectorId, status: status})
	return &core.StatusNotificationConfirmation{}, nil
}

func (f *fakeClient) FirmwareStatusNotification(status firmware.FirmwareStatus, props ...func(request *firmware.FirmwareStatusNotificationRequest)) (*firmware.FirmwareStatusNotificationConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.firmwareStatuses = append(f.firmwareStatuses, status)
	return &firmware.FirmwareStatusNotificationConfirmation{}, nil
}

func (f *fakeClient) DiagnosticsStatusNotification(status firmware.DiagnosticsStatus, props ...func(request *firmware.DiagnosticsStatusNotificationRequest)) (*firmware.DiagnosticsStatusNotificationConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diagStatuses = append(f.diagStatuses, status)
	return &firmware.DiagnosticsStatusNotificationConfirmation{}, nil
}

func (f *fakeClient) SetCoreHandler(handler core.ChargePointHandler) {}

func (f *fakeClient) SetFirmwareManagementHandler(handler firmware.ChargePointHandler) {}

func (f *fakeClient) Start(centralSystemURL string) error { return nil }

func (f *fakeClient) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.stopped
}

func (f *fakeClient) bootCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boots
}

func (f *fakeClient) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeats
}

func (f *fakeClient) startTransactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startTransactions
}

func (f *fakeClient) stopTransactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopTransactions
}

func (f *fakeClient) firmwareSequence() []firmware.FirmwareStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]firmware.FirmwareStatus(nil), f.firmwareStatuses...)
}

func (f *fakeClient) diagSequence() []firmware.DiagnosticsStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]firmware.DiagnosticsStatus(nil), f.diagStatuses...)
}

func (f *fakeClient) lastStatusNote() (statusNote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusNotes) == 0 {
		return statusNote{}, false
	}
	return f.statusNotes[len(f.statusNotes)-1], true
}

func newTestStores() Stores {
	kv := newMemKV()
	logger := zap.NewNop()
	return Stores{
		Points:       storage.NewChargePointStore(kv, logger),
		Connectors:   storage.NewConnectorStore(kv, logger),
		Transactions: storage.NewTransactionStore(kv, logger),
		Tags:         storage.NewAuthTagStore(kv, logger),
	}
}

func newTestSession(t *testing.T, state models.LifecycleState) (*Session, *fakeClient, Stores) {
	t.Helper()
	stores := newTestStores()
	record := models.ChargePoint{
		Identity:          "cp-1",
		HeartbeatInterval: 1,
		ConnectorCount:    2,
		State:             state,
	}
	record.ApplyDefaults()
	record.State = state
	if err := stores.Points.Create(context.Background(), record); err != nil {
		t.Fatalf("create record: %v", err)
	}
	fake := newFakeClient()
	return New(record, fake, stores, zap.NewNop()), fake, stores
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestSendBootNotificationAccepted(t *testing.T) {
	s, _, stores := newTestSession(t, models.StateIdle)

	record, err := s.SendBootNotification(context.Background())
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if record.State != models.StateAccepted {
		t.Fatalf("expected ACCEPTED, got %s", record.State)
	}

	stored, err := stores.Points.Get(context.Background(), "cp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != models.StateAccepted {
		t.Fatalf("state not persisted, got %s", stored.State)
	}
}

func TestSendBootNotificationRejected(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateIdle)
	fake.bootStatus = core.RegistrationStatusRejected

	record, err := s.SendBootNotification(context.Background())
	if err != nil {
		t.Fatalf("boot: %v", err)
	}
	if record.State != models.StateRejected {
		t.Fatalf("expected REJECTED, got %s", record.State)
	}
}

func TestHeartbeatLoopSendsWhileAccepted(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateAccepted)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunHeartbeat(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool { return fake.heartbeatCount() >= 1 })
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("heartbeat loop did not exit on shutdown")
	}
}

func TestHeartbeatLoopExitsOnClosed(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateClosed)

	done := make(chan struct{})
	go func() {
		s.RunHeartbeat(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("heartbeat loop did not exit on CLOSED")
	}
	if fake.heartbeatCount() != 0 {
		t.Fatalf("expected no heartbeats, got %d", fake.heartbeatCount())
	}
}

func TestHeartbeatLoopRunsOnce(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateAccepted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunHeartbeat(ctx)
	waitFor(t, time.Second, func() bool { return fake.heartbeatCount() >= 1 })

	// A second call must refuse to start a competing loop and return.
	s.RunHeartbeat(ctx)
}

func TestHeartbeatLoopRunsFirmwareSimulation(t *testing.T) {
	original := firmwareStepDelay
	firmwareStepDelay = time.Millisecond
	t.Cleanup(func() { firmwareStepDelay = original })

	s, fake, stores := newTestSession(t, models.StateUpdateFirmware)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunHeartbeat(ctx)

	waitFor(t, time.Second, func() bool { return len(fake.firmwareSequence()) == 4 })
	sequence := fake.firmwareSequence()
	expected := []firmware.FirmwareStatus{
		firmware.FirmwareStatusDownloading,
		firmware.FirmwareStatusDownloaded,
		firmware.FirmwareStatusInstalling,
		firmware.FirmwareStatusInstalled,
	}
	for i, status := range expected {
		if sequence[i] != status {
			t.Fatalf("step %d: expected %s, got %s", i, status, sequence[i])
		}
	}

	waitFor(t, time.Second, func() bool {
		record, err := stores.Points.Get(context.Background(), "cp-1")
		return err == nil && record.State == models.StateAccepted
	})
}

func TestHeartbeatLoopRunsDiagnosticsSimulation(t *testing.T) {
	original := firmwareStepDelay
	firmwareStepDelay = time.Millisecond
	t.Cleanup(func() { firmwareStepDelay = original })

	s, fake, stores := newTestSession(t, models.StateGetDiagnostics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunHeartbeat(ctx)

	waitFor(t, time.Second, func() bool { return len(fake.diagSequence()) == 2 })
	sequence := fake.diagSequence()
	if sequence[0] != firmware.DiagnosticsStatusUploading || sequence[1] != firmware.DiagnosticsStatusUploaded {
		t.Fatalf("unexpected sequence: %v", sequence)
	}

	waitFor(t, time.Second, func() bool {
		record, err := stores.Points.Get(context.Background(), "cp-1")
		return err == nil && record.State == models.StateAccepted
	})
}

func TestOnRemoteStartTransactionRunsFollowUp(t *testing.T) {
	s, fake, stores := newTestSession(t, models.StateAccepted)
	ctx := context.Background()
	if _, err := stores.Connectors.Initialize(ctx, "cp-1", 2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	connectorID := 2
	confirmation, err := s.OnRemoteStartTransaction(&core.RemoteStartTransactionRequest{
		ConnectorId: &connectorID,
		IdTag:       "tag-1",
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if confirmation.Status != types.RemoteStartStopStatusAccepted {
		t.Fatalf("expected accepted ack, got %s", confirmation.Status)
	}

	waitFor(t, time.Second, func() bool { return fake.startTransactionCount() == 1 })
	waitFor(t, time.Second, func() bool {
		statuses, err := stores.Connectors.Statuses(ctx, "cp-1")
		return err == nil && statuses[2] == models.ConnectorCharging
	})
	waitFor(t, time.Second, func() bool {
		return stores.Transactions.ValidateExists(ctx, "cp-1", 101) == nil
	})
}

func TestOnRemoteStartTransactionRejectedTagIsNoOp(t *testing.T) {
	s, fake, stores := newTestSession(t, models.StateAccepted)
	ctx := context.Background()
	if _, err := stores.Connectors.Initialize(ctx, "cp-1", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	fake.authStatus = types.AuthorizationStatusBlocked

	if _, err := s.OnRemoteStartTransaction(&core.RemoteStartTransactionRequest{IdTag: "tag-1"}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return fake.authorizes == 1
	})
	time.Sleep(20 * time.Millisecond)
	if fake.startTransactionCount() != 0 {
		t.Fatalf("transaction must not start for a blocked tag")
	}
	statuses, err := stores.Connectors.Statuses(ctx, "cp-1")
	if err != nil {
		t.Fatalf("statuses: %v", err)
	}
	if statuses[1] != models.ConnectorAvailable {
		t.Fatalf("connector must stay available, got %s", statuses[1])
	}
}

func TestOnRemoteStopTransactionUnknownTransactionIsNoOp(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateAccepted)

	confirmation, err := s.OnRemoteStopTransaction(&core.RemoteStopTransactionRequest{TransactionId: 42})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if confirmation.Status != types.RemoteStartStopStatusAccepted {
		t.Fatalf("expected accepted ack, got %s", confirmation.Status)
	}

	time.Sleep(50 * time.Millisecond)
	if fake.stopTransactionCount() != 0 {
		t.Fatalf("stop must not be sent for an unknown transaction")
	}
}

func TestOnRemoteStopTransactionReleasesConnector(t *testing.T) {
	s, fake, stores := newTestSession(t, models.StateAccepted)
	ctx := context.Background()
	if _, err := stores.Connectors.Initialize(ctx, "cp-1", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := stores.Connectors.SetStatus(ctx, "cp-1", 1, models.ConnectorCharging); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := stores.Transactions.Add(ctx, "cp-1", 42, 1); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	if _, err := s.OnRemoteStopTransaction(&core.RemoteStopTransactionRequest{TransactionId: 42}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	waitFor(t, time.Second, func() bool { return fake.stopTransactionCount() == 1 })
	waitFor(t, time.Second, func() bool {
		statuses, err := stores.Connectors.Statuses(ctx, "cp-1")
		return err == nil && statuses[1] == models.ConnectorAvailable
	})
	waitFor(t, time.Second, func() bool {
		return stores.Transactions.ValidateExists(ctx, "cp-1", 42) != nil
	})
}

func TestOnChangeAvailability(t *testing.T) {
	s, fake, stores := newTestSession(t, models.StateAccepted)
	ctx := context.Background()
	if _, err := stores.Connectors.Initialize(ctx, "cp-1", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	confirmation, err := s.OnChangeAvailability(&core.ChangeAvailabilityRequest{
		ConnectorId: 1,
		Type:        core.AvailabilityTypeInoperative,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if confirmation.Status != core.AvailabilityStatusAccepted {
		t.Fatalf("expected accepted ack, got %s", confirmation.Status)
	}

	waitFor(t, time.Second, func() bool {
		statuses, err := stores.Connectors.Statuses(ctx, "cp-1")
		return err == nil && statuses[1] == models.ConnectorUnavailable
	})
	waitFor(t, time.Second, func() bool {
		note, ok := fake.lastStatusNote()
		return ok && note.connectorID == 1 && note.status == core.ChargePointStatusUnavailable
	})
}

func TestOnResetTriggersBoot(t *testing.T) {
	s, fake, _ := newTestSession(t, models.StateAccepted)

	confirmation, err := s.OnReset(&core.ResetRequest{Type: core.ResetTypeSoft})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if confirmation.Status != core.ResetStatusAccepted {
		t.Fatalf("expected accepted ack, got %s", confirmation.Status)
	}

	waitFor(t, time.Second, func() bool { return fake.bootCount() == 1 })
}

func TestOnUpdateFirmwareMovesState(t *testing.T) {
	s, _, stores := newTestSession(t, models.StateAccepted)

	if _, err := s.OnUpdateFirmware(&firmware.UpdateFirmwareRequest{Location: "ftp://example/fw.bin"}); err != nil {
		t.Fatalf("handler: %v", err)
	}

	record, err := stores.Points.Get(context.Background(), "cp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.State != models.StateUpdateFirmware {
		t.Fatalf("expected UPDATE_FIRMWARE, got %s", record.State)
	}
}

func TestOnGetDiagnosticsNamesFile(t *testing.T) {
	s, _, stores := newTestSession(t, models.StateAccepted)

	confirmation, err := s.OnGetDiagnostics(&firmware.GetDiagnosticsRequest{Location: "ftp://example/up"})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if confirmation.FileName == "" {
		t.Fatalf("expected a diagnostics file name")
	}

	record, err := stores.Points.Get(context.Background(), "cp-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.State != models.StateGetDiagnostics {
		t.Fatalf("expected GET_DIAGNOSTICS, got %s", record.State)
	}
}
