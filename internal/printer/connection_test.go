package printer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var testDevice = DeviceHandle{ID: "AA:BB:CC:DD:EE:FF", Name: "PT-210"}

func newTestManager(t *testing.T, tr *fakeTransport, store Store) (*ConnectionManager, *recordingSleeper) {
	t.Helper()
	sl := &recordingSleeper{}
	if store == nil {
		store = NewMemoryStore()
	}
	cm := NewConnectionManager("label", tr, store,
		WithSleeper(sl.sleep),
		WithLogger(zaptest.NewLogger(t)),
	)
	return cm, sl
}

func TestConnectRetriesThreeTimesThenFails(t *testing.T) {
	cause := errors.New("gatt server unreachable")
	tr := &fakeTransport{discoverHandle: testDevice, openErrs: []error{cause}}
	cm, sl := newTestManager(t, tr, nil)

	_, err := cm.Pair(context.Background())
	require.NoError(t, err)

	err = cm.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, cause)

	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Attempts)

	assert.Equal(t, 3, tr.opens)
	assert.Equal(t, 3, tr.closes, "each failed attempt is cleaned up")
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sl.waits)

	st := cm.State()
	assert.Equal(t, StateFailed, st.Kind)
	assert.ErrorIs(t, st.Reason, ErrConnectionFailed)
}

func TestConnectSucceedsOnRetry(t *testing.T) {
	tr := &fakeTransport{
		discoverHandle: testDevice,
		openErrs:       []error{errors.New("busy"), nil},
	}
	cm, sl := newTestManager(t, tr, nil)

	_, err := cm.Pair(context.Background())
	require.NoError(t, err)
	require.NoError(t, cm.Connect(context.Background()))

	assert.Equal(t, 2, tr.opens)
	assert.Len(t, sl.waits, 1)
	assert.Equal(t, StateConnected, cm.State().Kind)
}

func TestConnectStopsWhenContextCancelled(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice, openErrs: []error{errors.New("timeout")}}
	cm, _ := newTestManager(t, tr, nil)
	_, err := cm.Pair(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cm.Connect(ctx)
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, tr.opens)
}

func TestConnectWithoutPairing(t *testing.T) {
	tr := &fakeTransport{}
	cm, _ := newTestManager(t, tr, nil)

	err := cm.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoDeviceFound)
	assert.Zero(t, tr.opens)
}

func TestPairWithoutStoredHandleDiscovers(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	store := NewMemoryStore()
	cm, _ := newTestManager(t, tr, store)

	m, err := cm.Pair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodFreshPairing, m)
	assert.Zero(t, tr.reconnects, "no silent reconnect without a stored handle")
	assert.Equal(t, 1, tr.discovers)

	saved, ok, err := LoadHandle(store, HandleKey("label"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testDevice, saved)

	assert.Equal(t, StateDisconnected, cm.State().Kind)
	h, ok := cm.Handle()
	assert.True(t, ok)
	assert.Equal(t, testDevice, h)
}

func TestPairSilentReconnect(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, SaveHandle(store, HandleKey("label"), testDevice))

	tr := &fakeTransport{}
	cm, _ := newTestManager(t, tr, store)

	m, err := cm.Pair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodSilentReconnect, m)
	assert.Equal(t, 1, tr.reconnects)
	assert.Zero(t, tr.discovers)
}

func TestPairFallsBackToDiscovery(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, SaveHandle(store, HandleKey("label"), testDevice))

	replacement := DeviceHandle{ID: "11:22:33:44:55:66", Name: "PT-210"}
	tr := &fakeTransport{reconnectErr: ErrNoDeviceFound, discoverHandle: replacement}
	cm, _ := newTestManager(t, tr, store)

	m, err := cm.Pair(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodFreshPairing, m)
	assert.Equal(t, 1, tr.reconnects)
	assert.Equal(t, 1, tr.discovers)

	saved, _, err := LoadHandle(store, HandleKey("label"))
	require.NoError(t, err)
	assert.Equal(t, replacement, saved)
}

func TestPairDenied(t *testing.T) {
	tr := &fakeTransport{discoverErr: ErrPairingDenied}
	cm, _ := newTestManager(t, tr, nil)

	_, err := cm.Pair(context.Background())
	assert.ErrorIs(t, err, ErrPairingDenied)
	st := cm.State()
	assert.Equal(t, StateFailed, st.Kind)
	assert.ErrorIs(t, st.Reason, ErrPairingDenied)
}

func TestEnsureIsIdempotent(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	cm, _ := newTestManager(t, tr, nil)

	m, err := cm.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodFreshPairing, m)

	m, err = cm.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodExistingSession, m)

	require.NoError(t, cm.Connect(context.Background()))
	assert.Equal(t, 1, tr.opens, "connected role is not reopened")
}

func TestEnsureKnownDevice(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	cm, _ := newTestManager(t, tr, nil)
	_, err := cm.Pair(context.Background())
	require.NoError(t, err)

	m, err := cm.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodKnownDevice, m)
}

func TestWriteFailureMarksFailed(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	cm, _ := newTestManager(t, tr, nil)
	_, err := cm.Ensure(context.Background())
	require.NoError(t, err)

	m, err := cm.Write(context.Background(), []byte("CLS\r\n"))
	require.NoError(t, err)
	assert.Equal(t, MethodSerial, m)

	tr.writeErr = ErrTransportInterrupted
	_, err = cm.Write(context.Background(), []byte("CLS\r\n"))
	assert.ErrorIs(t, err, ErrTransportInterrupted)

	st := cm.State()
	assert.Equal(t, StateFailed, st.Kind)
	assert.ErrorIs(t, st.Reason, ErrTransportInterrupted)

	_, err = cm.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLinkLossDisconnects(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	cm, _ := newTestManager(t, tr, nil)
	_, err := cm.Ensure(context.Background())
	require.NoError(t, err)

	tr.drop()
	assert.Equal(t, StateDisconnected, cm.State().Kind)

	m, err := cm.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MethodKnownDevice, m)
	assert.Equal(t, 2, tr.opens)
}

func TestDisconnectKeepsHandle(t *testing.T) {
	tr := &fakeTransport{discoverHandle: testDevice}
	cm, _ := newTestManager(t, tr, nil)
	_, err := cm.Ensure(context.Background())
	require.NoError(t, err)

	require.NoError(t, cm.Disconnect())
	assert.Equal(t, StateDisconnected, cm.State().Kind)
	_, ok := cm.Handle()
	assert.True(t, ok)
	assert.False(t, tr.IsConnected())
}
