package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func rec(serial string, lat float64) core.TelemetryRecord {
	return core.TelemetryRecord{Serial: serial, Position: core.LatLng{Lat: lat, Lng: -0.3}}
}

func battery(v float64) *float64 { return &v }

func TestApply_UpsertBySerial(t *testing.T) {
	b := NewBridge(nil)

	assert.True(t, b.Apply(rec("A1", 1)))
	assert.Equal(t, 1, b.Len())

	assert.True(t, b.Apply(rec("B2", 2)))
	assert.Equal(t, 2, b.Len())

	// known serial: size unchanged, fields replaced in place
	updated := rec("A1", 5)
	updated.Battery = battery(15)
	assert.True(t, b.Apply(updated))
	assert.Equal(t, 2, b.Len())

	drones := b.Drones()
	assert.Equal(t, "A1", drones[0].Serial)
	assert.Equal(t, 5.0, drones[0].Position.Lat)
	require.NotNil(t, drones[0].Battery)
	assert.Equal(t, 15.0, *drones[0].Battery)
	assert.Equal(t, "B2", drones[1].Serial)
}

func TestApply_IgnoresEmptySerial(t *testing.T) {
	b := NewBridge(nil)
	assert.False(t, b.Apply(core.TelemetryRecord{}))
	assert.Zero(t, b.Len())
}

func TestApply_UnsequencedLastArrivalWins(t *testing.T) {
	b := NewBridge(nil, WithSequenceGuard(true))
	b.Apply(rec("A1", 2))
	b.Apply(rec("A1", 1))

	d, ok := b.Drone("A1")
	require.True(t, ok)
	assert.Equal(t, 1.0, d.Position.Lat)
}

func TestApply_SequenceGuard(t *testing.T) {
	tests := []struct {
		name     string
		guard    bool
		storedSq uint64
		nextSq   uint64
		applied  bool
	}{
		{"newer applied", true, 5, 6, true},
		{"older dropped", true, 5, 4, false},
		{"equal dropped", true, 5, 5, false},
		{"unsequenced incoming applied", true, 5, 0, true},
		{"unsequenced stored applied", true, 0, 4, true},
		{"guard off applies older", false, 5, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBridge(nil, WithSequenceGuard(tt.guard))
			first := rec("A1", 1)
			first.Seq = tt.storedSq
			require.True(t, b.Apply(first))

			next := rec("A1", 2)
			next.Seq = tt.nextSq
			assert.Equal(t, tt.applied, b.Apply(next))

			d, _ := b.Drone("A1")
			if tt.applied {
				assert.Equal(t, 2.0, d.Position.Lat)
			} else {
				assert.Equal(t, 1.0, d.Position.Lat)
			}
			assert.Equal(t, 1, b.Len())
		})
	}
}

func TestOpen_OnlyOnce(t *testing.T) {
	bc := NewBroadcaster(8)
	defer bc.Close()

	b := NewBridge(bc)
	require.NoError(t, b.Open(context.Background(), "m1"))
	assert.ErrorIs(t, b.Open(context.Background(), "m1"), ErrAlreadyOpen)
	assert.Equal(t, 1, bc.SubscriberCount())

	require.NoError(t, b.Close())
	assert.Zero(t, bc.SubscriberCount())
}

func TestOpen_ReceivesPublishedRecords(t *testing.T) {
	bc := NewBroadcaster(8)
	defer bc.Close()

	updates := make(chan core.TelemetryRecord, 4)
	b := NewBridge(bc, WithOnUpdate(func(r core.TelemetryRecord) { updates <- r }))
	require.NoError(t, b.Open(context.Background(), "m1"))
	defer b.Close()

	assert.Equal(t, 1, bc.Publish("m1", rec("XYZ123", 39.5)))
	assert.Zero(t, bc.Publish("other", rec("NOPE", 1)))

	select {
	case r := <-updates:
		assert.Equal(t, "XYZ123", r.Serial)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for telemetry")
	}
	_, ok := b.Drone("NOPE")
	assert.False(t, ok)
}

type failingChannel struct{ err error }

func (f failingChannel) Subscribe(context.Context, string, Handler) (Subscription, error) {
	return nil, f.err
}

func TestOpen_SubscribeFailure(t *testing.T) {
	b := NewBridge(failingChannel{err: errors.New("broker unreachable")})
	err := b.Open(context.Background(), "m1")

	var sf *core.SubscriptionFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "m1", sf.Topic)

	// no retry on a second call
	assert.ErrorIs(t, b.Open(context.Background(), "m1"), ErrAlreadyOpen)
	assert.NoError(t, b.Close())
}

func TestOpen_NoChannel(t *testing.T) {
	b := NewBridge(nil)
	err := b.Open(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrNoChannel)
}

func TestClose_IdempotentAndDropsLateRecords(t *testing.T) {
	bc := NewBroadcaster(8)
	defer bc.Close()

	b := NewBridge(bc)
	require.NoError(t, b.Open(context.Background(), "m1"))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.False(t, b.Apply(rec("A1", 1)))
	assert.Zero(t, b.Len())
}

// memLastKnown is an in-memory LastKnown.
type memLastKnown struct {
	mu   sync.Mutex
	recs map[string]core.TelemetryRecord
	puts int
}

func (m *memLastKnown) Put(_ context.Context, r core.TelemetryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]core.TelemetryRecord{}
	}
	m.recs[r.Serial] = r
	m.puts++
	return nil
}

func (m *memLastKnown) Get(_ context.Context, serials []string) ([]core.TelemetryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.TelemetryRecord
	for _, s := range serials {
		if r, ok := m.recs[s]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestLastKnown_SeedAndWriteThrough(t *testing.T) {
	lk := &memLastKnown{recs: map[string]core.TelemetryRecord{
		"XYZ123": rec("XYZ123", 39.1),
		"OTHER":  rec("OTHER", 10),
	}}
	bc := NewBroadcaster(8)
	defer bc.Close()

	b := NewBridge(bc, WithLastKnown(lk, func() []string { return []string{"XYZ123", "MISSING"} }))
	require.NoError(t, b.Open(context.Background(), "m1"))
	defer b.Close()

	assert.Equal(t, 1, b.Len())
	d, ok := b.Drone("XYZ123")
	require.True(t, ok)
	assert.Equal(t, 39.1, d.Position.Lat)
	assert.Zero(t, lk.puts, "seeding does not write back")

	b.Apply(rec("XYZ123", 39.2))
	lk.mu.Lock()
	defer lk.mu.Unlock()
	assert.Equal(t, 1, lk.puts)
	assert.Equal(t, 39.2, lk.recs["XYZ123"].Position.Lat)
}

func TestApply_Concurrent(t *testing.T) {
	b := NewBridge(nil)
	var wg sync.WaitGroup
	serials := []string{"A", "B", "C", "D"}
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b.Apply(rec(serials[i%len(serials)], float64(i)))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, len(serials), b.Len())
}
