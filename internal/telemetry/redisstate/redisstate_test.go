package redisstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/OCAP2/tacmap/internal/telemetry"
	"github.com/OCAP2/tacmap/pkg/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface check
var _ telemetry.LastKnown = (*Store)(nil)

// fakeRedis is a map-backed RedisClientInterface.
type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	mgetErr error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	if f.mgetErr != nil {
		return redis.NewSliceResult(nil, f.mgetErr)
	}
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := f.data[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestPutGet(t *testing.T) {
	fake := newFakeRedis()
	s := NewWithClient(fake, 30*time.Minute)
	ctx := context.Background()

	b := 42.0
	require.NoError(t, s.Put(ctx, core.TelemetryRecord{Serial: "XYZ123", Position: core.LatLng{Lat: 1, Lng: 2}, Battery: &b}))
	assert.Equal(t, 30*time.Minute, fake.ttls["tacmap:telemetry:XYZ123"])

	recs, err := s.Get(ctx, []string{"XYZ123", "MISSING"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "XYZ123", recs[0].Serial)
	require.NotNil(t, recs[0].Battery)
	assert.Equal(t, 42.0, *recs[0].Battery)
}

func TestGet_SkipsCorruptEntries(t *testing.T) {
	fake := newFakeRedis()
	fake.data["tacmap:telemetry:BAD"] = "{not json"
	s := NewWithClient(fake, 0)

	recs, err := s.Get(context.Background(), []string{"BAD"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestGet_Empty(t *testing.T) {
	s := NewWithClient(newFakeRedis(), 0)
	recs, err := s.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, recs)
}

func TestGet_Error(t *testing.T) {
	fake := newFakeRedis()
	fake.mgetErr = errors.New("connection reset")
	s := NewWithClient(fake, 0)

	_, err := s.Get(context.Background(), []string{"A"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestDefaultTTL(t *testing.T) {
	s := NewWithClient(newFakeRedis(), 0)
	assert.Equal(t, time.Hour, s.ttl)
}

func TestClose(t *testing.T) {
	fake := newFakeRedis()
	require.NoError(t, NewWithClient(fake, 0).Close())
	assert.True(t, fake.closed)
}
