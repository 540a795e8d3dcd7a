package token

import (
	"testing"
	"time"

	"github.com/existflow/keepsession/internal/kv"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *kv.Memory, *fakeClock) {
	mem := kv.NewMemory()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	return New(mem, WithClock(clk.Now)), mem, clk
}

func TestStore_GetWithinTTL(t *testing.T) {
	s, _, clk := newTestStore()
	s.Save("tok-1")

	assert.Equal(t, "tok-1", s.Get())
	assert.False(t, s.IsNearExpiry(), "fresh token is not near expiry")

	clk.Advance(TTL)
	assert.Equal(t, "tok-1", s.Get(), "exactly TTL old is still valid")
}

func TestStore_GetPurgesExpired(t *testing.T) {
	s, mem, clk := newTestStore()
	s.Save("tok-1")

	clk.Advance(TTL + time.Millisecond)

	assert.Equal(t, "", s.Get())
	assert.False(t, mem.Has(kv.KeyToken))
	assert.False(t, mem.Has(kv.KeyTokenIssuedAt))
}

func TestStore_IsNearExpiry(t *testing.T) {
	s, _, clk := newTestStore()
	s.Save("tok-1")

	clk.Advance(22 * time.Hour)
	assert.False(t, s.IsNearExpiry(), "22h is the boundary, not past it")

	clk.Advance(time.Millisecond)
	assert.True(t, s.IsNearExpiry())
	assert.Equal(t, "tok-1", s.Get(), "near expiry tokens are still returned")
}

func TestStore_MissingTimestampMeansNoToken(t *testing.T) {
	s, mem, _ := newTestStore()
	_ = mem.Set(kv.KeyToken, "orphan")

	assert.Equal(t, "", s.Get())
	assert.False(t, s.IsNearExpiry())
}

func TestStore_MalformedTimestampMeansNoToken(t *testing.T) {
	s, mem, _ := newTestStore()
	_ = mem.Set(kv.KeyToken, "tok")
	_ = mem.Set(kv.KeyTokenIssuedAt, "yesterday")

	assert.Equal(t, "", s.Get())
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	s, mem, _ := newTestStore()
	s.Save("tok-1")

	s.Remove()
	s.Remove()

	assert.Equal(t, "", s.Get())
	assert.False(t, mem.Has(kv.KeyToken))
}

func TestStore_PersistenceFailureDegradesToNoToken(t *testing.T) {
	s, mem, _ := newTestStore()
	s.Save("tok-1")

	mem.SetErr(kv.ErrUnavailable)

	assert.NotPanics(t, func() {
		assert.Equal(t, "", s.Get())
		assert.False(t, s.IsNearExpiry())
		s.Save("tok-2")
		s.Remove()
	})
}

// observingStore reports, after every write, whether the token store would
// consider the stored token near expiry.
type observingStore struct {
	*kv.Memory
	tokens *Store
	seen   []string
}

func (o *observingStore) Set(key, value string) error {
	if err := o.Memory.Set(key, value); err != nil {
		return err
	}
	tok, _, _ := o.Memory.Get(kv.KeyToken)
	if o.tokens.IsNearExpiry() {
		o.seen = append(o.seen, tok+" near expiry")
	} else {
		o.seen = append(o.seen, tok+" fresh")
	}
	return nil
}

func TestStore_SaveNeverPairsNewTokenWithOldAge(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	obs := &observingStore{Memory: kv.NewMemory()}
	s := New(obs, WithClock(clk.Now))
	obs.tokens = s

	s.Save("tok-1")
	clk.Advance(TTL - RefreshWindow + time.Minute)
	obs.seen = nil

	s.Save("tok-2")

	assert.Equal(t, []string{"tok-1 fresh", "tok-2 fresh"}, obs.seen)
}
