package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/kamusis/envdiff/internal/config"
	"github.com/kamusis/envdiff/internal/snapshot"
)

type fakeSource struct {
	catalog map[string][]snapshot.CatalogRow
	events  map[string][]snapshot.EventRow
	fail    map[string]error
	// hang blocks the fetch and ignores ctx, like a stuck driver.
	hang map[string]bool
	// slow blocks until ctx is done, then takes closeDelay to release its session.
	slow       map[string]bool
	closeDelay time.Duration
	delay      time.Duration
	active     atomic.Int32
	maxSeen    atomic.Int32
	release    chan struct{}
}

func (f *fakeSource) enter() func() {
	n := f.active.Add(1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.active.Add(-1) }
}

func (f *fakeSource) wait(ctx context.Context, id string) error {
	if f.hang[id] {
		<-f.release
	}
	if f.slow[id] {
		<-ctx.Done()
		time.Sleep(f.closeDelay)
		return ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.fail[id]
}

func (f *fakeSource) FetchCatalog(ctx context.Context, conn config.Connection) ([]snapshot.CatalogRow, error) {
	defer f.enter()()
	if err := f.wait(ctx, conn.ID()); err != nil {
		return nil, err
	}
	return f.catalog[conn.ID()], nil
}

func (f *fakeSource) FetchEvents(ctx context.Context, conn config.Connection) ([]snapshot.EventRow, error) {
	defer f.enter()()
	if err := f.wait(ctx, conn.ID()); err != nil {
		return nil, err
	}
	return f.events[conn.ID()], nil
}

func testConns(t *testing.T, keys ...string) []config.Connection {
	t.Helper()
	var out []config.Connection
	for _, k := range keys {
		key, err := config.ParseKey(k, config.DefaultEnvironments())
		require.NoError(t, err)
		out = append(out, config.Connection{Key: key, Host: "h", ServiceName: "s"})
	}
	return out
}

func TestCollectSchemas_KeepsOrderAndIsolatesFailures(t *testing.T) {
	conns := testConns(t, "PRO_NYC_V8", "DES_NYC_V8", "PRO_LON_V7")
	src := &fakeSource{
		catalog: map[string][]snapshot.CatalogRow{
			"PRO_NYC_V8": {{Kind: snapshot.KindColumn, Table: "T1", Name: "ID", Position: 1}},
			"PRO_LON_V7": {{Kind: snapshot.KindColumn, Table: "T2", Name: "ID", Position: 1}},
		},
		fail: map[string]error{"DES_NYC_V8": errors.New("ORA-12541: TNS:no listener")},
	}

	c := NewCollector(src, Options{Workers: 3}, zaptest.NewLogger(t))
	results := c.Schemas(context.Background(), conns)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, conns[i].ID(), r.Conn.ID())
	}
	assert.True(t, results[0].Available())
	assert.Equal(t, []string{"T1"}, results[0].Snapshot.TableNames())

	assert.False(t, results[1].Available())
	assert.Nil(t, results[1].Snapshot)
	var unavailable *snapshot.Unavailable
	require.True(t, errors.As(results[1].Err, &unavailable))
	assert.Equal(t, "DES_NYC_V8", unavailable.Key)
	var connErr *ConnectionError
	require.True(t, errors.As(results[1].Err, &connErr))
	assert.Equal(t, "fetch catalog", connErr.Op)
	assert.ErrorContains(t, results[1].Err, "no listener")

	assert.True(t, results[2].Available())
}

func TestCollectSchemas_EmptyCatalogIsNotUnavailable(t *testing.T) {
	results := CollectSchemas(context.Background(), &fakeSource{}, testConns(t, "PRE_MAD_V6"), Options{})
	require.Len(t, results, 1)
	assert.True(t, results[0].Available())
	assert.Empty(t, results[0].Snapshot.Tables)
}

func TestCollect_TimeoutMarksUnavailable(t *testing.T) {
	src := &fakeSource{
		hang:    map[string]bool{"PRO_NYC_V8": true},
		release: make(chan struct{}),
	}
	defer close(src.release)

	start := time.Now()
	results := CollectSchemas(context.Background(), src, testConns(t, "PRO_NYC_V8", "PRO_LON_V7"),
		Options{Workers: 2, Timeout: 50 * time.Millisecond, Grace: 100 * time.Millisecond})
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, results, 2)
	assert.False(t, results[0].Available())
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	assert.True(t, results[1].Available())
}

func TestCollect_TimeoutWaitsForSessionRelease(t *testing.T) {
	src := &fakeSource{
		slow:       map[string]bool{"PRO_NYC_V8": true},
		closeDelay: 30 * time.Millisecond,
	}

	results := CollectSchemas(context.Background(), src, testConns(t, "PRO_NYC_V8", "PRO_LON_V7"),
		Options{Workers: 2, Timeout: 20 * time.Millisecond})

	assert.Equal(t, int32(0), src.active.Load(), "no fetch may still be running after the barrier")
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
	var connErr *ConnectionError
	assert.ErrorAs(t, results[0].Err, &connErr)
	assert.True(t, results[1].Available())
}

func TestCollect_WorkerLimit(t *testing.T) {
	src := &fakeSource{delay: 20 * time.Millisecond}
	conns := testConns(t, "PRO_NYC_V8", "PRO_LON_V7", "DES_NYC_V8", "PRE_NYC_V8", "PRE_LON_V7", "DES_LON_V7")

	results := CollectEvents(context.Background(), src, conns, Options{Workers: 2})
	require.Len(t, results, len(conns))
	assert.LessOrEqual(t, src.maxSeen.Load(), int32(2))
	for _, r := range results {
		assert.True(t, r.Available())
	}
}

func TestCollectEvents(t *testing.T) {
	conns := testConns(t, "PRO_NYC_V8")
	src := &fakeSource{events: map[string][]snapshot.EventRow{
		"PRO_NYC_V8": {{Source: snapshot.SourceEvents, Entity: "ORDER", TriggerPoint: "ON_SAVE", Formula: "GOSUB SAVE\nGOSUB"}},
	}}
	results := NewCollector(src, Options{}, zaptest.NewLogger(t)).Events(context.Background(), conns)
	require.True(t, results[0].Available())
	ev := results[0].Snapshot.Events["events/ORDER"]
	require.NotNil(t, ev)
	assert.Equal(t, "GOSUB:SAVE", snapshot.CallSequence(ev.Calls))
}
