package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cn "github.com/harborgrid-justin/cadcore/common/constant"
	"github.com/harborgrid-justin/cadcore/pkg/pool"
)

type fakeConn struct {
	id int
}

func newCountingFactory() (pool.Factory[*fakeConn], *int32) {
	var counter int32
	return func(_ context.Context) (*fakeConn, error) {
		n := atomic.AddInt32(&counter, 1)
		return &fakeConn{id: int(n)}, nil
	}, &counter
}

func noopProbe(_ context.Context, _ *fakeConn) error { return nil }
func noopClose(_ *fakeConn)                          {}

func TestPool_AcquireAndReleaseRoundTrips(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 2, MaxConnections: 2, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, conn)

	p.Release(conn)

	stats := p.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
}

func TestPool_AcquireTimesOutWhenExhausted(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: 20 * time.Millisecond}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, cn.ErrAcquireTimeout)

	p.Release(conn)
}

func TestPool_AcquireIsFIFO(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)

	order := make(chan int, 3)
	var wg sync.WaitGroup

	for i := 1; i <= 3; i++ {
		wg.Add(1)
		waiterID := i

		go func() {
			defer wg.Done()

			time.Sleep(time.Duration(waiterID) * 5 * time.Millisecond)

			c, err := p.Acquire(context.Background())
			if err != nil {
				return
			}

			order <- waiterID
			p.Release(c)
		}()

		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(10 * time.Millisecond)
	p.Release(conn)

	wg.Wait()
	close(order)

	var seen []int
	for v := range order {
		seen = append(seen, v)
	}

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestPool_ExecuteRecordsEMAQueryTime(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err := p.Execute(context.Background(), func(_ *fakeConn) error {
			time.Sleep(2 * time.Millisecond)
			return nil
		})
		require.NoError(t, err)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(3), stats.TotalQueries)
	assert.Equal(t, uint64(0), stats.TotalErrors)
	// Every query took at least 2ms, so the moving average cannot fall below it.
	assert.GreaterOrEqual(t, stats.AvgQueryTimeMicros, uint64(2000))
}

func TestPool_ExecuteRecordsErrorsAsDriverError(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	execErr := p.Execute(context.Background(), func(_ *fakeConn) error { return errors.New("boom") })
	assert.ErrorIs(t, execErr, cn.ErrDriverError)
	assert.Equal(t, uint64(1), p.Stats().TotalErrors)
}

func TestPool_HealthCheckReportsLatencyAndSize(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 2, MaxConnections: 2, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	result, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, result.IsHealthy)
	assert.Equal(t, 2, result.PoolSize)
}

func TestPool_HealthCheckFailurePropagatesProbeError(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	failingProbe := func(_ context.Context, _ *fakeConn) error { return errors.New("ping failed") }

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, failingProbe, noopClose)
	require.NoError(t, err)

	result, err := p.HealthCheck(context.Background())
	assert.ErrorIs(t, err, cn.ErrHealthProbeFailed)
	assert.False(t, result.IsHealthy)
}

func TestPool_AcquireAfterCloseFails(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	conn, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(conn)

	require.NoError(t, p.Close(context.Background()))

	_, err = p.Acquire(context.Background())
	assert.ErrorIs(t, err, cn.ErrPoolClosed)
}

func TestPool_FetchOneReturnsTypedResult(t *testing.T) {
	factory, _ := newCountingFactory()
	cfg := pool.Config{MinConnections: 1, MaxConnections: 1, ConnectTimeout: time.Second}

	p, err := pool.New[*fakeConn](context.Background(), cfg, factory, noopProbe, noopClose)
	require.NoError(t, err)

	result, err := pool.FetchOne(context.Background(), p, func(c *fakeConn) (int, error) {
		return c.id, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result)
}
