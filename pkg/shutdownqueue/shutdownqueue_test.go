package shutdownqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fresh empties the process-wide queue before and after a test.
func fresh(t *testing.T) {
	t.Helper()

	wipe := func() {
		q.mu.Lock()
		defer q.mu.Unlock()

		q.tasks = nil
		q.closed = false
	}

	wipe()
	t.Cleanup(wipe)
}

// journal records which tasks ran, in order.
type journal struct {
	mu  sync.Mutex
	ran []string
}

func (j *journal) task(name string, err error) Task {
	return func(context.Context) error {
		j.mu.Lock()
		defer j.mu.Unlock()

		j.ran = append(j.ran, name)

		return err
	}
}

func (j *journal) names() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.ran...)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

//nolint:paralleltest // shared queue
func TestShutdown_ReleasesInReverseOfWiring(t *testing.T) {
	fresh(t)

	var j journal

	// Wiring order in cmd/api: storage first, listeners last.
	for _, name := range []string{"postgres", "event hub", "redis bridge", "metrics server", "http server"} {
		Add(name, j.task(name, nil))
	}

	require.NoError(t, Shutdown(t.Context()))
	assert.Equal(t, []string{"http server", "metrics server", "redis bridge", "event hub", "postgres"}, j.names())
}

//nolint:paralleltest // shared queue
func TestShutdown_RunsEachTaskOnce(t *testing.T) {
	fresh(t)

	var j journal

	Add("kafka writer", j.task("kafka writer", nil))
	Add("nothing", nil)

	require.NoError(t, Shutdown(t.Context()))
	require.NoError(t, Shutdown(t.Context()))

	assert.Equal(t, []string{"kafka writer"}, j.names())
}

//nolint:paralleltest // shared queue
func TestShutdown_EmptyQueue(t *testing.T) {
	fresh(t)

	require.NoError(t, Shutdown(t.Context()))
	require.NoError(t, Shutdown(t.Context()))
}

//nolint:paralleltest // shared queue
func TestShutdown_JoinsErrorsAndKeepsGoing(t *testing.T) {
	fresh(t)

	var j journal

	errPool := errors.New("pool still busy")
	errBroker := errors.New("broker unreachable")

	Add("postgres", Closer(closerFunc(func() error { return errPool })))
	Add("event hub", j.task("event hub", nil))
	Add("kafka writer", j.task("kafka writer", errBroker))

	err := Shutdown(t.Context())
	require.ErrorIs(t, err, errPool)
	require.ErrorIs(t, err, errBroker)

	assert.Contains(t, err.Error(), "postgres: pool still busy")
	assert.Contains(t, err.Error(), "kafka writer: broker unreachable")
	assert.Equal(t, []string{"kafka writer", "event hub"}, j.names())
}

//nolint:paralleltest // shared queue
func TestShutdown_RecoversPanickingTask(t *testing.T) {
	fresh(t)

	var j journal

	Add("postgres", j.task("postgres", nil))
	Add("redis bridge", func(context.Context) error { panic("nil subscription") })
	Add("http server", j.task("http server", nil))

	err := Shutdown(t.Context())
	require.Error(t, err)

	assert.Contains(t, err.Error(), `panic in shutdown task "redis bridge": nil subscription`)
	assert.Equal(t, []string{"http server", "postgres"}, j.names())
}

//nolint:paralleltest // shared queue
func TestShutdown_StopsWhenDeadlinePasses(t *testing.T) {
	fresh(t)

	var j journal

	Add("postgres", j.task("postgres", nil))
	Add("event hub", j.task("event hub", nil))
	Add("http server", func(ctx context.Context) error {
		<-ctx.Done()

		return nil
	})

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), `before "event hub"`)
	assert.Empty(t, j.names())
}

//nolint:paralleltest // shared queue
func TestAdd_IgnoredOnceShutdownStarted(t *testing.T) {
	fresh(t)

	var j journal

	draining := make(chan struct{})
	release := make(chan struct{})

	Add("postgres", j.task("postgres", nil))
	Add("http server", func(context.Context) error {
		close(draining)
		<-release

		return nil
	})

	done := make(chan error, 1)

	go func() { done <- Shutdown(t.Context()) }()

	<-draining
	Add("late worker", j.task("late worker", nil))
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not finish")
	}

	assert.Equal(t, []string{"postgres"}, j.names())

	require.NoError(t, Shutdown(t.Context()))
	assert.Equal(t, []string{"postgres"}, j.names())
}
