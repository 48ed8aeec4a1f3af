package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) component(name string, err error) Component {
	return NewFuncComponent(name, func(context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return err
	})
}

func TestShutdownRunsInReverseOrder(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator()
	c.Register(rec.component("store", nil))
	c.Register(rec.component("http", nil))

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "store"}, rec.order)
}

func TestShutdownJoinsErrorsAndContinues(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("boom")
	c := NewCoordinator()
	c.Register(rec.component("store", nil))
	c.Register(rec.component("http", boom))

	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"http", "store"}, rec.order)
}

func TestShutdownOnlyOnce(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator()
	c.Register(rec.component("store", nil))

	require.NoError(t, c.Shutdown(context.Background()))
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Len(t, rec.order, 1)
}

func TestShutdownTimeout(t *testing.T) {
	rec := &recorder{}
	c := NewCoordinator(WithTimeout(20 * time.Millisecond))
	c.Register(rec.component("store", nil))
	c.Register(NewFuncComponent("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Empty(t, rec.order, "components after the deadline are skipped")
}

type closer struct{ closed bool }

func (c *closer) Close() error { c.closed = true; return nil }

func TestCloserComponent(t *testing.T) {
	cl := &closer{}
	comp := NewCloserComponent("store", cl)
	assert.Equal(t, "store", comp.Name())
	require.NoError(t, comp.Shutdown(context.Background()))
	assert.True(t, cl.closed)
}
