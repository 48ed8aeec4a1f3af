// Package shutdown coordinates graceful shutdown of server components.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is the default graceful shutdown timeout.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when components did not stop before the deadline.
var ErrTimeout = errors.New("shutdown timeout exceeded")

// Component represents a component that can be gracefully shut down.
type Component interface {
	// Name returns the component name for logging.
	Name() string
	// Shutdown gracefully shuts down the component.
	// It should return within the given context deadline.
	Shutdown(ctx context.Context) error
}

// Coordinator stops registered components in reverse registration order,
// one at a time, so the HTTP server drains before the store it uses closes.
type Coordinator struct {
	mu         sync.Mutex
	components []Component
	timeout    time.Duration
	logger     *slog.Logger
	once       sync.Once
	err        error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout sets the shutdown timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a component. Components are shut down LIFO.
func (c *Coordinator) Register(component Component) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
	c.logger.Debug("registered shutdown component", "name", component.Name())
}

// Shutdown stops every component within the configured timeout. Later calls
// return the first call's result. Component errors are joined; ErrTimeout is
// included when the deadline passed.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.shutdown(ctx)
	})
	return c.err
}

func (c *Coordinator) shutdown(parent context.Context) error {
	c.logger.Info("initiating graceful shutdown", "timeout", c.timeout)

	ctx, cancel := context.WithTimeout(parent, c.timeout)
	defer cancel()

	c.mu.Lock()
	components := make([]Component, len(c.components))
	copy(components, c.components)
	c.mu.Unlock()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]
		if ctx.Err() != nil {
			c.logger.Warn("skipping component, shutdown deadline passed", "name", comp.Name())
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), ErrTimeout))
			continue
		}

		c.logger.Info("shutting down component", "name", comp.Name())
		if err := comp.Shutdown(ctx); err != nil {
			c.logger.Error("component shutdown error", "name", comp.Name(), "error", err)
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", comp.Name(), err))
			continue
		}
		c.logger.Info("component shutdown complete", "name", comp.Name())
	}

	if len(errs) == 0 {
		c.logger.Info("all components shut down successfully")
		return nil
	}
	return errors.Join(errs...)
}
