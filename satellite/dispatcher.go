package satellite

import (
	"context"
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/google/uuid"
)

const defaultCallTimeout = 2 * time.Second

// Dispatcher resolves a discipline and performs one bounded call against its
// satellite. Callers only ever see UnknownSatelliteError or UnavailableError.
// There are no retries here: retrying is the caller's policy.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	logger   logger.Logger
}

var _ logger.Loggable = (*Dispatcher)(nil)

func NewDispatcher(r *Registry, timeout time.Duration) *Dispatcher {
	if r == nil {
		panic("registry is mandatory")
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Dispatcher{registry: r, timeout: timeout, logger: &logger.NopLogger{}}
}

// SetLogger sets an optional logger.
func (d *Dispatcher) SetLogger(l logger.Logger) {
	d.logger = logger.OrNop(l)
}

// Registry exposes the registry the dispatcher routes with.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) Summary(ctx context.Context, disciplina string, personID uuid.UUID) (*PlayerSummary, error) {
	return call(ctx, d, disciplina, "summary", func(ctx context.Context, c Client) (*PlayerSummary, error) {
		return c.Summary(ctx, personID)
	})
}

func (d *Dispatcher) Profile(ctx context.Context, disciplina string, personID uuid.UUID) (*PlayerProfile, error) {
	return call(ctx, d, disciplina, "profile", func(ctx context.Context, c Client) (*PlayerProfile, error) {
		return c.Profile(ctx, personID)
	})
}

func (d *Dispatcher) Roster(ctx context.Context, disciplina string, asdID, seasonID uuid.UUID) (*Roster, error) {
	return call(ctx, d, disciplina, "roster", func(ctx context.Context, c Client) (*Roster, error) {
		return c.Roster(ctx, asdID, seasonID)
	})
}

func call[T any](ctx context.Context, d *Dispatcher, disciplina, operation string, fn func(context.Context, Client) (*T, error)) (*T, error) {
	s, ok := d.registry.Resolve(disciplina)
	if !ok {
		return nil, &UnknownSatelliteError{Disciplina: disciplina}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out, err := fn(ctx, s.Client)
	if err == nil && out == nil {
		err = fmt.Errorf("empty %s response", operation)
	}
	if err != nil {
		d.logger.Error(fmt.Sprintf("satellite '%s' %s call failed", s.Definition.Name, operation), err)
		return nil, &UnavailableError{Name: s.Definition.Name, cause: err}
	}
	return out, nil
}
