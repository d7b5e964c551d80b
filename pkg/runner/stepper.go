package runner

import (
	"context"

	"github.com/aretw0/automata/internal/runtime"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/session"
)

// Stepper is the simulation a Runner drives.
type Stepper interface {
	Current(ctx context.Context) (domain.Simulation, error)
	Forward(ctx context.Context) (domain.Simulation, error)
	Back(ctx context.Context) (domain.Simulation, error)
	Reset(ctx context.Context) (domain.Simulation, error)
}

// Local adapts an in-process simulator.
func Local(sim *runtime.Simulator) Stepper {
	return localStepper{sim: sim}
}

type localStepper struct {
	sim *runtime.Simulator
}

func (l localStepper) Current(context.Context) (domain.Simulation, error) {
	return l.sim.Snapshot(), nil
}

func (l localStepper) Forward(ctx context.Context) (domain.Simulation, error) {
	return l.sim.Forward(ctx), nil
}

func (l localStepper) Back(ctx context.Context) (domain.Simulation, error) {
	return l.sim.Back(ctx), nil
}

func (l localStepper) Reset(ctx context.Context) (domain.Simulation, error) {
	return l.sim.Reset(ctx), nil
}

// Session drives a stored run, so it can be resumed by another process or
// watched over HTTP while stepping in a terminal.
func Session(mgr *session.Manager, sessionID string) Stepper {
	return sessionStepper{mgr: mgr, id: sessionID}
}

type sessionStepper struct {
	mgr *session.Manager
	id  string
}

func (s sessionStepper) Current(ctx context.Context) (domain.Simulation, error) {
	return simulation(s.mgr.Load(ctx, s.id))
}

func (s sessionStepper) Forward(ctx context.Context) (domain.Simulation, error) {
	return simulation(s.mgr.Forward(ctx, s.id))
}

func (s sessionStepper) Back(ctx context.Context) (domain.Simulation, error) {
	return simulation(s.mgr.Back(ctx, s.id))
}

func (s sessionStepper) Reset(ctx context.Context) (domain.Simulation, error) {
	return simulation(s.mgr.Reset(ctx, s.id))
}

func simulation(sess *domain.Session, err error) (domain.Simulation, error) {
	if err != nil {
		return domain.Simulation{}, err
	}
	return sess.Simulation, nil
}
