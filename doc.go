/*
Package automata simulates finite automata: deterministic (DFA) and
nondeterministic ones with epsilon moves (NFA).

Definitions are written as plain text fields: comma separated states,
alphabet and accept states, a start state and one transition per line
("state,symbol,next_state"; NFA lines may list several next states separated
by ';' and leave the symbol empty for an epsilon move). The validator turns a
domain.Definition into a domain.Automaton or reports the first broken rule as
a *domain.ValidationError.

# Usage

	eng := automata.New()

	def := domain.Definition{
		Mode:         domain.ModeDFA,
		States:       "q0,q1,q2",
		Alphabet:     "0,1",
		StartState:   "q0",
		AcceptStates: "q2",
		Transitions:  "q0,0,q1\nq0,1,q0\nq1,0,q1\nq1,1,q2\nq2,0,q1\nq2,1,q0",
	}

	// Whole string
	res, err := eng.Process(ctx, def, "", "1001")

	// Step by step
	sim, err := eng.Simulate(ctx, def, "", "1001")
	sim.Forward(ctx)
	sim.Back(ctx)
	sim.Reset(ctx)

Simulations keep a trace of every configuration so Back can undo a step. A
move with no transition is a dead end: the run finishes rejected and the
trace records an empty configuration.

Conversions (subset construction, DFA minimization and regex compilation)
run through a ports.Converter, in process by default or against a remote
backend (pkg/adapters/backend). Long-lived runs shared between requests are
handled by pkg/session.
*/
package automata
