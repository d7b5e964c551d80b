/*
Package domain contains the core models of the automata engine.

It defines the automaton itself, the raw text a user supplies to build one, and
the trace produced while simulating it. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Definition: raw comma/line separated text fields, not yet validated.
  - Automaton: a validated DFA or NFA. Its TransitionTable is a tagged variant,
    either DFATable or NFATable, selected when it is built.
  - StateSet: the configuration of a run. DFA configurations are singletons.
  - Simulation: the step-by-step trace (position, current set, snapshots).
  - Document: the structured shape exchanged with conversion backends.
  - HistoryEntry: a completed computation kept by a bounded recorder.
*/
package domain
