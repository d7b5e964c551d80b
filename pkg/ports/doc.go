/*
Package ports defines the driven ports (interfaces) of the automata engine.

These interfaces decouple the simulator and session manager from external
implementations, so the same core works with in-memory, file and redis
storage, and with local or remote conversion backends.

# Key Interfaces

  - SessionStore: persists and loads step-by-step sessions.
  - DistributedLocker: coordinates session access across replicas.
  - HistoryRecorder: bounded log of completed computations.
  - Converter: NFA to DFA, minimization and regex to NFA.
  - Catalog: ready-made example definitions.
*/
package ports
