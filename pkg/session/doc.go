/*
Package session runs step simulations that outlive a single request.

A Manager keeps each session (definition plus simulation trace) in a
ports.SessionStore and rebuilds the simulator around it for every operation.
Operations on one session are serialized with reference counted local locks
and, when several replicas share a store, an optional distributed lock.

Conversions are slow collaborators: Convert reads the session, calls the
converter without holding the lock and applies the result only if the run it
was computed for is still current.
*/
package session
