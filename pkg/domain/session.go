package domain

import "time"

// Session binds a definition to the simulation running over it, so a run can
// be resumed by another process.
type Session struct {
	ID         string     `json:"id" yaml:"id"`
	Definition Definition `json:"definition" yaml:"definition"`
	Simulation Simulation `json:"simulation" yaml:"simulation"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
	// Sealed holds the encrypted session when the store encrypts at rest.
	// Definition and Simulation are then left mostly empty.
	Sealed []byte `json:"sealed,omitempty" yaml:"sealed,omitempty"`
}
