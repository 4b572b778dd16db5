// Package domain contains core concepts of the chat room.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

// Participant is one live connection with a self-declared display
// identity. The identity is not authenticated and not guaranteed unique;
// the connection id is, for the lifetime of the connection.
type Participant struct {
	ConnectionID string
	Identity     string
}
