package types

// Event represents a typed event emitted by the vault engine while applying
// state transitions. Attributes carry flat, stringified payload fields.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
