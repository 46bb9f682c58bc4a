// Package queue owns the ordered track list, the cursor and the decision of
// what plays next, growing the queue with extension searches when it runs out.
package queue

// State represents the queue controller state.
type State int

const (
	StateEmpty     State = iota // No tracks; waiting for a command
	StateSeeding                // Initial search for a command in flight
	StatePlaying                // Cursor points at the loaded track
	StateExtending              // Queue exhausted; extension search in flight or pending retry
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateSeeding:
		return "seeding"
	case StatePlaying:
		return "playing"
	case StateExtending:
		return "extending"
	default:
		return "unknown"
	}
}

// QueryContext is created for every voice command and replaced by the next.
type QueryContext struct {
	Utterance    string   `json:"utterance"`
	Variations   []string `json:"variations"`
	AutoContinue bool     `json:"autoContinue"`
	Generation   uint64   `json:"generation"`
}
