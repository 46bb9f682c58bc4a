// Package playback binds the queue's current track to the playback engine,
// handles engine lifecycle events and recovers from stuck loads and errors.
package playback

import "strings"

// State represents the playback session state.
type State int

const (
	StateIdle    State = iota // No track loaded
	StateLoading              // Track requested, engine has not started playing it
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
	StateEnded                // Track finished playing
	StateErrored              // Engine reported an error for the track
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// EngineState is a state reported by the playback engine.
// Values follow the YouTube IFrame player.
type EngineState int

const (
	EngineUnstarted EngineState = -1
	EngineEnded     EngineState = 0
	EnginePlaying   EngineState = 1
	EnginePaused    EngineState = 2
	EngineBuffering EngineState = 3
	EngineCued      EngineState = 5
)

// String returns the string representation of the engine state.
func (s EngineState) String() string {
	switch s {
	case EngineUnstarted:
		return "unstarted"
	case EngineEnded:
		return "ended"
	case EnginePlaying:
		return "playing"
	case EnginePaused:
		return "paused"
	case EngineBuffering:
		return "buffering"
	case EngineCued:
		return "cued"
	default:
		return "unknown"
	}
}

// ParseEngineState parses a state name as sent by a remote engine.
func ParseEngineState(s string) (EngineState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unstarted":
		return EngineUnstarted, true
	case "ended":
		return EngineEnded, true
	case "playing":
		return EnginePlaying, true
	case "paused":
		return EnginePaused, true
	case "buffering":
		return EngineBuffering, true
	case "cued":
		return EngineCued, true
	default:
		return EngineUnstarted, false
	}
}
