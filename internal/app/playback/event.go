package playback

import "github.com/osa030/voxbox/internal/infra/config"

// Reason explains why the session asked the queue to advance.
type Reason int

const (
	ReasonEnded Reason = iota // Track finished playing
	ReasonError               // Engine reported an error
	ReasonStuck               // Track did not start before the watchdog fired
)

// String returns the string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonEnded:
		return "ended"
	case ReasonError:
		return "error"
	case ReasonStuck:
		return "stuck"
	default:
		return "unknown"
	}
}

// Engine error codes reported by the YouTube IFrame player.
const (
	ErrCodeInvalidParam  = 2
	ErrCodeHTML5         = 5
	ErrCodeNotFound      = 100
	ErrCodeNotEmbeddable = 101
	ErrCodeEmbedBlocked  = 150
)

// ErrorKind is a best-effort classification of an engine error.
type ErrorKind int

const (
	ErrorGeneric     ErrorKind = iota
	ErrorNotFound              // invalid request or unknown id
	ErrorCannotPlay            // engine cannot play the content
	ErrorUnavailable           // removed or private
	ErrorNotPlayable           // embedding disallowed on this device
)

// Classify maps an engine error code to a kind.
func Classify(code int) ErrorKind {
	switch code {
	case ErrCodeInvalidParam:
		return ErrorNotFound
	case ErrCodeHTML5:
		return ErrorCannotPlay
	case ErrCodeNotFound:
		return ErrorUnavailable
	case ErrCodeNotEmbeddable, ErrCodeEmbedBlocked:
		return ErrorNotPlayable
	default:
		return ErrorGeneric
	}
}

// Message returns the status text for an error kind.
func (k ErrorKind) Message(m config.MessagesConfig) string {
	switch k {
	case ErrorNotFound:
		return m.ErrNotFound
	case ErrorCannotPlay:
		return m.ErrCannotPlay
	case ErrorUnavailable:
		return m.ErrUnavailable
	case ErrorNotPlayable:
		return m.ErrNotEmbedable
	default:
		return m.ErrPlayback
	}
}
