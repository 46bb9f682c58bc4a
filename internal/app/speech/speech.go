// Package speech maps speech recognition failures to user messages.
package speech

import (
	"strings"

	"github.com/osa030/voxbox/internal/infra/config"
)

// Code is a speech recognition error code.
type Code string

const (
	CodeNoSpeech         Code = "no-speech"
	CodeNetwork          Code = "network"
	CodeAborted          Code = "aborted"
	CodePermissionDenied Code = "permission-denied"

	// Browser aliases of CodePermissionDenied.
	CodeNotAllowed   Code = "not-allowed"
	CodeAudioCapture Code = "audio-capture"
)

// Normalize lowercases code and folds browser aliases.
func Normalize(code string) Code {
	c := Code(strings.ToLower(strings.TrimSpace(code)))
	switch c {
	case CodeNotAllowed, CodeAudioCapture, "service-not-allowed":
		return CodePermissionDenied
	}
	return c
}

// Message returns the text shown for a recognition error.
// ok is false when nothing should be shown, as for an aborted recognition.
func Message(code string, m config.MessagesConfig) (msg string, ok bool) {
	switch Normalize(code) {
	case CodeAborted:
		return "", false
	case CodeNoSpeech:
		return m.SpeechNoSpeech, true
	case CodeNetwork:
		return m.SpeechNetwork, true
	case CodePermissionDenied:
		return m.SpeechDenied, true
	default:
		return m.SpeechGeneric, true
	}
}
