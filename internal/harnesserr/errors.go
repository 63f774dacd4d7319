// Package harnesserr defines the harness controller's error taxonomy. This
// is the richer, authoritative kind set: InvalidRequest, Memory, Chat,
// Validation, HealthCheck, NotReady. An earlier narrower variant with only
// InvalidRequest and Memory exists in the reference material but was a
// vestigial iteration and is not implemented here.
package harnesserr

import (
	"fmt"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindMemory         Kind = "memory"
	KindChat           Kind = "chat"
	KindValidation     Kind = "validation"
	KindHealthCheck    Kind = "health_check"
	KindNotReady       Kind = "not_ready"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func InvalidRequest(message string) *Error { return &Error{Kind: KindInvalidRequest, Message: message} }
func Memory(message string) *Error         { return &Error{Kind: KindMemory, Message: message} }
func Chat(message string) *Error           { return &Error{Kind: KindChat, Message: message} }
func Validation(message string) *Error     { return &Error{Kind: KindValidation, Message: message} }
func HealthCheck(message string) *Error    { return &Error{Kind: KindHealthCheck, Message: message} }
func NotReady(message string) *Error       { return &Error{Kind: KindNotReady, Message: message} }

// FromMemoryError converts a store-layer error raised directly against a
// MemoryBackend (outside the chat engine) into a harness error.
func FromMemoryError(err *storeerr.Error) *Error {
	return &Error{Kind: KindMemory, Message: err.Error(), Cause: err}
}

// FromChatError converts a chat-engine error into a harness error.
func FromChatError(err *chaterr.Error) *Error {
	return &Error{Kind: KindChat, Message: err.Error(), Cause: err}
}
