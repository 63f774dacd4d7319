// Package chaterr defines the chat engine's error taxonomy: a base kind plus
// a phase tag recording which stage of the turn loop produced the failure.
package chaterr

import (
	"fmt"

	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindProvider       Kind = "provider"
	KindStore          Kind = "store"
	KindTooling        Kind = "tooling"
)

// Phase records which stage of RunTurn/StreamTurn produced the error.
// Phase tagging is additive: it never changes Kind.
type Phase string

const (
	PhaseRequestValidation Phase = "request_validation"
	PhaseProvider          Phase = "provider"
	PhaseStreaming         Phase = "streaming"
	PhaseTooling           Phase = "tooling"
	PhaseStorage           Phase = "storage"
)

type Error struct {
	Kind    Kind
	Message string
	Phase   Phase
	Cause   error
}

func (e *Error) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Phase, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithPhase returns a copy of e tagged with the given phase.
func (e *Error) WithPhase(phase Phase) *Error {
	c := *e
	c.Phase = phase
	return &c
}

func InvalidRequest(message string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message, Phase: PhaseRequestValidation}
}

func Store(message string) *Error {
	return &Error{Kind: KindStore, Message: message}
}

// FromProviderError converts a provider-layer error into a chat error tagged
// with the provider phase.
func FromProviderError(err *providererr.Error) *Error {
	return &Error{Kind: KindProvider, Message: err.Error(), Phase: PhaseProvider, Cause: err}
}

// FromToolError converts a tool-layer error into a chat error tagged with
// the tooling phase.
func FromToolError(err *toolerr.Error) *Error {
	return &Error{Kind: KindTooling, Message: err.Error(), Phase: PhaseTooling, Cause: err}
}

// FromStoreError converts a memory/store error into a chat error tagged with
// the storage phase.
func FromStoreError(err *storeerr.Error) *Error {
	return &Error{Kind: KindStore, Message: err.Error(), Phase: PhaseStorage, Cause: err}
}
