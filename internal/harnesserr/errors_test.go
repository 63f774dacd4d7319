package harnesserr

import (
	"errors"
	"testing"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

func TestErrorString(t *testing.T) {
	e := NotReady("harness is still loading memory")
	want := "not_ready: harness is still loading memory"
	if e.Error() != want {
		t.Fatalf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"InvalidRequest", InvalidRequest("missing task id"), KindInvalidRequest},
		{"Memory", Memory("backend unreachable"), KindMemory},
		{"Chat", Chat("turn failed"), KindChat},
		{"Validation", Validation("schema mismatch"), KindValidation},
		{"HealthCheck", HealthCheck("ping failed"), KindHealthCheck},
		{"NotReady", NotReady("initializing"), KindNotReady},
	}
	for _, c := range cases {
		if c.err.Kind != c.kind {
			t.Errorf("%s: Kind = %s, want %s", c.name, c.err.Kind, c.kind)
		}
	}
}

func TestFromMemoryError(t *testing.T) {
	se := storeerr.Storage("disk full")
	he := FromMemoryError(se)

	if he.Kind != KindMemory {
		t.Errorf("Kind = %s, want %s", he.Kind, KindMemory)
	}
	if !errors.Is(he, se) {
		t.Error("expected errors.Is to unwrap to the store error")
	}
}

func TestFromChatError(t *testing.T) {
	ce := chaterr.Store("write failed")
	he := FromChatError(ce)

	if he.Kind != KindChat {
		t.Errorf("Kind = %s, want %s", he.Kind, KindChat)
	}
	if !errors.Is(he, ce) {
		t.Error("expected errors.Is to unwrap to the chat error")
	}
}
