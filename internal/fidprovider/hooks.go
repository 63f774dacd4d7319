package fidprovider

import (
	"time"

	"github.com/philo-groves/fiddlesticks/internal/providererr"
)

// ProviderOperationHooks observes the retry driver wrapping every provider
// call. All four methods default to no-ops so embedders only implement the
// ones they care about.
type ProviderOperationHooks interface {
	OnAttemptStart(provider ProviderID, attempt int)
	OnRetryScheduled(provider ProviderID, attempt int, delay time.Duration, err *providererr.Error)
	OnSuccess(provider ProviderID, attempts int, elapsed time.Duration)
	OnFailure(provider ProviderID, attempts int, elapsed time.Duration, err *providererr.Error)
}

// NoopProviderOperationHooks implements ProviderOperationHooks with no-ops.
type NoopProviderOperationHooks struct{}

func (NoopProviderOperationHooks) OnAttemptStart(ProviderID, int) {}
func (NoopProviderOperationHooks) OnRetryScheduled(ProviderID, int, time.Duration, *providererr.Error) {
}
func (NoopProviderOperationHooks) OnSuccess(ProviderID, int, time.Duration) {}
func (NoopProviderOperationHooks) OnFailure(ProviderID, int, time.Duration, *providererr.Error) {}
