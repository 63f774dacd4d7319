package fidchat

import "github.com/philo-groves/fiddlesticks/internal/providerretry"

// Policy configures how the chat engine drives a turn: how many tool
// round-trips it will chase before giving up, defaults applied when a turn
// request doesn't override them, and the retry policy wrapping every
// provider call.
type Policy struct {
	MaxToolRoundTrips   int
	DefaultTemperature  *float64
	DefaultMaxTokens    *int
	ProviderRetryPolicy providerretry.Policy
}

// DefaultPolicy matches the reference chat engine's defaults: up to four
// tool round-trips per turn.
func DefaultPolicy() Policy {
	return Policy{
		MaxToolRoundTrips:   4,
		ProviderRetryPolicy: providerretry.DefaultPolicy(),
	}
}
