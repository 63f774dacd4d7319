package fidprovider

import "github.com/philo-groves/fiddlesticks/internal/providererr"

func errInvalidRequest(message string) *providererr.Error {
	return providererr.InvalidRequest(message)
}
