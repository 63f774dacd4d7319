package fidchat

import (
	"github.com/philo-groves/fiddlesticks/internal/providererr"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

func asProviderError(err error) *providererr.Error {
	if perr, ok := err.(*providererr.Error); ok {
		return perr
	}
	return providererr.Transport(err.Error(), err)
}

func asToolError(err error) *toolerr.Error {
	if terr, ok := err.(*toolerr.Error); ok {
		return terr
	}
	return toolerr.Execution(err.Error())
}

func wrapStoreErr(err error) *storeerr.Error {
	if serr, ok := err.(*storeerr.Error); ok {
		return serr
	}
	return storeerr.StorageWrap("conversation store failure", err)
}
