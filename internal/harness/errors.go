package harness

import (
	"time"

	"github.com/philo-groves/fiddlesticks/internal/chaterr"
	"github.com/philo-groves/fiddlesticks/internal/storeerr"
)

func asStoreError(err error) *storeerr.Error {
	if serr, ok := err.(*storeerr.Error); ok {
		return serr
	}
	return storeerr.StorageWrap("memory backend failure", err)
}

func asChatError(err error) *chaterr.Error {
	if cerr, ok := err.(*chaterr.Error); ok {
		return cerr
	}
	return chaterr.Store(err.Error())
}

func timePtr(t time.Time) *time.Time {
	return &t
}
