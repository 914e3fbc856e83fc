package scrape

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultConstructors(t *testing.T) {
	ok := OK([]Listing{{Platform: PlatformStubHub, PricePerTicket: 100}})
	assert.Equal(t, StatusOK, ok.Status)
	assert.Len(t, ok.Listings, 1)

	// OK with nothing in it is indistinguishable from Empty
	assert.Equal(t, StatusEmpty, OK(nil).Status)

	empty := Empty()
	assert.Equal(t, StatusEmpty, empty.Status)
	assert.Empty(t, empty.Listings)

	blockErr := errors.New("403")
	blocked := Blocked(blockErr)
	assert.Equal(t, StatusBlocked, blocked.Status)
	assert.ErrorIs(t, blocked.Err, blockErr)

	failed := Failed(errors.New("timeout"))
	assert.Equal(t, StatusError, failed.Status)
	assert.Error(t, failed.Err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "empty", StatusEmpty.String())
	assert.Equal(t, "blocked", StatusBlocked.String())
	assert.Equal(t, "error", StatusError.String())
}
