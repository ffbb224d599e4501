package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareTimestamp_CommittedOrdering(t *testing.T) {
	assert.Equal(t, -1, CompareTimestamp(5, 10, 0))
	assert.Equal(t, 0, CompareTimestamp(10, 10, 0))
	assert.Equal(t, 1, CompareTimestamp(15, 10, 0))
}

func TestCompareTimestamp_PendingOwnTransactionIsVisible(t *testing.T) {
	ts := Pending(42)
	assert.Equal(t, -1, CompareTimestamp(ts, 100, 42))
}

func TestCompareTimestamp_PendingOtherTransactionIsInvisible(t *testing.T) {
	ts := Pending(42)
	assert.Equal(t, 1, CompareTimestamp(ts, 100, 7))
}

func TestPending_RoundTrips(t *testing.T) {
	ts := Pending(99)
	assert.True(t, ts.IsPending())
	assert.False(t, Timestamp(5).IsPending())
}
