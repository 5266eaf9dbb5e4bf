package runlock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalLockerIsExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()

	token, ok, err := l.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "held lock must not be granted twice")

	require.NoError(t, l.Release(ctx, "run", "someone-else"))
	_, ok, _ = l.TryLock(ctx, "run", time.Minute)
	assert.False(t, ok, "release with a foreign token is ignored")

	require.NoError(t, l.Release(ctx, "run", token))
	_, ok, err = l.TryLock(ctx, "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLockerExpires(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	_, ok, err := l.TryLock(context.Background(), "run", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = l.TryLock(context.Background(), "run", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerArgs(t *testing.T) {
	l := NewLocalLocker()
	_, _, err := l.TryLock(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, _, err = l.TryLock(context.Background(), "run", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestNewLockerFallsBack(t *testing.T) {
	_, ok := NewLocker(nil, zap.NewNop()).(*LocalLocker)
	assert.True(t, ok)
}
