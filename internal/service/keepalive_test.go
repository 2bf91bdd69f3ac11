package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKeepAlive(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, 5, 17, 9, 59, 59, 0, time.Local)
	k := newKeepAlive(time.Hour, base)

	require.False(t, k.due(base.Add(500*time.Millisecond)))
	require.True(t, k.due(base.Add(time.Second)), "10:00:00 starts a new hour")
	require.False(t, k.due(base.Add(2*time.Second)))
	require.False(t, k.due(base.Add(59*time.Minute)))
	require.True(t, k.due(base.Add(time.Hour+time.Second)))

	t.Run("midnight", func(t *testing.T) {
		late := time.Date(2024, 5, 17, 23, 59, 59, 0, time.Local)
		k := newKeepAlive(time.Hour, late)
		require.True(t, k.due(late.Add(2*time.Second)))
	})

	t.Run("disabled", func(t *testing.T) {
		k := newKeepAlive(0, base)
		require.False(t, k.due(base.Add(time.Hour)))
	})
}
