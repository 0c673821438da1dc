package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{" disable_region_state", ""})

	t.Run("normalizes flags", func(t *testing.T) {
		require.Len(t, f, 1)
		require.True(t, f.IsSet(FlagDisableRegionState))
		require.False(t, f.IsSet(FlagDisableNodeInspection))
	})

	t.Run("run if enabled", func(t *testing.T) {
		var runRegionState bool
		f.IfSet(FlagDisableRegionState, func() {
			runRegionState = true
		})
		require.True(t, runRegionState)

		var runNodeInspection bool
		f.IfSet(FlagDisableNodeInspection, func() {
			runNodeInspection = true
		})
		require.False(t, runNodeInspection)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runRegionState bool
		f.IfNotSet(FlagDisableRegionState, func() {
			runRegionState = true
		})
		require.False(t, runRegionState)

		var runNodeInspection bool
		f.IfNotSet(FlagDisableNodeInspection, func() {
			runNodeInspection = true
		})
		require.True(t, runNodeInspection)
	})

	t.Run("nil flags", func(t *testing.T) {
		var nilFlags FeatureFlag
		require.False(t, nilFlags.IsSet(FlagDisableRegionState))
	})
}
