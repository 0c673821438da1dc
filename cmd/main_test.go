package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	newConfig := func() config {
		return config{
			PublicEndpoint: "http://localhost:4000",
			RegionSize:     32,
			NodeMinSize:    1,
		}
	}

	t.Run("default config", func(t *testing.T) {
		require.NoError(t, validateConfig(newConfig()))
	})

	t.Run("region size not a power of two", func(t *testing.T) {
		for _, size := range []int{3, 10, 24} {
			conf := newConfig()
			conf.RegionSize = size
			require.NoError(t, validateConfig(conf), size)
		}
	})

	t.Run("invalid region size", func(t *testing.T) {
		conf := newConfig()
		conf.RegionSize = 0
		require.Error(t, validateConfig(conf))
	})

	t.Run("node min size larger than the region", func(t *testing.T) {
		conf := newConfig()
		conf.NodeMinSize = 64
		require.Error(t, validateConfig(conf))
	})

	t.Run("change feed without key", func(t *testing.T) {
		conf := newConfig()
		conf.ChangeFeed.Endpoint = "http://localhost:5000/changes"
		require.Error(t, validateConfig(conf))

		conf.PrivateKey = "0xabc"
		require.NoError(t, validateConfig(conf))
	})

	t.Run("key and key file", func(t *testing.T) {
		conf := newConfig()
		conf.PrivateKey = "0xabc"
		conf.PrivateKeyFile = "key.txt"
		require.Error(t, validateConfig(conf))
	})
}
