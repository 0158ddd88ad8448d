package config_test

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/caravelhq/caravel/cmd/caravel/config"
)

func TestIsDefault(t *testing.T) {
	t.Cleanup(viper.Reset)

	viper.Reset()
	for k, v := range config.GetDefault().Map() {
		viper.SetDefault(k, v)
	}

	for k := range config.GetDefault().Map() {
		assert.True(t, config.IsDefault(k), "key %q", k)
	}

	viper.Set("port", 1)
	assert.False(t, config.IsDefault("port"))
}
