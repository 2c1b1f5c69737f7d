package ome_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ome-lang/ome/ome"
)

func TestNewConfigSeedsDefaults(t *testing.T) {
	cfg := ome.NewConfig()
	assert.Equal(t, 1, cfg.GetInt("compiler.optimize"))
	assert.Equal(t, "x86_64", cfg.GetString("compiler.target"))
	assert.False(t, cfg.GetBool("compiler.verbose"))
}

func TestSetGetRoundTrip(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetBool("compiler.verbose", true)
	assert.True(t, cfg.GetBool("compiler.verbose"))
}

func TestGetWrongTypePanics(t *testing.T) {
	cfg := ome.NewConfig()
	assert.Panics(t, func() { cfg.GetBool("compiler.optimize") })
}

func TestDumpThenLoadYAMLRoundTrips(t *testing.T) {
	cfg := ome.NewConfig()
	cfg.SetInt("compiler.optimize", 0)
	cfg.SetString("compiler.target", "arm64")

	data, err := cfg.Dump()
	assert.NoError(t, err)

	loaded := ome.NewConfig()
	assert.NoError(t, loaded.LoadYAML(data))
	assert.Equal(t, 0, loaded.GetInt("compiler.optimize"))
	assert.Equal(t, "arm64", loaded.GetString("compiler.target"))
}
