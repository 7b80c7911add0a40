package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	blob := []byte(`
id: 99
link: udp
udp:
  interface: eth0
  port_base: 7500
discovery:
  spdp_interval: 250ms
durability:
  path: /tmp/dds
`)
	cfg, err := Parse(3, blob)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cfg.ID)
	assert.Equal(t, LinkUDP, cfg.Link)
	assert.Equal(t, "eth0", cfg.UDP.Interface)
	assert.Equal(t, uint32(7500), cfg.UDP.PortBase)
	assert.Equal(t, uint32(250), cfg.UDP.DomainGain, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Discovery.SPDPInterval.Std())
	assert.Equal(t, "/tmp/dds", cfg.Durability.Path)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(7, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Equal(Default(7)))
	assert.False(t, cfg.Equal(Default(8)))
}

func TestParseErrors(t *testing.T) {
	cases := []struct{ blob string }{
		{"link: carrier-pigeon"},
		{"udp: {multicast_group: 10.0.0.1}"},
		{"discovery: {spdp_interval: soon}"},
		{"timing: {tick: 0s}"},
		{"id: [nope"},
	}

	for i, c := range cases {
		_, err := Parse(0, []byte(c.blob))
		assert.Error(t, err, "[%d] %s", i, c.blob)
	}

	_, err := Parse(232, []byte("{link: udp, udp: {domain_gain: 1000}}"))
	assert.Error(t, err, "port mapping must stay below 65536")
	_, err = Parse(232, []byte("link: udp"))
	assert.NoError(t, err)
	_, err = Parse(1000, nil)
	assert.NoError(t, err, "loopback domains have no port mapping")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dds.yaml")

	cfg, err := Load(4, path)
	require.NoError(t, err)
	assert.True(t, cfg.Equal(Default(4)), "missing file gives defaults")

	cfg.Link = LinkUDP
	cfg.Timing.Tick = Duration(time.Second)
	require.NoError(t, Save(path, cfg))

	got, err := Load(4, path)
	require.NoError(t, err)
	assert.True(t, got.Equal(cfg))
}
