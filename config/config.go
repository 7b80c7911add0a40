// Package config provides the domain configuration accepted by raw domain creation.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	LinkLoopback = "loopback"
	LinkUDP      = "udp"
)

// Domain is the configuration of one DDS domain.
type Domain struct {
	ID         uint32           `yaml:"id"`
	Link       string           `yaml:"link"` // "loopback" or "udp"
	UDP        UDPConfig        `yaml:"udp"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Durability DurabilityConfig `yaml:"durability"`
	Timing     TimingConfig     `yaml:"timing"`
}

// UDPConfig holds the RTPS port mapping parameters.
type UDPConfig struct {
	Interface       string `yaml:"interface"`
	MulticastGroup  string `yaml:"multicast_group"`
	PortBase        uint32 `yaml:"port_base"`
	DomainGain      uint32 `yaml:"domain_gain"`
	ParticipantGain uint32 `yaml:"participant_gain"`
	MaxParticipants int    `yaml:"max_participants"`
	MaxMessageSize  int    `yaml:"max_message_size"`
}

// DiscoveryConfig contains participant discovery settings.
type DiscoveryConfig struct {
	SPDPInterval  Duration `yaml:"spdp_interval"`
	LeaseDuration Duration `yaml:"lease_duration"`
}

// DurabilityConfig contains the persistent durability store settings.
type DurabilityConfig struct {
	Path string `yaml:"path"` // empty keeps persistent data in memory
}

// TimingConfig contains the protocol timers.
type TimingConfig struct {
	Tick              Duration `yaml:"tick"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// Duration is a time.Duration written as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the default configuration for a domain.
func Default(domainID uint32) *Domain {
	return &Domain{
		ID:   domainID,
		Link: LinkLoopback,
		UDP: UDPConfig{
			MulticastGroup:  "239.255.0.1",
			PortBase:        7400,
			DomainGain:      250,
			ParticipantGain: 2,
			MaxParticipants: 100,
			MaxMessageSize:  4096,
		},
		Discovery: DiscoveryConfig{
			SPDPInterval:  Duration(time.Second),
			LeaseDuration: Duration(100 * time.Second),
		},
		Timing: TimingConfig{
			Tick:              Duration(10 * time.Millisecond),
			HeartbeatInterval: Duration(100 * time.Millisecond),
		},
	}
}

// Parse reads a YAML blob over the defaults for domainID.
// An empty blob yields the defaults.
func Parse(domainID uint32, blob []byte) (*Domain, error) {
	cfg := Default(domainID)
	if err := yaml.Unmarshal(blob, cfg); err != nil {
		return nil, fmt.Errorf("parse domain config: %w", err)
	}
	// the caller's domain id wins over the blob
	cfg.ID = domainID
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load loads the configuration from a file, returning defaults if it does not exist.
func Load(domainID uint32, path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(domainID), nil
		}
		return nil, err
	}
	return Parse(domainID, data)
}

// Save saves the configuration to a file.
func Save(path string, cfg *Domain) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Domain) Validate() error {
	switch c.Link {
	case LinkLoopback, LinkUDP:
	default:
		return fmt.Errorf("config: unknown link %q", c.Link)
	}
	if ip := net.ParseIP(c.UDP.MulticastGroup); ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("config: %q is not a multicast address", c.UDP.MulticastGroup)
	}
	if c.UDP.PortBase == 0 || c.UDP.DomainGain == 0 {
		return fmt.Errorf("config: port base and domain gain must be non-zero")
	}
	if port := uint64(c.UDP.PortBase) + uint64(c.UDP.DomainGain)*uint64(c.ID) + 11; c.Link == LinkUDP && port > 65535 {
		return fmt.Errorf("config: domain %d maps to port %d, out of range", c.ID, port)
	}
	if c.Timing.Tick <= 0 || c.Timing.HeartbeatInterval <= 0 || c.Discovery.SPDPInterval <= 0 {
		return fmt.Errorf("config: timers must be positive")
	}
	return nil
}

// Equal reports whether two configurations are interchangeable.
func (c *Domain) Equal(o *Domain) bool {
	return *c == *o
}
