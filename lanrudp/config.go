package lanrudp

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gamevidea/lanrudp/internal/protocol"
)

// Config enumerates every option named in spec.md §6. Grounded on
// HimbeerserverDE-multiserver/config.go's LoadConfig, which reads a whole
// YAML file and unmarshals it with gopkg.in/yaml.v2; generalized here from
// that repo's untyped map[interface{}]interface{} into a typed struct, since
// this is a library meant to be constructed directly as often as loaded from
// a file on disk.
type Config struct {
	Username               string        `yaml:"username"`
	Color                  Color         `yaml:"color"`
	ReconnectAfterRecompile bool         `yaml:"reconnect_after_recompile"`

	Port          int `yaml:"port"`
	DiscoveryPort int `yaml:"discovery_port"`

	ServerConnectionTimeout time.Duration `yaml:"server_connection_timeout"`
	ServerHeartbeatDelay    time.Duration `yaml:"server_heartbeat_delay"`
	ServerDiscoveryTimeout  time.Duration `yaml:"server_discovery_timeout"`

	MaxResendReliablePackets int           `yaml:"max_resend_reliable_packets"`
	RTT                      time.Duration `yaml:"rtt"`

	MTU int `yaml:"mtu"`

	MaxClients      int  `yaml:"max_clients"`
	AllowVirtualIPs bool `yaml:"allow_virtual_ips"`

	Debug bool `yaml:"debug"`
}

// Color is an RGBA32 display color, as named in spec.md §3/§6.
type Color struct {
	R uint8 `yaml:"r"`
	G uint8 `yaml:"g"`
	B uint8 `yaml:"b"`
	A uint8 `yaml:"a"`
}

// DefaultConfig returns a Config with every option at the default named in
// spec.md §6, leaving Username, Color and the two ports for the caller to
// set.
func DefaultConfig() Config {
	return Config{
		ServerConnectionTimeout:  protocol.DefaultServerTimeout,
		ServerHeartbeatDelay:     protocol.DefaultHeartbeatDelay,
		ServerDiscoveryTimeout:   protocol.DefaultDiscoveryTimeout,
		MaxResendReliablePackets: protocol.DefaultMaxResendPackets,
		RTT:                      protocol.DefaultRTT,
		MTU:                      protocol.DefaultMTU,
		MaxClients:               protocol.DefaultMaxClients,
	}
}

// LoadConfigFile reads path, applies defaults for every zero-value field,
// and validates the result.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.ServerConnectionTimeout == 0 {
		c.ServerConnectionTimeout = d.ServerConnectionTimeout
	}
	if c.ServerHeartbeatDelay == 0 {
		c.ServerHeartbeatDelay = d.ServerHeartbeatDelay
	}
	if c.ServerDiscoveryTimeout == 0 {
		c.ServerDiscoveryTimeout = d.ServerDiscoveryTimeout
	}
	if c.MaxResendReliablePackets == 0 {
		c.MaxResendReliablePackets = d.MaxResendReliablePackets
	}
	if c.RTT == 0 {
		c.RTT = d.RTT
	}
	if c.MTU == 0 {
		c.MTU = d.MTU
	}
	if c.MaxClients == 0 {
		c.MaxClients = d.MaxClients
	}
}

// Validate rejects a max_clients outside [1, protocol.MaxPeers]. Username is
// checked separately by Connect, since a server Config carries no
// username of its own.
func (c *Config) Validate() error {
	if c.MaxClients <= 0 || c.MaxClients > protocol.MaxPeers {
		return ErrCapacityExceeded
	}
	return nil
}

func validateASCIIName(name string) error {
	if len(name) == 0 || len(name) > protocol.DefaultUsernameMaxBytes {
		return ErrInvalidUsername
	}
	for i := 0; i < len(name); i++ {
		if name[i] > 127 {
			return ErrInvalidUsername
		}
	}
	return nil
}
