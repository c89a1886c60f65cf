package fedavg

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

type Config struct {
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Participant ParticipantConfig `toml:"participant"`
	MQTT        MQTTConfig        `toml:"mqtt"`
}

type CoordinatorConfig struct {
	URL             string `toml:"url"`
	TLSVerification bool   `toml:"tls_verification"`
	Timeout         string `toml:"timeout"`
}

type ParticipantConfig struct {
	ID           string  `toml:"id"`
	Samples      int     `toml:"samples"`
	Noise        float64 `toml:"noise"`
	Seed         uint64  `toml:"seed"`
	Epochs       int     `toml:"epochs"`
	LearningRate float64 `toml:"learning_rate"`
	Rounds       uint64  `toml:"rounds"`
	PollInterval string  `toml:"poll_interval"`
	UseCBOR      bool    `toml:"use_cbor"`
}

type MQTTConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	BaseTopic string `toml:"base_topic"`
}

// DefaultConfig holds the values used for keys the config file leaves out.
func DefaultConfig() Config {
	return Config{
		Coordinator: CoordinatorConfig{
			URL:     "http://localhost:3000",
			Timeout: "30s",
		},
		Participant: ParticipantConfig{
			Samples:      100,
			Noise:        0.1,
			Epochs:       5,
			LearningRate: 0.005,
			Rounds:       10,
			PollInterval: "1s",
		},
		MQTT: MQTTConfig{
			BaseTopic: "fedavg",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.fillDefaults()

	if _, err := ParseDuration(cfg.Coordinator.Timeout); err != nil {
		return nil, fmt.Errorf("invalid coordinator timeout: %w", err)
	}
	if _, err := ParseDuration(cfg.Participant.PollInterval); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	return &cfg, nil
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Coordinator.URL == "" {
		c.Coordinator.URL = def.Coordinator.URL
	}
	if c.Coordinator.Timeout == "" {
		c.Coordinator.Timeout = def.Coordinator.Timeout
	}
	if c.Participant.Samples == 0 {
		c.Participant.Samples = def.Participant.Samples
	}
	if c.Participant.Noise == 0 {
		c.Participant.Noise = def.Participant.Noise
	}
	if c.Participant.Epochs == 0 {
		c.Participant.Epochs = def.Participant.Epochs
	}
	if c.Participant.LearningRate == 0 {
		c.Participant.LearningRate = def.Participant.LearningRate
	}
	if c.Participant.Rounds == 0 {
		c.Participant.Rounds = def.Participant.Rounds
	}
	if c.Participant.PollInterval == "" {
		c.Participant.PollInterval = def.Participant.PollInterval
	}
	if c.MQTT.BaseTopic == "" {
		c.MQTT.BaseTopic = def.MQTT.BaseTopic
	}
}

// ParseDuration parses a config duration. An empty value is zero.
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	return time.ParseDuration(s)
}
