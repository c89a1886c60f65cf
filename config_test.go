package fedavg_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/absmach/fedavg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[coordinator]
url = "http://coordinator:3000"
timeout = "5s"

[participant]
id = "worker-1"
samples = 250
learning_rate = 0.01
use_cbor = true

[mqtt]
address = "tcp://localhost:1883"
`)

	cfg, err := fedavg.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://coordinator:3000", cfg.Coordinator.URL)
	assert.Equal(t, "worker-1", cfg.Participant.ID)
	assert.Equal(t, 250, cfg.Participant.Samples)
	assert.InDelta(t, 0.01, cfg.Participant.LearningRate, 1e-12)
	assert.True(t, cfg.Participant.UseCBOR)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Address)

	// Keys missing from the file keep their defaults.
	assert.Equal(t, 5, cfg.Participant.Epochs)
	assert.Equal(t, "fedavg", cfg.MQTT.BaseTopic)

	timeout, err := fedavg.ParseDuration(cfg.Coordinator.Timeout)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc    string
		content string
	}{
		{desc: "invalid toml", content: "[coordinator\nurl = 1"},
		{desc: "invalid duration", content: "[participant]\npoll_interval = \"soon\""},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			_, err := fedavg.LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}

	_, err := fedavg.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
