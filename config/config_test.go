package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/satellite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromDefaults(t *testing.T) {
	c, err := LoadFrom(map[string]string{"DATABASE_URL": "postgres://localhost/asd"})
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.False(t, c.LogConsole)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, "json", c.EventCodec)
	assert.Equal(t, 2*time.Second, c.SatelliteTimeout)
	assert.Equal(t, Kafka{Brokers: "localhost:9092", GroupID: "asd-platform", PollTimeout: 500 * time.Millisecond, RetryBackoff: time.Second}, c.Kafka)
	assert.Equal(t, Sweep{Enabled: true, Window: 30 * 24 * time.Hour, Interval: time.Hour, BatchSize: 100}, c.Sweep)
	assert.Equal(t, Relay{Enabled: true, PollingInterval: 3 * time.Second, BatchSize: 100, MaxPerInterval: -1}, c.Relay)
	assert.Empty(t, c.Satellites)
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "satellites.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
satellites:
  - disciplina: scacchi
    name: chess
    baseUrl: http://chess:8080
  - disciplina: tennis
    baseUrl: http://tennis:8080
`), 0o600))

	testcases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, c *Config)
	}{
		{
			name: "full configuration",
			env: map[string]string{
				"DATABASE_URL":           "postgres://localhost/asd",
				"EVENT_CODEC":            "msgpack",
				"SATELLITES_FILE":        file,
				"KAFKA_BROKERS":          "kafka-1:9092,kafka-2:9092",
				"BACKEND_MEMBERS_URL":    "http://members",
				"BACKEND_TIMEOUT":        "750ms",
				"SWEEP_WINDOW":           "240h",
				"SWEEP_ENABLED":          "false",
				"RELAY_POLLING_INTERVAL": "10s",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "msgpack", c.EventCodec)
				assert.Equal(t, "kafka-1:9092,kafka-2:9092", c.Kafka.Brokers)
				assert.Equal(t, "http://members", c.Backends.MembersURL)
				assert.Equal(t, 750*time.Millisecond, c.Backends.Timeout)
				assert.Equal(t, 10*24*time.Hour, c.Sweep.Window)
				assert.False(t, c.Sweep.Enabled)
				assert.Equal(t, 10*time.Second, c.Relay.PollingInterval)
				assert.Equal(t, []satellite.Definition{
					{Disciplina: "scacchi", Name: "chess", BaseURL: "http://chess:8080"},
					{Disciplina: "tennis", BaseURL: "http://tennis:8080"},
				}, c.Satellites)
			},
		},
		{
			name:    "database url is required",
			env:     map[string]string{},
			wantErr: true,
		},
		{
			name:    "unsupported codec",
			env:     map[string]string{"DATABASE_URL": "postgres://localhost/asd", "EVENT_CODEC": "xml"},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"DATABASE_URL": "postgres://localhost/asd", "SWEEP_INTERVAL": "hourly"},
			wantErr: true,
		},
		{
			name:    "negative sweep window",
			env:     map[string]string{"DATABASE_URL": "postgres://localhost/asd", "SWEEP_WINDOW": "-1h"},
			wantErr: true,
		},
		{
			name:    "missing satellites file",
			env:     map[string]string{"DATABASE_URL": "postgres://localhost/asd", "SATELLITES_FILE": filepath.Join(dir, "nope.yaml")},
			wantErr: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := LoadFrom(tc.env)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLoadSatellitesMalformed(t *testing.T) {
	file := filepath.Join(t.TempDir(), "satellites.yaml")
	require.NoError(t, os.WriteFile(file, []byte("satellites: {disciplina: ["), 0o600))
	_, err := LoadSatellites(file)
	assert.Error(t, err)
}
