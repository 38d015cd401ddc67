package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zsiec/udpreplay/internal/config"
	"github.com/zsiec/udpreplay/internal/replay"
)

func testConfig() *config.Config {
	return &config.Config{
		Socket: config.SocketConfig{IPAddress: "127.0.0.1", Port: 5555, Frequency: 100},
		Data:   config.DataConfig{Path: "data.csv", Delimiter: "\t", Header: 1, Type: "double", Length: 0},
	}
}

func TestEscapeDelimiter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"\t", `\t`},
		{"\n", `\n`},
		{",", ","},
		{";", ";"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EscapeDelimiter(tt.in))
	}
}

func TestRenderConfig(t *testing.T) {
	out := RenderConfig(testConfig(), "replay.json")

	assert.Contains(t, out, "127.0.0.1:5555")
	assert.Contains(t, out, "100Hz")
	assert.Contains(t, out, "data.csv")
	assert.Contains(t, out, "vector of double of dynamic elements")
	assert.Contains(t, out, `"\t"`)
	assert.Contains(t, out, "1 initial lines to skip")
	assert.Contains(t, out, "replay.json")
}

func TestRenderConfigFixedLength(t *testing.T) {
	cfg := testConfig()
	cfg.Socket.IPAddress = "::1"
	cfg.Data.Length = 6
	cfg.Data.Type = "float"

	out := RenderConfig(cfg, "")
	assert.Contains(t, out, "[::1]:5555")
	assert.Contains(t, out, "vector of float of 6 elements")
	assert.NotContains(t, out, "config")
}

func TestRenderStats(t *testing.T) {
	stats := replay.Stats{
		Records:    10,
		Sent:       9,
		Skipped:    1,
		SendErrors: 0,
		Bytes:      2048,
		Elapsed:    100 * time.Millisecond,
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"completed", nil, "All data sent"},
		{"interrupted", context.Canceled, "Interrupted"},
		{"failed", errors.New("line 3, field 2: cannot parse"), "Failed: line 3, field 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RenderStats(stats, tt.err)
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "2.0 KiB")
			assert.Contains(t, out, "100.000Hz")
		})
	}
}
