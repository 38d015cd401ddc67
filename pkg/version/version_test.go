package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.Equal(t, Name, info.Name)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, BuildTime, info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.GitCommit)
}

func TestInfoString(t *testing.T) {
	info := Info{
		Name:      "udpreplay",
		Version:   "1.0.0",
		GitCommit: "abc123",
		BuildTime: "2024-01-01",
		GoVersion: "go1.23",
		Platform:  "linux/amd64",
	}

	str := info.String()
	assert.True(t, strings.HasPrefix(str, "udpreplay 1.0.0"))
	assert.Contains(t, str, "commit: abc123")
	assert.Contains(t, str, "built: 2024-01-01")
	assert.Contains(t, str, "go: go1.23")
	assert.Contains(t, str, "platform: linux/amd64")
}

func TestInfoShort(t *testing.T) {
	info := Info{Name: "udpreplay", Version: "1.0.0"}
	assert.Equal(t, "udpreplay 1.0.0", info.Short())
}
