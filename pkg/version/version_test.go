package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	// When: reading build info
	info := Info()

	// Then: runtime fields come from the running binary
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "vodsearch version "+Version, Short())
}

func TestString(t *testing.T) {
	str := String()
	assert.True(t, strings.HasPrefix(str, "vodsearch version "))
	assert.Contains(t, str, "git commit:")
	assert.Contains(t, str, runtime.GOOS+"/"+runtime.GOARCH)
}
