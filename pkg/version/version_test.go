package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.Regexp(t, semver, Version)
}

func TestString_IncludesBuildInfo(t *testing.T) {
	s := String()
	assert.Contains(t, s, "amanrdf "+Version)
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, runtime.Version())
}

func TestGetInfo_JSON(t *testing.T) {
	// Given the build info
	info := GetInfo()

	// When it is encoded
	raw, err := json.Marshal(info)
	require.NoError(t, err)

	// Then the keys are snake_case and the platform is os/arch
	var m map[string]string
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, m["platform"])
	assert.Equal(t, Version, m["version"])
	assert.Contains(t, m, "go_version")
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "amanrdf/"+Short(), UserAgent())
}
