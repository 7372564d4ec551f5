package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRuntime(t *testing.T) {
	t.Run("docker binds all interfaces", func(t *testing.T) {
		rc := newRuntime(DockerMode, "/home/aira")
		assert.True(t, rc.IsDocker())
		assert.Equal(t, "0.0.0.0:8080", rc.DefaultListen)
		assert.Equal(t, []string{".", "/etc/aira"}, rc.ConfigDirs)
	})

	t.Run("native binds loopback and searches home", func(t *testing.T) {
		rc := newRuntime(NativeMode, "/home/aira")
		assert.True(t, rc.IsNative())
		assert.Equal(t, "127.0.0.1:8080", rc.DefaultListen)
		assert.Equal(t, []string{".", "/home/aira/.aira", "/etc/aira"}, rc.ConfigDirs)
	})

	t.Run("native without home", func(t *testing.T) {
		rc := newRuntime(NativeMode, "")
		assert.Equal(t, []string{".", "/etc/aira"}, rc.ConfigDirs)
	})
}

func TestDetectMode_ContainerEnv(t *testing.T) {
	t.Setenv("AIRA_CONTAINER", "true")
	assert.Equal(t, DockerMode, detectMode())
}
