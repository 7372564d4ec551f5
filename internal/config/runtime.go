package config

import (
	"os"
	"path/filepath"
	"strings"
)

// RuntimeMode represents the execution environment
type RuntimeMode string

const (
	// DockerMode indicates running inside a container
	DockerMode RuntimeMode = "docker"
	// NativeMode indicates running on the host system
	NativeMode RuntimeMode = "native"
)

// RuntimeConfig holds the environment-dependent defaults
type RuntimeConfig struct {
	Mode RuntimeMode
	// DefaultListen is the server address used when server.listen is unset.
	DefaultListen string
	// ConfigDirs are searched for aira.yaml, in order.
	ConfigDirs []string
}

var (
	// Runtime is the detected runtime configuration
	Runtime *RuntimeConfig
)

func init() {
	Runtime = DetectRuntime()
}

// DetectRuntime determines the current runtime environment
func DetectRuntime() *RuntimeConfig {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
	}
	return newRuntime(detectMode(), homeDir)
}

func newRuntime(mode RuntimeMode, homeDir string) *RuntimeConfig {
	rc := &RuntimeConfig{Mode: mode}

	switch mode {
	case DockerMode:
		// Containers publish the port, so bind every interface.
		rc.DefaultListen = "0.0.0.0:8080"
		rc.ConfigDirs = []string{".", "/etc/aira"}

	case NativeMode:
		rc.DefaultListen = "127.0.0.1:8080"
		rc.ConfigDirs = []string{"."}
		if homeDir != "" {
			rc.ConfigDirs = append(rc.ConfigDirs, filepath.Join(homeDir, ".aira"))
		}
		rc.ConfigDirs = append(rc.ConfigDirs, "/etc/aira")
	}

	return rc
}

// detectMode determines if we're running in Docker or natively
func detectMode() RuntimeMode {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return DockerMode
	}

	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		if strings.Contains(string(data), "docker") || strings.Contains(string(data), "containerd") {
			return DockerMode
		}
	}

	if os.Getenv("AIRA_CONTAINER") == "true" {
		return DockerMode
	}

	return NativeMode
}

// IsDocker returns true if running in Docker mode
func (rc *RuntimeConfig) IsDocker() bool {
	return rc.Mode == DockerMode
}

// IsNative returns true if running in Native mode
func (rc *RuntimeConfig) IsNative() bool {
	return rc.Mode == NativeMode
}
