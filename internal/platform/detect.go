package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "whisperjson"

type Runtime struct {
	OS   string
	Arch string
}

func CurrentRuntime() Runtime {
	return Runtime{
		OS:   runtime.GOOS,
		Arch: NormalizeArch(runtime.GOARCH),
	}
}

func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Env carries the environment values that decide per-user directories.
type Env struct {
	Home          string
	XDGDataHome   string
	XDGConfigHome string
	AppData       string
	LocalAppData  string
}

func currentEnv() (Env, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Env{}, fmt.Errorf("resolve user home: %w", err)
	}

	return Env{
		Home:          homeDir,
		XDGDataHome:   os.Getenv("XDG_DATA_HOME"),
		XDGConfigHome: os.Getenv("XDG_CONFIG_HOME"),
		AppData:       os.Getenv("APPDATA"),
		LocalAppData:  os.Getenv("LOCALAPPDATA"),
	}, nil
}

func DefaultModelDirFor(goos string, env Env) (string, error) {
	dataDir, err := dataDirFor(goos, env)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "models"), nil
}

func DefaultConfigDirFor(goos string, env Env) (string, error) {
	if env.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if env.XDGConfigHome != "" {
			return filepath.Join(env.XDGConfigHome, appName), nil
		}
		return filepath.Join(env.Home, ".config", appName), nil
	case "darwin":
		return filepath.Join(env.Home, "Library", "Application Support", appName), nil
	case "windows":
		if env.AppData != "" {
			return filepath.Join(env.AppData, appName), nil
		}
		return filepath.Join(env.Home, "AppData", "Roaming", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}

// ResolveModelDir returns override when set, else the per-user default.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	env, err := currentEnv()
	if err != nil {
		return "", err
	}
	return DefaultModelDirFor(runtime.GOOS, env)
}

func ResolveConfigDir() (string, error) {
	env, err := currentEnv()
	if err != nil {
		return "", err
	}
	return DefaultConfigDirFor(runtime.GOOS, env)
}

func dataDirFor(goos string, env Env) (string, error) {
	if env.Home == "" {
		return "", errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		if env.XDGDataHome != "" {
			return filepath.Join(env.XDGDataHome, appName), nil
		}
		return filepath.Join(env.Home, ".local", "share", appName), nil
	case "darwin":
		return filepath.Join(env.Home, "Library", "Application Support", appName), nil
	case "windows":
		if env.LocalAppData != "" {
			return filepath.Join(env.LocalAppData, appName), nil
		}
		return filepath.Join(env.Home, "AppData", "Local", appName), nil
	default:
		return "", fmt.Errorf("unsupported OS: %s", goos)
	}
}
