package config

import (
	"os"
	"path/filepath"
)

// ExecutableDir returns the directory holding the running binary. It falls
// back to the working directory when the executable path cannot be resolved.
func ExecutableDir() string {
	exe, err := os.Executable()
	if err != nil {
		wd, wdErr := os.Getwd()
		if wdErr != nil {
			return "."
		}
		return wd
	}
	return filepath.Dir(exe)
}

// ResolveRuntimePath turns a relative path from the config into an absolute
// one anchored at the executable directory. Absolute paths pass through.
func ResolveRuntimePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ExecutableDir(), p)
}
