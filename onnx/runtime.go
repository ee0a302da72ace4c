package onnx

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

var searchDirs = []string{"onnxlibs", "/usr/local/lib", "/usr/lib"}

// LibPath resolves the ONNX Runtime shared library. An explicit path always
// wins; otherwise the platform default name is looked up in searchDirs.
func LibPath(explicit string) string {
	if explicit != "" {
		slog.Info("Using ONNX Runtime library", slog.String("path", explicit))
		return explicit
	}
	name := libName(runtime.GOOS)
	if name == "" {
		slog.Error("ONNX Runtime library path could not be determined for this OS", slog.String("os", runtime.GOOS))
		return ""
	}
	for _, dir := range searchDirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			slog.Info("Using ONNX Runtime library", slog.String("path", path))
			return path
		}
	}
	// leave it to the dynamic loader
	slog.Info("ONNX Runtime library not found in search dirs, relying on loader", slog.String("name", name))
	return name
}

func libName(goos string) string {
	switch goos {
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return ""
	}
}
