package inference

import (
	"os"
	"path/filepath"
	"runtime"
)

// LibraryEnv overrides the ONNX Runtime shared library location.
const LibraryEnv = "ONNXRUNTIME_LIB"

// LibraryPath resolves the ONNX Runtime shared library. An explicit path
// wins, then LibraryEnv, then the first platform default found on disk.
// If nothing is found the bare library name is returned for the dynamic
// loader to resolve.
func LibraryPath(configured string) string {
	if configured != "" {
		return configured
	}
	if env := os.Getenv(LibraryEnv); env != "" {
		return env
	}

	name := libraryName(runtime.GOOS)
	for _, dir := range libraryDirs(runtime.GOOS) {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return name
}

func libraryName(goos string) string {
	switch goos {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}

func libraryDirs(goos string) []string {
	dirs := []string{"third_party", filepath.Join("..", "third_party")}
	switch goos {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/lib", "/usr/local/lib")
	case "linux":
		dirs = append(dirs, "/usr/local/lib", "/usr/lib")
	}
	return dirs
}
