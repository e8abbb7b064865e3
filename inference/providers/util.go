package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LibraryPathEnv overrides the platform default shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if no library is known for this platform.
func GetSharedLibPath() (string, error) {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path, nil
	}
	return sharedLibPathFor(runtime.GOOS, runtime.GOARCH)
}

func sharedLibPathFor(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("unable to find a version of the onnxruntime library supporting %s/%s", goos, goarch)
}
