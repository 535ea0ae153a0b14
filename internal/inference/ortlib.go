package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// resolveORTLibPath returns the path to the ONNX Runtime shared library.
// Search order:
//  1. The explicit override passed via config (ONNX_LIB_PATH).
//  2. lib/<goos>-<goarch>/ relative to the executable.
//  3. ../lib/<goos>-<goarch>/ relative to the executable (bin/ layout).
func resolveORTLibPath(override string) (string, error) {
	if override != "" {
		info, err := os.Stat(override)
		if err != nil {
			return "", fmt.Errorf("ort: library path %q does not exist", override)
		}
		if info.IsDir() {
			return "", fmt.Errorf("ort: library path %q is a directory, expected a file", override)
		}
		return override, nil
	}

	filename := ortLibFilename()
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, rel := range []string{
			filepath.Join("lib", runtime.GOOS+"-"+runtime.GOARCH, filename),
			filepath.Join("..", "lib", runtime.GOOS+"-"+runtime.GOARCH, filename),
		} {
			path := filepath.Join(exeDir, rel)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("ort: shared library not found; searched lib/<os>-<arch>/%s relative to executable (set ONNX_LIB_PATH to override)", filename)
}

// ortLibFilename returns the platform-specific ONNX Runtime library filename.
func ortLibFilename() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default: // linux and others
		return "libonnxruntime.so"
	}
}
