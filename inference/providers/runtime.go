package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// InitializeRuntime loads the onnxruntime shared library and prepares the
// process-wide ORT environment. It is a no-op if the environment is already
// initialized.
//
// Arguments:
//   - config: The runtime configuration; LibraryPath and Verbose are read.
//   - logger: Receives a line naming the loaded library.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeRuntime(config Config, logger logrus.FieldLogger) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	libPath := config.LibraryPath
	if libPath == "" {
		var err error
		if libPath, err = GetSharedLibPath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s (set library_path or %s)",
			libPath, LibraryPathEnv)
	}

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}

	if config.Verbose {
		if err := ort.SetEnvironmentLogLevel(ort.LoggingLevelVerbose); err != nil {
			logger.WithError(err).Warn("could not enable verbose onnxruntime logging")
		}
	}

	logger.WithField("library", libPath).Info("onnxruntime initialized")

	return nil
}

// DestroyRuntime tears down the ORT environment. All sessions must be closed first.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return errors.Wrap(ort.DestroyEnvironment(), "error destroying ORT environment")
}
