package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/inference"
)

func TestNewProvider(t *testing.T) {
	for _, backend := range Backends {
		t.Run(string(backend), func(t *testing.T) {
			config := DefaultConfig()
			config.Backend = backend

			provider, err := NewProvider(config)
			require.NoError(t, err)
			assert.Equal(t, backend, provider.Backend())
			assert.NotNil(t, provider.Options())
		})
	}

	config := DefaultConfig()
	config.Backend = ""
	provider, err := NewProvider(config)
	require.NoError(t, err)
	assert.Equal(t, CPUProviderBackend, provider.Backend())

	config.Backend = "tensorrt"
	_, err = NewProvider(config)
	assert.Error(t, err)
}

func TestCoreMLFlags(t *testing.T) {
	assert.Equal(t, uint32(0), CoreMLOptions{}.Flags())
	assert.Equal(t, uint32(0x001), CoreMLOptions{CPUOnly: true}.Flags())
	assert.Equal(t, uint32(0x01a), CoreMLOptions{
		MLProgram:                true,
		RequireStaticInputShapes: true,
		EnableOnSubgraphs:        true,
	}.Flags())
	assert.Equal(t, uint32(0x004), CoreMLOptions{RequireANE: true}.Flags())
}

func TestOpenVINONativeOptions(t *testing.T) {
	assert.Empty(t, OpenVINOOptions{}.ToNativeProviderOptions())

	got := OpenVINOOptions{
		DeviceType:           "GPU",
		Precision:            inference.PrecisionFP16,
		NumOfThreads:         4,
		DisableDynamicShapes: true,
	}.ToNativeProviderOptions()

	assert.Equal(t, map[string]string{
		"device_type":            "GPU",
		"precision":              "FP16",
		"num_of_threads":         "4",
		"disable_dynamic_shapes": "true",
	}, got)
}

func TestCUDAOptionsMap(t *testing.T) {
	got := CUDAOptions{
		DeviceID:            1,
		GPUMemLimit:         2 << 30,
		ArenaExtendStrategy: 1,
		CudnnConvAlgoSearch: "HEURISTIC",
		UseTF32:             true,
	}.ToMap()

	assert.Equal(t, "1", got["device_id"])
	assert.Equal(t, "2147483648", got["gpu_mem_limit"])
	assert.Equal(t, "kSameAsRequested", got["arena_extend_strategy"])
	assert.Equal(t, "HEURISTIC", got["cudnn_conv_algo_search"])
	assert.Equal(t, "1", got["use_tf32"])
	assert.Equal(t, "0", got["do_copy_in_default_stream"])

	defaults := CUDAOptions{}.ToMap()
	assert.NotContains(t, defaults, "gpu_mem_limit")
	assert.Equal(t, "kNextPowerOfTwo", defaults["arena_extend_strategy"])
}

func TestSharedLibPath(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
	}{
		{"linux", "amd64", "./third_party/onnxruntime.so"},
		{"linux", "arm64", "./third_party/onnxruntime_arm64.so"},
		{"darwin", "arm64", "./third_party/libonnxruntime.dylib"},
		{"windows", "amd64", "./third_party/onnxruntime.dll"},
	}
	for _, tt := range tests {
		got, err := sharedLibPathFor(tt.goos, tt.goarch)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := sharedLibPathFor("plan9", "386")
	assert.Error(t, err)

	t.Setenv(LibraryPathEnv, "/opt/ort/libonnxruntime.so")
	got, err := GetSharedLibPath()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", got)
}
