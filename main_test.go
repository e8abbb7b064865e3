package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/images"
)

type fakeDetector func(ctx context.Context, data []byte) ([]common.BoundingBox, error)

func (f fakeDetector) Detect(ctx context.Context, data []byte) ([]common.BoundingBox, error) {
	return f(ctx, data)
}

// byContent returns a person box for "person" payloads, nothing for "empty"
// and a decode error otherwise.
var byContent = fakeDetector(func(_ context.Context, data []byte) ([]common.BoundingBox, error) {
	switch string(data) {
	case "person":
		return []common.BoundingBox{{Label: "person", Confidence: 0.75, X1: 1, Y1: 2, X2: 3, Y2: 4}}, nil
	case "empty":
		return nil, nil
	default:
		return nil, images.ErrImageDecode
	}
})

func TestDetectFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("person"), 0o644))

	var out bytes.Buffer
	require.NoError(t, detectFile(byContent, path, time.Second, "", &out))
	assert.JSONEq(t, `[[1,2,3,4,"person",0.75]]`, out.String())

	out.Reset()
	require.NoError(t, os.WriteFile(path, []byte("empty"), 0o644))
	require.NoError(t, detectFile(byContent, path, time.Second, "", &out))
	assert.JSONEq(t, `[]`, out.String())

	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	err := detectFile(byContent, path, time.Second, "", &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, images.ErrImageDecode)

	assert.Error(t, detectFile(byContent, filepath.Join(dir, "missing.jpg"), time.Second, "", &out))
}

func TestDetectDir(t *testing.T) {
	dir := t.TempDir()
	for name, data := range map[string]string{
		"frame-2.jpg": "empty",
		"frame-1.jpg": "person",
		"broken.png":  "junk",
		"notes.txt":   "person",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}

	logger, hook := test.NewNullLogger()
	var out bytes.Buffer
	require.NoError(t, detectDir(byContent, dir, time.Second, "", &out, logger))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var results []FileResult
	for _, line := range lines {
		var res struct {
			File  string            `json:"file"`
			Frame int               `json:"frame"`
			Boxes []json.RawMessage `json:"boxes"`
			Error string            `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &res))
		results = append(results, FileResult{File: filepath.Base(res.File), Frame: res.Frame, Error: res.Error})
		if res.File == filepath.Join(dir, "frame-1.jpg") {
			require.Len(t, res.Boxes, 1)
			assert.JSONEq(t, `[1,2,3,4,"person",0.75]`, string(res.Boxes[0]))
		}
	}

	assert.Equal(t, "frame-1.jpg", results[0].File)
	assert.Equal(t, 1, results[0].Frame)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "frame-2.jpg", results[1].File)
	assert.Equal(t, "broken.png", results[2].File)
	assert.Contains(t, results[2].Error, images.ErrImageDecode.Error())

	assert.Contains(t, lines[1], `"boxes":[]`)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "detection failed" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestDetectDirMissing(t *testing.T) {
	logger, _ := test.NewNullLogger()
	err := detectDir(byContent, filepath.Join(t.TempDir(), "missing"), time.Second, "", &bytes.Buffer{}, logger)
	assert.Error(t, err)
}

func TestDetectAppliesTimeout(t *testing.T) {
	d := fakeDetector(func(ctx context.Context, _ []byte) ([]common.BoundingBox, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	boxes, err := detect(d, nil, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotNil(t, boxes)
}

func TestDetectFileAnnotate(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 80, 60))))
	path := filepath.Join(dir, "snapshot.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	d := fakeDetector(func(context.Context, []byte) ([]common.BoundingBox, error) {
		return []common.BoundingBox{{Label: "cat", Confidence: 0.8, X1: 10, Y1: 20, X2: 50, Y2: 55}}, nil
	})
	outDir := filepath.Join(dir, "annotated")
	require.NoError(t, os.Mkdir(outDir, 0o755))

	var out bytes.Buffer
	require.NoError(t, detectFile(d, path, time.Second, outDir, &out))

	data, err := os.ReadFile(filepath.Join(outDir, "snapshot.jpg"))
	require.NoError(t, err)
	img, format, err := images.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, images.FormatJPEG, format)
	assert.Equal(t, image.Rect(0, 0, 80, 60), img.Bounds())
}
