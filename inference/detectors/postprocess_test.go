package detectors

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/inference"
)

type cell struct {
	xc, yc, w, h float32
	scores       map[int]float32
}

func buildRawOutput(t testing.TB, numClasses, numCells int, cells map[int]cell) *inference.RawOutput {
	t.Helper()
	data := make([]float32, (inference.BoxValues+numClasses)*numCells)
	for idx, c := range cells {
		data[idx] = c.xc
		data[numCells+idx] = c.yc
		data[2*numCells+idx] = c.w
		data[3*numCells+idx] = c.h
		for class, score := range c.scores {
			data[numCells*(inference.BoxValues+class)+idx] = score
		}
	}
	raw, err := inference.NewRawOutput(data, numClasses, numCells)
	require.NoError(t, err)
	return raw
}

func TestDecodeSingleCell(t *testing.T) {
	raw := buildRawOutput(t, 80, 8400, map[int]cell{
		1234: {xc: 320, yc: 320, w: 100, h: 200, scores: map[int]float32{0: 0.9, 5: 0.3}},
	})

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 480)
	require.Len(t, boxes, 1)

	b := boxes[0]
	assert.Equal(t, "person", b.Label)
	assert.InDelta(t, 0.9, b.Confidence, 1e-6)
	assert.InDelta(t, 270, b.X1, 1e-3)
	assert.InDelta(t, 165, b.Y1, 1e-3)
	assert.InDelta(t, 370, b.X2, 1e-3)
	assert.InDelta(t, 315, b.Y2, 1e-3)
}

func TestDecodeThreshold(t *testing.T) {
	tests := []struct {
		name  string
		score float32
		kept  bool
	}{
		{name: "below", score: 0.49, kept: false},
		{name: "exactly at threshold", score: 0.5, kept: true},
		{name: "above", score: 0.51, kept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildRawOutput(t, 3, 4, map[int]cell{
				2: {xc: 10, yc: 10, w: 4, h: 4, scores: map[int]float32{1: tt.score}},
			})
			boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
			assert.Equal(t, tt.kept, len(boxes) == 1)
		})
	}
}

func TestDecodeAllBelowThreshold(t *testing.T) {
	cells := map[int]cell{}
	for i := 0; i < 16; i++ {
		cells[i] = cell{xc: 100, yc: 100, w: 50, h: 50, scores: map[int]float32{i % 5: 0.49}}
	}
	raw := buildRawOutput(t, 5, 16, cells)

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
	assert.NotNil(t, boxes)
	assert.Empty(t, boxes)
}

func TestDecodeTieKeepsLowestClass(t *testing.T) {
	raw := buildRawOutput(t, 80, 2, map[int]cell{
		0: {xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{2: 0.8, 7: 0.8, 15: 0.8}},
		1: {xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{16: 0.7, 15: 0.7}},
	})

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
	require.Len(t, boxes, 2)
	assert.Equal(t, "car", boxes[0].Label)
	assert.Equal(t, "cat", boxes[1].Label)
}

func TestDecodeCellOrder(t *testing.T) {
	raw := buildRawOutput(t, 2, 5, map[int]cell{
		4: {xc: 40, yc: 40, w: 2, h: 2, scores: map[int]float32{0: 0.95}},
		1: {xc: 10, yc: 10, w: 2, h: 2, scores: map[int]float32{1: 0.6}},
		3: {xc: 30, yc: 30, w: 2, h: 2, scores: map[int]float32{0: 0.7}},
	})

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
	require.Len(t, boxes, 3)
	assert.InDelta(t, 0.6, boxes[0].Confidence, 1e-6)
	assert.InDelta(t, 0.7, boxes[1].Confidence, 1e-6)
	assert.InDelta(t, 0.95, boxes[2].Confidence, 1e-6)
}

func TestDecodeUnknownClass(t *testing.T) {
	raw := buildRawOutput(t, 85, 1, map[int]cell{
		0: {xc: 5, yc: 5, w: 2, h: 2, scores: map[int]float32{82: 0.99}},
	})

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
	require.Len(t, boxes, 1)
	assert.Equal(t, "unknown_82", boxes[0].Label)
}

func TestDecodeNonFinite(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name  string
		cell  cell
		label string
	}{
		{
			name: "NaN best score is dropped",
			cell: cell{xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{0: nan}},
		},
		{
			name:  "NaN score does not hide a valid class",
			cell:  cell{xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{0: nan, 5: 0.9}},
			label: "bus",
		},
		{
			name: "infinite score is dropped",
			cell: cell{xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{3: inf}},
		},
		{
			name: "score above one is dropped",
			cell: cell{xc: 50, yc: 50, w: 10, h: 10, scores: map[int]float32{3: 1.5}},
		},
		{
			name: "NaN center is dropped",
			cell: cell{xc: nan, yc: 50, w: 10, h: 10, scores: map[int]float32{0: 0.9}},
		},
		{
			name: "infinite size is dropped",
			cell: cell{xc: 50, yc: 50, w: 10, h: inf, scores: map[int]float32{0: 0.9}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildRawOutput(t, 80, 2, map[int]cell{1: tt.cell})
			boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
			if tt.label == "" {
				assert.Empty(t, boxes)
				return
			}
			require.Len(t, boxes, 1)
			assert.Equal(t, tt.label, boxes[0].Label)
			assert.InDelta(t, 0.9, boxes[0].Confidence, 1e-6)
		})
	}
}

func TestDecodeNegativeSize(t *testing.T) {
	raw := buildRawOutput(t, 80, 1, map[int]cell{
		0: {xc: 50, yc: 50, w: -10, h: -20, scores: map[int]float32{3: 0.8}},
	})

	boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 640)
	require.Len(t, boxes, 1)
	b := boxes[0]
	assert.Equal(t, "motorcycle", b.Label)
	assert.InDelta(t, 45, b.X1, 1e-4)
	assert.InDelta(t, 40, b.Y1, 1e-4)
	assert.InDelta(t, 55, b.X2, 1e-4)
	assert.InDelta(t, 60, b.Y2, 1e-4)
	assert.InDelta(t, 200, b.Area(), 1e-3)
}

func TestDecodeDegenerate(t *testing.T) {
	tests := []struct {
		name       string
		numClasses int
		numCells   int
	}{
		{name: "zero cells", numClasses: 80, numCells: 0},
		{name: "zero classes", numClasses: 0, numCells: 8400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := buildRawOutput(t, tt.numClasses, tt.numCells, nil)
			boxes := NewDecoder(DefaultConfig()).Decode(raw, 640, 480)
			assert.NotNil(t, boxes)
			assert.Empty(t, boxes)
		})
	}
}

func TestDecodeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cells := map[int]cell{}
	for i := 0; i < 500; i++ {
		scores := map[int]float32{}
		for c := 0; c < 80; c++ {
			scores[c] = rng.Float32()
		}
		cells[i] = cell{
			xc:     rng.Float32() * 640,
			yc:     rng.Float32() * 640,
			w:      (rng.Float32() - 0.5) * 400,
			h:      (rng.Float32() - 0.5) * 400,
			scores: scores,
		}
	}
	raw := buildRawOutput(t, 80, 500, cells)

	for _, b := range NewDecoder(DefaultConfig()).Decode(raw, 1920, 1080) {
		assert.GreaterOrEqual(t, b.Confidence, float32(0.5))
		assert.LessOrEqual(t, b.Confidence, float32(1))
		assert.LessOrEqual(t, b.X1, b.X2)
		assert.LessOrEqual(t, b.Y1, b.Y2)
		assert.NotEmpty(t, b.Label)
	}
}

func BenchmarkDecode(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	cells := map[int]cell{}
	for i := 0; i < 8400; i++ {
		cells[i] = cell{
			xc: rng.Float32() * 640, yc: rng.Float32() * 640,
			w: rng.Float32() * 100, h: rng.Float32() * 100,
			scores: map[int]float32{rng.Intn(80): rng.Float32() * 0.6},
		}
	}
	raw := buildRawOutput(b, 80, 8400, cells)
	decoder := NewDecoder(DefaultConfig())

	b.ResetTimer()
	var boxes []common.BoundingBox
	for i := 0; i < b.N; i++ {
		boxes = decoder.Decode(raw, 1920, 1080)
	}
	_ = boxes
}
