package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-detect/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func box(label string, conf, x1, y1, x2, y2 float32) common.BoundingBox {
	return common.BoundingBox{Label: label, Confidence: conf, X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func TestApplyGreedyNMS(t *testing.T) {
	tests := []struct {
		name     string
		input    []common.BoundingBox
		config   *NMSConfig
		expected []common.BoundingBox
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: []common.BoundingBox{},
		},
		{
			name: "overlap above threshold keeps the higher confidence box",
			input: []common.BoundingBox{
				box("person", 0.6, 0, 0, 100, 80), // IoU 0.8 with the box below
				box("person", 0.9, 0, 0, 100, 100),
			},
			expected: []common.BoundingBox{
				box("person", 0.9, 0, 0, 100, 100),
			},
		},
		{
			name: "overlap below threshold keeps both",
			input: []common.BoundingBox{
				box("person", 0.6, 0, 0, 30, 100), // IoU 0.3
				box("person", 0.9, 0, 0, 100, 100),
			},
			expected: []common.BoundingBox{
				box("person", 0.9, 0, 0, 100, 100),
				box("person", 0.6, 0, 0, 30, 100),
			},
		},
		{
			name: "overlap exactly at threshold is suppressed",
			input: []common.BoundingBox{
				box("car", 0.9, 0, 0, 100, 100),
				box("car", 0.8, 0, 0, 70, 100), // IoU 0.7
			},
			expected: []common.BoundingBox{
				box("car", 0.9, 0, 0, 100, 100),
			},
		},
		{
			name: "suppression is class agnostic by default",
			input: []common.BoundingBox{
				box("dog", 0.7, 1, 1, 100, 100),
				box("cat", 0.9, 0, 0, 100, 100),
			},
			expected: []common.BoundingBox{
				box("cat", 0.9, 0, 0, 100, 100),
			},
		},
		{
			name: "class aware suppression keeps other labels",
			input: []common.BoundingBox{
				box("dog", 0.7, 1, 1, 100, 100),
				box("cat", 0.9, 0, 0, 100, 100),
			},
			config: &NMSConfig{IoUThreshold: 0.7, ClassAware: true},
			expected: []common.BoundingBox{
				box("cat", 0.9, 0, 0, 100, 100),
				box("dog", 0.7, 1, 1, 100, 100),
			},
		},
		{
			name: "suppressed box does not suppress others",
			input: []common.BoundingBox{
				box("person", 0.9, 0, 0, 100, 100),
				box("person", 0.8, 10, 0, 110, 100), // suppressed by the first
				box("person", 0.7, 20, 0, 120, 100), // IoU 0.67 with the first, 0.82 with the second
			},
			expected: []common.BoundingBox{
				box("person", 0.9, 0, 0, 100, 100),
				box("person", 0.7, 20, 0, 120, 100),
			},
		},
		{
			name: "equal confidence keeps input order",
			input: []common.BoundingBox{
				box("b", 0.5, 200, 200, 300, 300),
				box("a", 0.5, 0, 0, 100, 100),
				box("c", 0.5, 400, 400, 500, 500),
			},
			expected: []common.BoundingBox{
				box("b", 0.5, 200, 200, 300, 300),
				box("a", 0.5, 0, 0, 100, 100),
				box("c", 0.5, 400, 400, 500, 500),
			},
		},
		{
			name: "degenerate boxes are each emitted once",
			input: []common.BoundingBox{
				box("person", 0.9, 5, 5, 5, 5),
				box("person", 0.8, 5, 5, 5, 5),
			},
			expected: []common.BoundingBox{
				box("person", 0.9, 5, 5, 5, 5),
				box("person", 0.8, 5, 5, 5, 5),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ApplyGreedyNMS(tt.input, tt.config)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestApplyGreedyNMSDoesNotMutateInput(t *testing.T) {
	input := []common.BoundingBox{
		box("person", 0.6, 0, 0, 10, 10),
		box("person", 0.9, 50, 50, 60, 60),
	}
	snapshot := append([]common.BoundingBox(nil), input...)

	ApplyGreedyNMS(input, nil)
	assert.Equal(t, snapshot, input)
}

// TestApplyGreedyNMSProperties checks the suppression post-conditions on
// random clusters of overlapping boxes.
func TestApplyGreedyNMSProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	config := DefaultNMSConfig()

	for round := 0; round < 50; round++ {
		candidates := make([]common.BoundingBox, 0, 40)
		for i := 0; i < 40; i++ {
			x := rng.Float32() * 200
			y := rng.Float32() * 200
			w := 20 + rng.Float32()*80
			h := 20 + rng.Float32()*80
			conf := 0.5 + rng.Float32()*0.5
			candidates = append(candidates, box("person", conf, x, y, x+w, y+h))
		}

		kept := ApplyGreedyNMS(candidates, config)
		require.NotEmpty(t, kept)

		for i := range kept {
			if i > 0 {
				assert.GreaterOrEqual(t, kept[i-1].Confidence, kept[i].Confidence,
					"output must be sorted by descending confidence")
			}
			for j := i + 1; j < len(kept); j++ {
				assert.Less(t, common.IoU(kept[i], kept[j]), config.IoUThreshold,
					"kept boxes %d and %d overlap", i, j)
			}
		}

		assert.Equal(t, kept, ApplyGreedyNMS(kept, config), "NMS must be idempotent")
	}
}

func BenchmarkApplyGreedyNMS(b *testing.B) {
	rng := rand.New(rand.NewSource(7))
	candidates := make([]common.BoundingBox, 100)
	for i := range candidates {
		x := rng.Float32() * 600
		y := rng.Float32() * 600
		candidates[i] = box("person", 0.5+rng.Float32()*0.5, x, y, x+40, y+80)
	}
	config := DefaultNMSConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ApplyGreedyNMS(candidates, config)
	}
}
