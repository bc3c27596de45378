package inference

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowsAndElements(t *testing.T) {
	tests := []struct {
		shape    []int64
		rows     int64
		elements int64
	}{
		{shape: nil, rows: 0, elements: 0},
		{shape: []int64{2944}, rows: 2944, elements: 2944},
		{shape: []int64{1, 2944, 1}, rows: 2944, elements: 2944},
		{shape: []int64{1, 2944, 18}, rows: 2944, elements: 52992},
		{shape: []int64{2, 3, 4}, rows: 6, elements: 24},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.rows, Rows(tt.shape), "Rows(%v)", tt.shape)
		assert.Equal(t, tt.elements, Elements(tt.shape), "Elements(%v)", tt.shape)
	}
}

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]Provider{
		"":         ProviderCPU,
		"cpu":      ProviderCPU,
		" CUDA ":   ProviderCUDA,
		"CoreML":   ProviderCoreML,
		"openvino": ProviderOpenVINO,
	} {
		got, err := ParseProvider(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseProvider("tpu")
	assert.Error(t, err)
}

func TestLibraryPath(t *testing.T) {
	t.Run("explicit path wins", func(t *testing.T) {
		t.Setenv(LibraryEnv, "/from/env.so")
		assert.Equal(t, "/explicit.so", LibraryPath("/explicit.so"))
	})

	t.Run("environment override", func(t *testing.T) {
		t.Setenv(LibraryEnv, "/from/env.so")
		assert.Equal(t, "/from/env.so", LibraryPath(""))
	})

	t.Run("platform names", func(t *testing.T) {
		assert.Equal(t, "onnxruntime.dll", libraryName("windows"))
		assert.Equal(t, "libonnxruntime.dylib", libraryName("darwin"))
		assert.Equal(t, "libonnxruntime.so", libraryName("linux"))
		assert.Contains(t, libraryDirs("darwin"), "/opt/homebrew/lib")
		assert.Contains(t, libraryDirs("linux"), "/usr/local/lib")
	})
}

func TestConfig_InputShape(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []int64{1, 3, 256, 256}, []int64(cfg.InputShape()))

	cfg.Layout = "hwc"
	cfg.CanvasSize = 192
	assert.Equal(t, []int64{1, 192, 192, 3}, []int64(cfg.InputShape()))
}

func TestMockEngine(t *testing.T) {
	out := &Outputs{
		Scores:      []float32{1, 2},
		ScoresShape: []int64{1, 2, 1},
		Coords:      []float32{1, 2, 3, 4, 5, 6, 7, 8},
		CoordsShape: []int64{1, 2, 4},
	}
	m := NewMockEngine(out)
	var _ Engine = m

	got, err := m.Run(context.Background(), make([]float32, 12))
	require.NoError(t, err)
	assert.Equal(t, out.Scores, got.Scores)
	assert.Equal(t, 12, m.LastInputLen())

	got.Scores[0] = 99
	again, err := m.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Scores[0], "outputs must be copies")

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Run(context.Background(), nil)
	assert.Equal(t, boom, err)
	m.SetError(nil)

	m.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Run(ctx, nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, m.Close())
	_, err = m.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrEngineClosed))
	assert.Equal(t, 5, m.Calls())
}

func TestNewONNXEngine_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	log, _ := test.NewNullLogger()

	_, err := NewONNXEngine(cfg, log)
	assert.Error(t, err)
}

// TestONNXEngine_ReferenceModel runs the real model when one is available.
func TestONNXEngine_ReferenceModel(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ONNX Runtime test in short mode")
	}
	model := os.Getenv("FINGERS_TEST_MODEL")
	if model == "" {
		t.Skip("FINGERS_TEST_MODEL not set")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = model
	log, _ := test.NewNullLogger()

	engine, err := NewONNXEngine(cfg, log)
	require.NoError(t, err)
	defer engine.Close()

	out, err := engine.Run(context.Background(), make([]float32, 3*256*256))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2944, 1}, out.ScoresShape)
	assert.Equal(t, []int64{1, 2944, 18}, out.CoordsShape)
	assert.Len(t, out.Scores, 2944)
	assert.Len(t, out.Coords, 2944*18)
}
