package intel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nappa85/ingress-intel-go/pkg/intel"
)

func TestTileKey_KnownCoordinates(t *testing.T) {
	tk := intel.NewTileKey(45.5636024140848, 12.431250000000006)

	assert.Equal(t, int64(17105), tk.X)
	assert.Equal(t, int64(11440), tk.Y)
	assert.Equal(t, uint8(intel.DefaultZoom), tk.Zoom)

	// The tile origin maps back onto the source coordinates.
	assert.InDelta(t, 45.5636024140848, tk.Latitude(), 1e-9)
	assert.InDelta(t, 12.431250000000006, tk.Longitude(), 1e-9)
}

func TestTileKey_StringAndParse(t *testing.T) {
	tk := intel.NewTileKey(45.5636024140848, 12.431250000000006)
	assert.Equal(t, "15_17105_11440_0_8_100", tk.String())

	parsed, err := intel.ParseTileKey(tk.String())
	require.NoError(t, err)
	assert.Equal(t, tk, parsed)
}

func TestParseTileKey_Invalid(t *testing.T) {
	_, err := intel.ParseTileKey("15_17105_11440")
	assert.Error(t, err)

	_, err = intel.ParseTileKey("a_b_c_d_e_f")
	assert.Error(t, err)
}

func TestTileKey_Offset(t *testing.T) {
	tk := intel.NewTileKey(45.5636024140848, 12.431250000000006)
	moved := tk.Offset(1, -1)

	assert.Equal(t, tk.X+1, moved.X)
	assert.Equal(t, tk.Y-1, moved.Y)
	// Offset does not mutate the receiver.
	assert.Equal(t, int64(17105), tk.X)
}

func TestTileRange_StaysInsideBoundingBox(t *testing.T) {
	fromLat, fromLng := 45.362997, 12.060000000000002
	toLat, toLng := 45.76016527904371, 12.939141

	keys := intel.TileRange(fromLat, fromLng, toLat, toLng)
	require.NotEmpty(t, keys)

	seen := make(map[string]bool, len(keys))
	for _, tk := range keys {
		lat, lng := tk.Latitude(), tk.Longitude()
		assert.GreaterOrEqual(t, lat, fromLat-1e-6, "tile %s below box", tk)
		assert.LessOrEqual(t, lat, toLat+1e-6, "tile %s above box", tk)
		assert.GreaterOrEqual(t, lng, fromLng-1e-6, "tile %s west of box", tk)
		assert.LessOrEqual(t, lng, toLng+1e-6, "tile %s east of box", tk)

		assert.False(t, seen[tk.String()], "duplicate tile %s", tk)
		seen[tk.String()] = true
	}
}
