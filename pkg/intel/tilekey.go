package intel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultZoom is the map zoom level the Intel site itself uses for entity
// tiles.
const DefaultZoom = 15

// tilesPerEdge maps a zoom level to the number of tiles along one edge of
// the projected map. Values mirror the Intel dashboard's tiling table.
var tilesPerEdge = [16]int64{1, 1, 1, 40, 40, 80, 80, 320, 1000, 2000, 2000, 4000, 8000, 16000, 16000, 32000}

func getTilesPerEdge(zoom uint8) float64 {
	if zoom > 15 {
		zoom = 15
	} else if zoom < 3 {
		zoom = 3
	}
	return float64(tilesPerEdge[zoom])
}

func lat2tile(latitude, tpe float64) int64 {
	rad := latitude * math.Pi / 180
	return int64(math.Floor((1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2 * tpe))
}

func lng2tile(longitude, tpe float64) int64 {
	return int64(math.Floor((longitude + 180) / 360 * tpe))
}

func tile2lat(y int64, tpe float64) float64 {
	n := math.Pi - 2*math.Pi*float64(y)/tpe
	return 180 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
}

func tile2lng(x int64, tpe float64) float64 {
	return float64(x)/tpe*360 - 180
}

// TileKey identifies one map tile in the getEntities wire format.
type TileKey struct {
	Zoom     uint8
	X        int64
	Y        int64
	MinLevel uint8
	MaxLevel uint8
	Health   uint8
}

// NewTileKey builds the tile covering the given coordinates at DefaultZoom
// with the full level and health ranges.
func NewTileKey(latitude, longitude float64) TileKey {
	tpe := getTilesPerEdge(DefaultZoom)
	return TileKey{
		Zoom:     DefaultZoom,
		X:        lng2tile(longitude, tpe),
		Y:        lat2tile(latitude, tpe),
		MinLevel: 0,
		MaxLevel: 8,
		Health:   100,
	}
}

// Offset returns the tile shifted by dx/dy on the same zoom level.
func (t TileKey) Offset(dx, dy int64) TileKey {
	t.X += dx
	t.Y += dy
	return t
}

// Latitude returns the latitude of the tile's origin corner.
func (t TileKey) Latitude() float64 {
	return tile2lat(t.Y, getTilesPerEdge(t.Zoom))
}

// Longitude returns the longitude of the tile's origin corner.
func (t TileKey) Longitude() float64 {
	return tile2lng(t.X, getTilesPerEdge(t.Zoom))
}

// String renders the wire form: zoom_x_y_minLevel_maxLevel_health.
func (t TileKey) String() string {
	return fmt.Sprintf("%d_%d_%d_%d_%d_%d", t.Zoom, t.X, t.Y, t.MinLevel, t.MaxLevel, t.Health)
}

// ParseTileKey parses the wire form produced by String.
func ParseTileKey(s string) (TileKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 6 {
		return TileKey{}, fmt.Errorf("intel: invalid tile key %q", s)
	}
	nums := make([]int64, 6)
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return TileKey{}, fmt.Errorf("intel: invalid tile key %q: %w", s, err)
		}
		nums[i] = n
	}
	return TileKey{
		Zoom:     uint8(nums[0]),
		X:        nums[1],
		Y:        nums[2],
		MinLevel: uint8(nums[3]),
		MaxLevel: uint8(nums[4]),
		Health:   uint8(nums[5]),
	}, nil
}

// TileRange enumerates every tile inside the bounding box spanned by the two
// coordinate pairs, inclusive on both edges.
func TileRange(fromLat, fromLng, toLat, toLng float64) []TileKey {
	tpe := getTilesPerEdge(DefaultZoom)
	x1, x2 := lng2tile(fromLng, tpe), lng2tile(toLng, tpe)
	y1, y2 := lat2tile(fromLat, tpe), lat2tile(toLat, tpe)
	fromX, toX := min(x1, x2), max(x1, x2)
	fromY, toY := min(y1, y2), max(y1, y2)

	keys := make([]TileKey, 0, (toX-fromX+1)*(toY-fromY+1))
	for x := fromX; x <= toX; x++ {
		for y := fromY; y <= toY; y++ {
			keys = append(keys, TileKey{
				Zoom:     DefaultZoom,
				X:        x,
				Y:        y,
				MinLevel: 0,
				MaxLevel: 8,
				Health:   100,
			})
		}
	}
	return keys
}

// tileKeysAround returns the 3x3 tile block centered on the coordinates,
// the batch the dashboard requests for a single map view.
func tileKeysAround(latitude, longitude float64) []string {
	base := NewTileKey(latitude, longitude)
	keys := make([]string, 0, 9)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			keys = append(keys, base.Offset(dx, dy).String())
		}
	}
	return keys
}

// square yields the n*n block of tiles whose top-left corner is t.
func (t TileKey) square(n int64) []TileKey {
	tiles := make([]TileKey, 0, n*n)
	for dx := int64(0); dx < n; dx++ {
		for dy := int64(0); dy < n; dy++ {
			tiles = append(tiles, t.Offset(dx, dy))
		}
	}
	return tiles
}
