package intel

import (
	"encoding/json"
	"fmt"
)

// coordinateScale converts the service's microdegree integers to degrees.
const coordinateScale = 1e6

// EntityResponse is the payload of the getEntities endpoint.
type EntityResponse struct {
	Result EntityMap `json:"result"`
}

// EntityMap holds per-tile results keyed by tile key.
type EntityMap struct {
	Map map[string]TileResult `json:"map"`
}

// TileResult is either a per-tile error or a list of entities. The service
// multiplexes both shapes under the same key, so both fields are optional.
type TileResult struct {
	Error    string   `json:"error,omitempty"`
	Entities []Entity `json:"gameEntities,omitempty"`
}

// Failed reports whether the tile carried an error instead of entities.
func (r TileResult) Failed() bool {
	return r.Error != ""
}

// Entity is one positional [guid, timestamp, data...] triple from the
// getEntities payload. The data array layout depends on the entity kind;
// only portals ("p") expose name and coordinates.
type Entity struct {
	GUID      string
	Timestamp int64
	Data      []json.RawMessage
}

// UnmarshalJSON decodes the positional array form.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) != 3 {
		return fmt.Errorf("%w: entity tuple has %d elements", ErrMalformedResponse, len(parts))
	}
	if err := json.Unmarshal(parts[0], &e.GUID); err != nil {
		return fmt.Errorf("%w: entity guid: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(parts[1], &e.Timestamp); err != nil {
		return fmt.Errorf("%w: entity timestamp: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(parts[2], &e.Data); err != nil {
		return fmt.Errorf("%w: entity data: %v", ErrMalformedResponse, err)
	}
	return nil
}

// kind returns the entity type discriminator ("p" for portals).
func (e *Entity) kind() string {
	if len(e.Data) == 0 {
		return ""
	}
	var kind string
	if err := json.Unmarshal(e.Data[0], &kind); err != nil {
		return ""
	}
	return kind
}

// IsPortal reports whether the entity is a portal.
func (e *Entity) IsPortal() bool {
	return e.kind() == "p"
}

// Name returns the portal name, or "" for non-portal entities.
func (e *Entity) Name() string {
	if !e.IsPortal() || len(e.Data) < 9 {
		return ""
	}
	var name string
	if err := json.Unmarshal(e.Data[8], &name); err != nil {
		return ""
	}
	return name
}

// Latitude returns the portal latitude in degrees, or false for non-portals.
func (e *Entity) Latitude() (float64, bool) {
	return e.coord(2)
}

// Longitude returns the portal longitude in degrees, or false for
// non-portals.
func (e *Entity) Longitude() (float64, bool) {
	return e.coord(3)
}

func (e *Entity) coord(idx int) (float64, bool) {
	if !e.IsPortal() || len(e.Data) <= idx {
		return 0, false
	}
	var micro float64
	if err := json.Unmarshal(e.Data[idx], &micro); err != nil {
		return 0, false
	}
	return micro / coordinateScale, true
}
