package intel

import (
	"encoding/json"
	"fmt"
)

// PortalResponse is the payload of the getPortalDetails endpoint.
type PortalResponse struct {
	Result Portal `json:"result"`
}

// Portal is the positional array the service returns for one portal. Only
// the well-known slots get typed accessors; the raw slots stay available
// for callers that need the undocumented tail.
type Portal struct {
	raw []json.RawMessage
}

// Portal tuple slots (observed wire layout, not documented upstream).
const (
	portalSlotTeam       = 1
	portalSlotLatitude   = 2
	portalSlotLongitude  = 3
	portalSlotLevel      = 4
	portalSlotImageURL   = 7
	portalSlotName       = 8
	portalSlotMods       = 14
	portalSlotResonators = 15
	portalSlotMinLen     = 16
)

// UnmarshalJSON decodes the positional array form.
func (p *Portal) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &p.raw); err != nil {
		return err
	}
	if len(p.raw) < portalSlotMinLen {
		return fmt.Errorf("%w: portal tuple has %d elements", ErrMalformedResponse, len(p.raw))
	}
	return nil
}

// Raw returns the undecoded tuple slots.
func (p *Portal) Raw() []json.RawMessage {
	return p.raw
}

func (p *Portal) stringAt(idx int) string {
	if len(p.raw) <= idx {
		return ""
	}
	var s string
	if err := json.Unmarshal(p.raw[idx], &s); err != nil {
		return ""
	}
	return s
}

func (p *Portal) floatAt(idx int) float64 {
	if len(p.raw) <= idx {
		return 0
	}
	var f float64
	if err := json.Unmarshal(p.raw[idx], &f); err != nil {
		return 0
	}
	return f
}

// Name returns the portal title.
func (p *Portal) Name() string {
	return p.stringAt(portalSlotName)
}

// ImageURL returns the portal photo URL.
func (p *Portal) ImageURL() string {
	return p.stringAt(portalSlotImageURL)
}

// Team returns the owning faction marker.
func (p *Portal) Team() string {
	return p.stringAt(portalSlotTeam)
}

// Level returns the portal level.
func (p *Portal) Level() int {
	return int(p.floatAt(portalSlotLevel))
}

// Latitude returns the portal latitude in degrees.
func (p *Portal) Latitude() float64 {
	return p.floatAt(portalSlotLatitude) / coordinateScale
}

// Longitude returns the portal longitude in degrees.
func (p *Portal) Longitude() float64 {
	return p.floatAt(portalSlotLongitude) / coordinateScale
}

// Mod is one installed portal mod: [owner, name, rarity, stats].
type Mod struct {
	Owner  string
	Name   string
	Rarity string
	Stats  json.RawMessage
}

// UnmarshalJSON decodes the positional array form. Empty mod slots arrive
// as null and decode to the zero value.
func (m *Mod) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Mod{}
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("%w: mod tuple has %d elements", ErrMalformedResponse, len(parts))
	}
	if err := json.Unmarshal(parts[0], &m.Owner); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &m.Name); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[2], &m.Rarity); err != nil {
		return err
	}
	if len(parts) > 3 {
		m.Stats = parts[3]
	}
	return nil
}

// Resonator is one deployed resonator: [owner, level, energy].
type Resonator struct {
	Owner  string
	Level  int
	Energy int
}

// UnmarshalJSON decodes the positional array form. Empty resonator slots
// arrive as null and decode to the zero value.
func (r *Resonator) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Resonator{}
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("%w: resonator tuple has %d elements", ErrMalformedResponse, len(parts))
	}
	if err := json.Unmarshal(parts[0], &r.Owner); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[1], &r.Level); err != nil {
		return err
	}
	return json.Unmarshal(parts[2], &r.Energy)
}

// Mods decodes the installed mods.
func (p *Portal) Mods() ([]Mod, error) {
	if len(p.raw) <= portalSlotMods {
		return nil, nil
	}
	var mods []Mod
	if err := json.Unmarshal(p.raw[portalSlotMods], &mods); err != nil {
		return nil, fmt.Errorf("%w: portal mods: %v", ErrMalformedResponse, err)
	}
	return mods, nil
}

// Resonators decodes the deployed resonators.
func (p *Portal) Resonators() ([]Resonator, error) {
	if len(p.raw) <= portalSlotResonators {
		return nil, nil
	}
	var resonators []Resonator
	if err := json.Unmarshal(p.raw[portalSlotResonators], &resonators); err != nil {
		return nil, fmt.Errorf("%w: portal resonators: %v", ErrMalformedResponse, err)
	}
	return resonators, nil
}
