package intel_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nappa85/ingress-intel-go/pkg/intel"
)

const entitiesFixture = `{
	"result": {
		"map": {
			"15_17105_11440_0_8_100": {
				"gameEntities": [
					["guid-portal-1", 1700000000000, ["p", "E", 45563602, 12431250, 8, 100.0, 0, "img", "Fontana del Nettuno", [], true, false, null, 1700000000000]],
					["guid-link-1", 1700000000001, ["e", "R", "guid-a", 45000000, 12000000, "guid-b", 45100000, 12100000]]
				]
			},
			"15_17106_11440_0_8_100": {
				"error": "TIMEOUT"
			}
		}
	}
}`

func TestEntityResponse_Unmarshal(t *testing.T) {
	var resp intel.EntityResponse
	require.NoError(t, json.Unmarshal([]byte(entitiesFixture), &resp))

	require.Len(t, resp.Result.Map, 2)

	good := resp.Result.Map["15_17105_11440_0_8_100"]
	assert.False(t, good.Failed())
	require.Len(t, good.Entities, 2)

	bad := resp.Result.Map["15_17106_11440_0_8_100"]
	assert.True(t, bad.Failed())
	assert.Equal(t, "TIMEOUT", bad.Error)
}

func TestEntity_PortalAccessors(t *testing.T) {
	var resp intel.EntityResponse
	require.NoError(t, json.Unmarshal([]byte(entitiesFixture), &resp))

	entities := resp.Result.Map["15_17105_11440_0_8_100"].Entities

	portal := entities[0]
	assert.Equal(t, "guid-portal-1", portal.GUID)
	assert.Equal(t, int64(1700000000000), portal.Timestamp)
	require.True(t, portal.IsPortal())
	assert.Equal(t, "Fontana del Nettuno", portal.Name())

	lat, ok := portal.Latitude()
	require.True(t, ok)
	assert.InDelta(t, 45.563602, lat, 1e-9)
	lng, ok := portal.Longitude()
	require.True(t, ok)
	assert.InDelta(t, 12.431250, lng, 1e-9)
}

func TestEntity_NonPortalYieldsNothing(t *testing.T) {
	var resp intel.EntityResponse
	require.NoError(t, json.Unmarshal([]byte(entitiesFixture), &resp))

	link := resp.Result.Map["15_17105_11440_0_8_100"].Entities[1]
	assert.False(t, link.IsPortal())
	assert.Empty(t, link.Name())

	_, ok := link.Latitude()
	assert.False(t, ok)
	_, ok = link.Longitude()
	assert.False(t, ok)
}

func TestEntity_MalformedTuple(t *testing.T) {
	var e intel.Entity
	err := json.Unmarshal([]byte(`["guid-only"]`), &e)
	assert.ErrorIs(t, err, intel.ErrMalformedResponse)

	err = json.Unmarshal([]byte(`["guid", "not-a-timestamp", []]`), &e)
	assert.ErrorIs(t, err, intel.ErrMalformedResponse)
}
