package endpoint_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLocationsAggregates(t *testing.T) {
	r, db, _ := SetupTestServer(t)
	seedListings(t, db)

	rr := send(t, r, http.MethodGet, "/locations", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var locations []map[string]interface{}
	decodeData(t, rr, &locations)
	require.Len(t, locations, 2)

	marina := locations[0]
	assert.Equal(t, "dubai-marina", marina["slug"])
	assert.Equal(t, "Dubai Marina", marina["name"])
	assert.Equal(t, float64(2), marina["property_count"])
	assert.Equal(t, float64(60_000), marina["min_price"])
	assert.Equal(t, float64(2_500_000), marina["max_price"])
	assert.Equal(t, float64(1), marina["for_sale"])
	assert.Equal(t, float64(1), marina["for_rent"])

	assert.Equal(t, "palm-jumeirah", locations[1]["slug"])
}

func TestGetLocation(t *testing.T) {
	r, db, _ := SetupTestServer(t)
	seedListings(t, db)

	rr := send(t, r, http.MethodGet, "/locations/Dubai%20Marina", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	data := ParseDataToMap(t, ParseAPIResp(t, rr).Data)
	assert.Equal(t, "dubai-marina", data["slug"])
	assert.Len(t, data["properties"], 2)

	rr = send(t, r, http.MethodGet, "/locations/dubai-marina?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, ParseDataToMap(t, ParseAPIResp(t, rr).Data)["properties"], 1)

	assert.Equal(t, http.StatusNotFound, send(t, r, http.MethodGet, "/locations/atlantis", nil, "").Code)
}
