package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/agentstation/placemap/internal/server/response"
	"github.com/agentstation/placemap/pkg/errors"
	"github.com/agentstation/placemap/pkg/places"
)

const maxBodyBytes = 1 << 20

// HandleSearch handles GET and POST /api/v1/places/search.
//
// GET reads lat, lon, radius, q, category, limit and offset from the query
// string; POST reads the same fields as a JSON SearchQuery.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var (
		q   places.SearchQuery
		err error
	)
	switch r.Method {
	case http.MethodGet:
		q, err = parseSearchQuery(r.URL.Query(), true)
	case http.MethodPost:
		q, err = decodeSearchQuery(r.Body)
	default:
		response.MethodNotAllowed(w, r.Method)
		return
	}
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	res, err := pm.Search(r.Context(), q)
	if err != nil {
		fail(w, r, "search", err)
		return
	}
	response.OK(w, res.Places, res.Metadata)
}

// HandleBounds handles GET /api/v1/places/bounds with north, south, east and
// west plus the optional search filters.
func (h *Handlers) HandleBounds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	values := r.URL.Query()
	var b places.Bounds
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"north", &b.North}, {"south", &b.South}, {"east", &b.East}, {"west", &b.West},
	} {
		v, err := floatParam(values, f.name, true)
		if err != nil {
			response.ErrorFromType(w, err)
			return
		}
		*f.dst = v
	}

	q, err := parseSearchQuery(values, false)
	if err != nil {
		response.ErrorFromType(w, err)
		return
	}

	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	res, err := pm.SearchBounds(r.Context(), b, q)
	if err != nil {
		fail(w, r, "search_bounds", err)
		return
	}
	response.OK(w, res.Places, res.Metadata)
}

// HandlePlace handles GET /api/v1/places/{id}.
func (h *Handlers) HandlePlace(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		response.MethodNotAllowed(w, r.Method)
		return
	}

	pm, ok := h.placemap(w, r)
	if !ok {
		return
	}

	p, err := pm.GetPlace(r.Context(), id)
	if err != nil {
		fail(w, r, "get_place", err)
		return
	}
	response.OK(w, p, nil)
}

func decodeSearchQuery(body io.Reader) (places.SearchQuery, error) {
	var q places.SearchQuery
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&q); err != nil {
		return q, errors.NewValidationError("body", nil, "invalid search query: "+err.Error())
	}
	return q, nil
}

// parseSearchQuery reads the search parameters. With withCenter, lat and lon
// are required.
func parseSearchQuery(values url.Values, withCenter bool) (places.SearchQuery, error) {
	var (
		q   places.SearchQuery
		err error
	)
	if withCenter {
		if q.Lat, err = floatParam(values, "lat", true); err != nil {
			return q, err
		}
		if q.Lon, err = floatParam(values, "lon", true); err != nil {
			return q, err
		}
		if q.Radius, err = floatParam(values, "radius", false); err != nil {
			return q, err
		}
	}
	if q.Limit, err = intParam(values, "limit"); err != nil {
		return q, err
	}
	if q.Offset, err = intParam(values, "offset"); err != nil {
		return q, err
	}
	q.Query = strings.TrimSpace(firstOf(values, "q", "query"))
	q.Category = strings.TrimSpace(values.Get("category"))
	return q, nil
}

func firstOf(values url.Values, names ...string) string {
	for _, n := range names {
		if v := values.Get(n); v != "" {
			return v
		}
	}
	return ""
}

func floatParam(values url.Values, name string, required bool) (float64, error) {
	raw := values.Get(name)
	if raw == "" {
		if required {
			return 0, errors.NewValidationError(name, nil, "is required")
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.NewValidationError(name, raw, "must be a number")
	}
	return v, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewValidationError(name, raw, "must be an integer")
	}
	return v, nil
}
