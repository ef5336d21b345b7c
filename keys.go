package placemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/placemap/pkg/places"
)

// SearchKey is the cache key of a normalized query.
func SearchKey(q places.SearchQuery) string {
	return fmt.Sprintf("search:%.6f:%.6f:%s:%s:%s:%d:%d",
		q.Lat, q.Lon,
		strconv.FormatFloat(q.Radius, 'f', -1, 64),
		strings.ToLower(q.Query),
		strings.ToLower(q.Category),
		q.Limit, q.Offset,
	)
}

// PlaceKey is the cache key of a single place.
func PlaceKey(id string) string {
	return "place:" + id
}
