// Package sqlxrepos implements the repository interfaces on top of Postgres
// via sqlx. Queries are hand-written; every method runs against the base pool
// unless a transaction is passed through the trailing exec argument.
package sqlxrepos

import (
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/trezcool/shule/core"
)

func stringArray(vals []string) pq.StringArray {
	return pq.StringArray(vals)
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// orderClause builds an ORDER BY from the requested ordering. Field names
// come from the query string, so anything outside sortable is dropped.
func orderClause(ordering []core.DBOrdering, sortable map[string]bool, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if sortable[ord.Field] {
			parts = append(parts, ord.String())
		}
	}
	if len(parts) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
