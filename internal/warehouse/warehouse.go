// Package warehouse holds the relational repositories for pools, loans and
// per-period pool facts. All writes are idempotent upserts keyed by the
// entities' natural keys, so re-parsing a disclosure file leaves the store
// unchanged on the second pass.
package warehouse

import (
	"database/sql"
	"errors"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
