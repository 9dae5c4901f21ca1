// Package catalog tracks the identity and lifecycle of every file observed
// on the remote disclosure server. Rows are never physically deleted; the
// catalog is the pipeline's audit trail and its only coordination point
// between concurrent invocations.
package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// State is one step of the entry lifecycle. Transitions are monotonic
// (pending → downloading → downloaded → processing → processed) except for
// the explicit error retry performed by backfill runs and the stale-claim
// requeue, both of which return an entry to its last durable state.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateDownloaded  State = "downloaded"
	StateProcessing  State = "processing"
	StateProcessed   State = "processed"
	StateError       State = "error"
)

// FileFamily is the closed set of known record layouts. A file's family is
// resolved once, when the entry is first cataloged, and stored as a column;
// parser selection is a lookup on this value, never repeated filename
// inference.
type FileFamily string

const (
	// FamilyIssuance is the pool/security issuance summary: pipe-delimited,
	// header row, one record per security (monthly and intraday variants).
	FamilyIssuance FileFamily = "issuance"

	// FamilyLoanLevel is the pipe-delimited loan-level disclosure file.
	FamilyLoanLevel FileFamily = "loan_level"

	// FamilyLoanFixed is the fixed-width loan-level format, with the record
	// layout versioned by record length.
	FamilyLoanFixed FileFamily = "loan_fixed"

	// FamilyFactor is the monthly cohort factor/prepayment file.
	FamilyFactor FileFamily = "factor"

	// FamilyUnknown marks files whose name matched no known pattern. They
	// are cataloged for the audit trail but excluded from every download
	// selection unless a filter names the family explicitly.
	FamilyUnknown FileFamily = "unknown"
)

// KnownFamilies lists every family that has a parser.
var KnownFamilies = []FileFamily{FamilyIssuance, FamilyLoanLevel, FamilyLoanFixed, FamilyFactor}

// ParseFamily maps a flag or config value onto a FileFamily. FamilyUnknown is
// accepted so operators can select unclassified entries explicitly.
func ParseFamily(s string) (FileFamily, error) {
	f := FileFamily(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FamilyIssuance, FamilyLoanLevel, FamilyLoanFixed, FamilyFactor, FamilyUnknown:
		return f, nil
	}
	return "", fmt.Errorf("unknown file type %q", s)
}

// Entry is one row of catalog_entry: one remote file's identity, metadata,
// and lifecycle state.
type Entry struct {
	ID               int64          `db:"id"`
	RemotePath       string         `db:"remote_path"`
	Filename         string         `db:"filename"`
	FileType         FileFamily     `db:"file_type"`
	FileDate         sql.NullTime   `db:"file_date"`
	RemoteSize       sql.NullInt64  `db:"remote_size"`
	RemoteModifiedAt sql.NullTime   `db:"remote_modified_at"`
	State            State          `db:"state"`
	SinkLocation     sql.NullString `db:"sink_location"`
	DownloadedAt     sql.NullTime   `db:"downloaded_at"`
	ProcessedAt      sql.NullTime   `db:"processed_at"`
	ErrorMessage     sql.NullString `db:"error_message"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}
