package parse

import (
	"context"
	"fmt"
	"time"

	"github.com/anaishowland/oasive-db-sub000/internal/catalog"
	"github.com/anaishowland/oasive-db-sub000/internal/database"
)

// FileMeta identifies the file being parsed and carries what the parsers need
// from its catalog entry.
type FileMeta struct {
	Filename string
	FileDate *time.Time
}

// Result counts what one file produced.
type Result struct {
	Pools   int
	Loans   int
	Facts   int
	Skipped int // malformed records logged and dropped
}

func (r Result) add(other Result) Result {
	return Result{
		Pools:   r.Pools + other.Pools,
		Loans:   r.Loans + other.Loans,
		Facts:   r.Facts + other.Facts,
		Skipped: r.Skipped + other.Skipped,
	}
}

// Parser turns one family's raw file bytes into warehouse writes. All writes
// go through exec so the caller can wrap the whole file in one transaction.
type Parser interface {
	Family() catalog.FileFamily
	Parse(ctx context.Context, exec database.Executor, raw []byte, meta FileMeta) (Result, error)
}

// Registry resolves the parser for a file family.
type Registry struct {
	parsers map[catalog.FileFamily]Parser
}

// NewRegistry builds a registry from the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	reg := &Registry{parsers: make(map[catalog.FileFamily]Parser, len(parsers))}
	for _, p := range parsers {
		reg.parsers[p.Family()] = p
	}
	return reg
}

// For returns the parser registered for the family.
func (r *Registry) For(family catalog.FileFamily) (Parser, error) {
	p, ok := r.parsers[family]
	if !ok {
		return nil, fmt.Errorf("no parser registered for family %q", family)
	}
	return p, nil
}
