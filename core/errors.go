package core

import (
	"errors"

	"github.com/dosco/reljin/core/internal/sdata"
)

var (
	// ErrUnknownRelation is returned by every operation when the
	// relation name does not resolve against the schema. The store is
	// never touched in that case.
	ErrUnknownRelation = sdata.ErrUnknownRelation

	// ErrAmbiguousReference is returned when a relation field carries
	// conflicting reference metadata.
	ErrAmbiguousReference = sdata.ErrAmbiguousReference

	// ErrNotFound is raised by mutation operations when the entity to
	// mutate does not match the id plus caller filter. Read operations
	// never raise it; absence is an empty result there.
	ErrNotFound = errors.New("not found")

	// ErrRelationNotSupported is raised when a mutation targets a
	// relation kind it cannot operate on, e.g. removing links from a
	// virtual lookup.
	ErrRelationNotSupported = errors.New("operation not supported for this relation kind")

	// ErrMissingRelations is raised when fewer related documents match
	// than were asked for. Nothing is linked or unlinked in that case.
	ErrMissingRelations = errors.New("unable to find all related documents")

	// ErrMissingRelation is the single-document variant of
	// ErrMissingRelations, raised by set and single-remove.
	ErrMissingRelation = errors.New("unable to find related document")
)
