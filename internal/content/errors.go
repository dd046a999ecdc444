package content

import "errors"

// Sentinel errors shared by the store, engine and coordinator. Callers check them with
// errors.Is; the returned errors are wrapped with the offending id or types.
var (
	// ErrNotFound indicates that a referenced item id does not exist in the store.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidRelationship indicates a type-compatibility violation, such as moving a
	// Step under a Tactic or giving an Objective a parent. Structural operations that
	// return it have made no change.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrInvalidDraft indicates that a draft or patch failed validation. Drafts coming from
	// the suggestion provider are untrusted and go through the same checks as manual input.
	ErrInvalidDraft = errors.New("invalid draft")
)
