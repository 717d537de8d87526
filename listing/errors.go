package listing

import "errors"

var (
	// ErrListingNotFound indicates no listing exists with the given ID.
	ErrListingNotFound = errors.New("listing: not found")

	// ErrDuplicateListing indicates a listing with the same ID already exists.
	ErrDuplicateListing = errors.New("listing: duplicate id")

	// ErrStatusConflict indicates a Transition found the listing in a
	// different status than expected (e.g., two buyers racing one listing).
	ErrStatusConflict = errors.New("listing: status conflict")

	// ErrInvalidListing indicates required listing fields are missing.
	ErrInvalidListing = errors.New("listing: invalid listing")
)
