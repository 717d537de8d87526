package listing

// Store persists listings. Transition is the store's one concurrency
// obligation: it must be an atomic compare-and-swap so that at most one
// purchase can complete against a listing.
type Store interface {
	// Put stores a new listing. Returns ErrDuplicateListing if the ID exists.
	Put(l *Listing) error

	// Get retrieves a listing by ID. Returns ErrListingNotFound if absent.
	Get(id string) (*Listing, error)

	// Transition atomically moves a listing from expected to next. Returns
	// ErrStatusConflict if the listing is not in the expected status.
	Transition(id string, expected, next Status) error

	// List returns all listings in the given status.
	List(status Status) ([]*Listing, error)
}
