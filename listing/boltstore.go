package listing

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

var bucketListings = []byte("listings")

// BoltStore is a bbolt-backed Store. bbolt's serialized update transactions
// give Transition its compare-and-swap atomicity for free: the read-check-
// write happens inside one exclusive transaction.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("listing: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("listing: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketListings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("listing: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Put stores a new listing.
func (s *BoltStore) Put(l *Listing) error {
	if l == nil || l.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidListing)
	}
	if l.PartialPSBT == "" {
		return fmt.Errorf("%w: missing signed template", ErrInvalidListing)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketListings)
		if b.Get([]byte(l.ID)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateListing, l.ID)
		}
		data, err := encodeGob(l)
		if err != nil {
			return fmt.Errorf("listing: encode: %w", err)
		}
		return b.Put([]byte(l.ID), data)
	})
}

// Get retrieves a listing by ID.
func (s *BoltStore) Get(id string) (*Listing, error) {
	var l Listing
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketListings).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrListingNotFound, id)
		}
		return decodeGob(data, &l)
	})
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Transition atomically moves a listing from expected to next. The whole
// read-check-write runs inside one bbolt update transaction, so two racing
// buyers cannot both observe StatusActive.
func (s *BoltStore) Transition(id string, expected, next Status) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketListings)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrListingNotFound, id)
		}
		var l Listing
		if err := decodeGob(data, &l); err != nil {
			return fmt.Errorf("listing: decode: %w", err)
		}
		if l.Status != expected {
			return fmt.Errorf("%w: %s is %s, expected %s", ErrStatusConflict, id, l.Status, expected)
		}
		l.Status = next
		updated, err := encodeGob(&l)
		if err != nil {
			return fmt.Errorf("listing: encode: %w", err)
		}
		return b.Put([]byte(id), updated)
	})
}

// List returns all listings in the given status.
func (s *BoltStore) List(status Status) ([]*Listing, error) {
	var out []*Listing
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketListings).ForEach(func(k, v []byte) error {
			var l Listing
			if err := decodeGob(v, &l); err != nil {
				return fmt.Errorf("listing: decode %q: %w", k, err)
			}
			if l.Status == status {
				out = append(out, &l)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// encodeGob serializes a value using gob encoding.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob deserializes gob-encoded data into a value.
func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
