package listing

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "listings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testListing(id string) *Listing {
	return &Listing{
		ID:                id,
		InscriptionID:     "abc123i0",
		SellerWallet:      "bc1p-seller",
		PriceSats:         100000,
		PlatformFeeSats:   5000,
		PlatformFeeWallet: "bc1q-platform",
		UtxoValue:         546,
		PartialPSBT:       "cHNidP8B",
		Status:            StatusActive,
		CreatedAt:         time.Now().UTC(),
	}
}

// --- Put / Get ---

func TestPutGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	l := testListing("l1")
	require.NoError(t, s.Put(l))

	got, err := s.Get("l1")
	require.NoError(t, err)
	assert.Equal(t, l.PriceSats, got.PriceSats)
	assert.Equal(t, l.PartialPSBT, got.PartialPSBT)
	assert.Equal(t, StatusActive, got.Status)
}

func TestPut_Duplicate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(testListing("l1")))
	assert.ErrorIs(t, s.Put(testListing("l1")), ErrDuplicateListing)
}

func TestPut_Invalid(t *testing.T) {
	s := newTestStore(t)
	assert.ErrorIs(t, s.Put(&Listing{ID: ""}), ErrInvalidListing)
	assert.ErrorIs(t, s.Put(&Listing{ID: "x"}), ErrInvalidListing) // no template
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrListingNotFound)
}

// --- Transition ---

func TestTransition_ActiveToSold(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(testListing("l1")))

	require.NoError(t, s.Transition("l1", StatusActive, StatusSold))

	got, err := s.Get("l1")
	require.NoError(t, err)
	assert.Equal(t, StatusSold, got.Status)
}

func TestTransition_Conflict(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(testListing("l1")))
	require.NoError(t, s.Transition("l1", StatusActive, StatusSold))

	err := s.Transition("l1", StatusActive, StatusSold)
	assert.ErrorIs(t, err, ErrStatusConflict)
}

// TestTransition_SingleWinner races many buyers at one listing; exactly one
// transition may succeed.
func TestTransition_SingleWinner(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(testListing("l1")))

	const buyers = 16
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Transition("l1", StatusActive, StatusSold)
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		if err == nil {
			won++
		} else {
			assert.ErrorIs(t, err, ErrStatusConflict)
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, buyers-1, lost)
}

// --- List ---

func TestList_FiltersByStatus(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(testListing("l1")))
	require.NoError(t, s.Put(testListing("l2")))
	require.NoError(t, s.Transition("l2", StatusActive, StatusCancelled))

	active, err := s.List(StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "l1", active[0].ID)

	cancelled, err := s.List(StatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "l2", cancelled[0].ID)
}
