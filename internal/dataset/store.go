package dataset

import "sync"

// Store holds the Unified Dataset for the life of the process.  The dataset
// is built once, on the first call to Get, and every later call returns the
// same value.  Callers must treat it as read-only.
type Store struct {
	once  sync.Once
	build func() (*Dataset, error)
	ds    *Dataset
	err   error
}

// NewStore returns a store that will publish the result of build
func NewStore(build func() (*Dataset, error)) *Store {
	return &Store{build: build}
}

// Get builds the dataset on first use and returns the published value
func (s *Store) Get() (*Dataset, error) {
	s.once.Do(func() {
		s.ds, s.err = s.build()
	})
	return s.ds, s.err
}
