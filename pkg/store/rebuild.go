package store

import "github.com/liliang-cn/vectorcore/pkg/vecerrors"

// RebuildResult is returned by RebuildIndex.
type RebuildResult struct {
	LibraryID    string
	TotalVectors int
	Dimension    int
	Kind         string
	Config       map[string]any
}

// RebuildIndex explicitly calls build() on libraryID's index.
func (s *Store) RebuildIndex(libraryID string) (*RebuildResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[libraryID]
	if !ok {
		return nil, vecerrors.New("store.rebuild_index", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	if err := s.registry.Build(libraryID); err != nil {
		return nil, err
	}

	idx, _ := s.registry.Get(libraryID)
	return &RebuildResult{
		LibraryID:    libraryID,
		TotalVectors: idx.Len(),
		Dimension:    lib.Dimension,
		Kind:         string(lib.IndexKind),
		Config:       lib.IndexConfig,
	}, nil
}
