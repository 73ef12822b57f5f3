package store

import (
	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/index"
)

// SnapshotData is the in-memory shape the snapshot layer loads into and
// reads out of the store, decoupling pkg/store from the on-disk format.
type SnapshotData struct {
	Libraries []*entity.Library
	Documents []*entity.Document
	Chunks    []*entity.Chunk
}

// LoadSnapshot clears all in-memory state and loads data, instantiating an
// unbuilt index for every library — index internal state is never
// persisted, so the first search against each library triggers a lazy
// build. This is irreversible: any state not already saved is lost.
func (s *Store) LoadSnapshot(data SnapshotData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.libraries = make(map[string]*entity.Library, len(data.Libraries))
	s.documents = make(map[string]*entity.Document, len(data.Documents))
	s.chunks = make(map[string]*entity.Chunk, len(data.Chunks))
	s.registry = index.NewRegistry()
	s.writesSinceSave = 0

	for _, lib := range data.Libraries {
		s.libraries[lib.ID] = lib
		cfg, err := index.ParseConfig(lib.IndexConfig)
		if err != nil {
			return err
		}
		if err := s.registry.Create(lib.ID, string(lib.IndexKind), cfg); err != nil {
			return err
		}
	}
	for _, doc := range data.Documents {
		s.documents[doc.ID] = doc
	}
	for _, chunk := range data.Chunks {
		s.chunks[chunk.ID] = chunk
		if doc, ok := s.documents[chunk.DocumentID]; ok {
			if lib, ok := s.libraries[doc.LibraryID]; ok {
				if idx, ok := s.registry.Get(lib.ID); ok {
					_ = idx.Add(chunk.ID, chunk.Embedding)
				}
			}
		}
	}
	return nil
}
