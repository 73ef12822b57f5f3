// Package store implements the in-memory entity store: three id-keyed
// tables (libraries, documents, chunks) plus the index registry, all
// guarded by a single reentrant lock per SPEC_FULL.md §5. Grounded on the
// teacher's SQLiteStore (pkg/core/store.go, store_crud.go, collections.go)
// but swapped from a SQL-backed table to plain maps, since the spec
// mandates an in-memory store with JSON snapshotting rather than SQL
// persistence.
package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/liliang-cn/vectorcore/pkg/corelog"
	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/index"
	"github.com/liliang-cn/vectorcore/pkg/lock"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// Store holds the three entity tables and the index registry behind one
// reentrant lock. Not safe to copy.
type Store struct {
	mu       *lock.Reentrant
	registry *index.Registry
	log      corelog.Logger

	libraries map[string]*entity.Library
	documents map[string]*entity.Document
	chunks    map[string]*entity.Chunk

	writesSinceSave int
}

// New creates an empty store.
func New(log corelog.Logger) *Store {
	if log == nil {
		log = corelog.Nop()
	}
	return &Store{
		mu:        &lock.Reentrant{},
		registry:  index.NewRegistry(),
		log:       log,
		libraries: make(map[string]*entity.Library),
		documents: make(map[string]*entity.Document),
		chunks:    make(map[string]*entity.Chunk),
	}
}

func newID() string { return uuid.NewString() }

// touchWrite increments the writes-since-save counter. Must be called with
// the lock already held.
func (s *Store) touchWrite() {
	s.writesSinceSave++
}

// WritesSinceSave reports the current autosave counter value.
func (s *Store) WritesSinceSave() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writesSinceSave
}

// ResetWriteCounter zeroes the autosave counter (called by the snapshot
// layer after a successful save).
func (s *Store) ResetWriteCounter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writesSinceSave = 0
}

// Registry exposes the store's index registry so the query pipeline can
// search without duplicating the binding between libraries and indexes.
func (s *Store) Registry() *index.Registry { return s.registry }

// Lock/Unlock expose the store's reentrant lock so higher-level components
// (the query pipeline, the snapshot layer) can hold one logical transaction
// across several store calls.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// --- Library ---

// CreateLibraryParams describes a new library.
type CreateLibraryParams struct {
	Name        string
	IndexKind   entity.IndexKind
	IndexConfig map[string]any
	Metadata    map[string]any
}

// CreateLibrary allocates an id, validates the index kind/config, binds an
// unbuilt index in the registry, and persists the library.
func (s *Store) CreateLibrary(p CreateLibraryParams) (*entity.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := index.ParseConfig(p.IndexConfig)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lib := &entity.Library{
		ID:          newID(),
		Name:        p.Name,
		IndexKind:   p.IndexKind,
		IndexConfig: p.IndexConfig,
		Metadata:    p.Metadata,
		DocumentIDs: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.registry.Create(lib.ID, string(p.IndexKind), cfg); err != nil {
		return nil, err
	}

	s.libraries[lib.ID] = lib
	s.touchWrite()
	s.log.Debug("library created", "library_id", lib.ID, "index_kind", lib.IndexKind)
	return lib.Clone(), nil
}

// GetLibrary returns a copy of the library, or NotFound.
func (s *Store) GetLibrary(id string) (*entity.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib, ok := s.libraries[id]
	if !ok {
		return nil, vecerrors.New("store.get_library", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	return lib.Clone(), nil
}

// ListLibraries returns copies of every library, insertion order is not
// guaranteed (map iteration); callers that need determinism sort by id or
// created_at.
func (s *Store) ListLibraries() []*entity.Library {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Library, 0, len(s.libraries))
	for _, lib := range s.libraries {
		out = append(out, lib.Clone())
	}
	return out
}

// UpdateLibraryParams describes a partial library update; nil fields are
// left unchanged.
type UpdateLibraryParams struct {
	Name     *string
	Metadata map[string]any
}

// UpdateLibrary applies a partial update to an existing library.
func (s *Store) UpdateLibrary(id string, p UpdateLibraryParams) (*entity.Library, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[id]
	if !ok {
		return nil, vecerrors.New("store.update_library", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	if p.Name != nil {
		lib.Name = *p.Name
	}
	if p.Metadata != nil {
		lib.Metadata = p.Metadata
	}
	lib.UpdatedAt = time.Now().UTC()
	s.touchWrite()
	return lib.Clone(), nil
}

// DeleteLibrary cascades: every document's chunks, then the documents
// themselves, then the library and its index, are removed deterministically
// (iterating the library's own DocumentIDs order).
func (s *Store) DeleteLibrary(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[id]
	if !ok {
		return vecerrors.New("store.delete_library", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}

	for _, docID := range append([]string(nil), lib.DocumentIDs...) {
		s.deleteDocumentLocked(docID)
	}
	delete(s.libraries, id)
	s.registry.Drop(id)
	s.touchWrite()
	return nil
}

// --- Document ---

// CreateDocument allocates an id, appends it to the library's document
// list, and persists it.
func (s *Store) CreateDocument(libraryID, name string, metadata map[string]any) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lib, ok := s.libraries[libraryID]
	if !ok {
		return nil, vecerrors.New("store.create_document", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}

	now := time.Now().UTC()
	doc := &entity.Document{
		ID:        newID(),
		LibraryID: libraryID,
		Name:      name,
		Metadata:  metadata,
		ChunkIDs:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.documents[doc.ID] = doc
	lib.DocumentIDs = append(lib.DocumentIDs, doc.ID)
	lib.UpdatedAt = now
	s.touchWrite()
	return doc.Clone(), nil
}

// GetDocument returns a copy of the document, or NotFound.
func (s *Store) GetDocument(id string) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, vecerrors.New("store.get_document", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	return doc.Clone(), nil
}

// ListDocuments returns copies of every document belonging to libraryID, in
// the library's DocumentIDs order.
func (s *Store) ListDocuments(libraryID string) ([]*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib, ok := s.libraries[libraryID]
	if !ok {
		return nil, vecerrors.New("store.list_documents", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}
	out := make([]*entity.Document, 0, len(lib.DocumentIDs))
	for _, id := range lib.DocumentIDs {
		if doc, ok := s.documents[id]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

// UpdateDocument applies a partial update (nil metadata leaves it unchanged).
func (s *Store) UpdateDocument(id, name string, metadata map[string]any) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, vecerrors.New("store.update_document", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	if name != "" {
		doc.Name = name
	}
	if metadata != nil {
		doc.Metadata = metadata
	}
	doc.UpdatedAt = time.Now().UTC()
	s.touchWrite()
	return doc.Clone(), nil
}

// DeleteDocument cascades to its chunks, then detaches and removes the
// document from its parent library.
func (s *Store) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return vecerrors.New("store.delete_document", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	s.deleteDocumentLocked(id)
	s.touchWrite()
	return nil
}

// deleteDocumentLocked assumes the lock is already held by the caller.
func (s *Store) deleteDocumentLocked(id string) {
	if !s.mu.HeldByCaller() {
		panic("store: deleteDocumentLocked called without the lock held")
	}
	doc, ok := s.documents[id]
	if !ok {
		return
	}
	for _, chunkID := range append([]string(nil), doc.ChunkIDs...) {
		s.deleteChunkLocked(chunkID)
	}
	delete(s.documents, id)

	if lib, ok := s.libraries[doc.LibraryID]; ok {
		lib.DocumentIDs = removeString(lib.DocumentIDs, id)
	}
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
