package store

import (
	"time"

	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/index"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

// CreateChunk validates the embedding length against the library's
// established dimension (set by the first chunk ever created in that
// library), inserts the chunk, appends it to the owning document's chunk
// list, and forwards the add to the library's index.
func (s *Store) CreateChunk(documentID, text string, embedding []float32, metadata map[string]any) (*entity.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, vecerrors.New("store.create_chunk", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	lib, ok := s.libraries[doc.LibraryID]
	if !ok {
		return nil, vecerrors.New("store.create_chunk", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}

	if err := s.checkDimensionLocked(lib, len(embedding)); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunk := &entity.Chunk{
		ID:         newID(),
		DocumentID: documentID,
		Text:       text,
		Embedding:  embedding,
		Metadata:   metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	idx, _ := s.registry.Get(lib.ID)
	if err := idx.Add(chunk.ID, chunk.Embedding); err != nil {
		return nil, err
	}

	s.establishDimensionLocked(lib, len(embedding))
	s.chunks[chunk.ID] = chunk
	doc.ChunkIDs = append(doc.ChunkIDs, chunk.ID)
	doc.UpdatedAt = now
	s.registry.MarkDirty(lib.ID)
	s.touchWrite()
	return chunk.Clone(), nil
}

// GetChunk returns a copy of the chunk, or NotFound.
func (s *Store) GetChunk(id string) (*entity.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunk, ok := s.chunks[id]
	if !ok {
		return nil, vecerrors.New("store.get_chunk", vecerrors.NotFound, vecerrors.ErrChunkNotFound)
	}
	return chunk.Clone(), nil
}

// ListChunks returns copies of every chunk belonging to documentID, in the
// document's ChunkIDs order.
func (s *Store) ListChunks(documentID string) ([]*entity.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return nil, vecerrors.New("store.list_chunks", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	out := make([]*entity.Chunk, 0, len(doc.ChunkIDs))
	for _, id := range doc.ChunkIDs {
		if chunk, ok := s.chunks[id]; ok {
			out = append(out, chunk.Clone())
		}
	}
	return out, nil
}

// UpdateChunk applies a partial update. A non-nil embedding is validated
// against the library's established dimension and forwarded to the index.
func (s *Store) UpdateChunk(id string, text *string, embedding []float32, metadata map[string]any) (*entity.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunk, ok := s.chunks[id]
	if !ok {
		return nil, vecerrors.New("store.update_chunk", vecerrors.NotFound, vecerrors.ErrChunkNotFound)
	}

	if embedding != nil {
		doc := s.documents[chunk.DocumentID]
		lib := s.libraries[doc.LibraryID]
		if err := s.checkDimensionLocked(lib, len(embedding)); err != nil {
			return nil, err
		}
		idx, _ := s.registry.Get(lib.ID)
		if err := idx.Update(id, embedding); err != nil {
			return nil, err
		}
		chunk.Embedding = embedding
		s.registry.MarkDirty(lib.ID)
	}
	if text != nil {
		chunk.Text = *text
	}
	if metadata != nil {
		chunk.Metadata = metadata
	}
	chunk.UpdatedAt = time.Now().UTC()
	s.touchWrite()
	return chunk.Clone(), nil
}

// DeleteChunk removes the chunk from the store, detaches it from its parent
// document, and forwards the delete to the library's index.
func (s *Store) DeleteChunk(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chunks[id]; !ok {
		return vecerrors.New("store.delete_chunk", vecerrors.NotFound, vecerrors.ErrChunkNotFound)
	}
	s.deleteChunkLocked(id)
	s.touchWrite()
	return nil
}

// deleteChunkLocked assumes the lock is already held by the caller.
func (s *Store) deleteChunkLocked(id string) {
	if !s.mu.HeldByCaller() {
		panic("store: deleteChunkLocked called without the lock held")
	}
	chunk, ok := s.chunks[id]
	if !ok {
		return
	}
	if doc, ok := s.documents[chunk.DocumentID]; ok {
		doc.ChunkIDs = removeString(doc.ChunkIDs, id)
		if lib, ok := s.libraries[doc.LibraryID]; ok {
			if idx, ok := s.registry.Get(lib.ID); ok {
				_ = idx.Delete(id) // already gone from the index is not an error here
				s.registry.MarkDirty(lib.ID)
			}
		}
	}
	delete(s.chunks, id)
}

// BulkCreateChunkParams is one element of a bulk-add request.
type BulkCreateChunkParams struct {
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// BulkCreateChunks inserts every chunk under documentID atomically: chunks
// are validated and built up front, so a dimension-mismatch anywhere in the
// batch leaves the store untouched rather than requiring a rollback. The
// index registry is only updated after every store insertion has succeeded,
// per §5's bulk-add atomicity rule; if the index rejects the batch, the
// store insertions are rolled back.
func (s *Store) BulkCreateChunks(documentID string, params []BulkCreateChunkParams) ([]*entity.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, vecerrors.New("store.bulk_create_chunks", vecerrors.NotFound, vecerrors.ErrDocumentNotFound)
	}
	lib, ok := s.libraries[doc.LibraryID]
	if !ok {
		return nil, vecerrors.New("store.bulk_create_chunks", vecerrors.NotFound, vecerrors.ErrLibraryNotFound)
	}

	established := lib.Dimension
	chunks := make([]*entity.Chunk, 0, len(params))
	now := time.Now().UTC()

	for _, p := range params {
		want := established
		if want == 0 {
			want = len(p.Embedding)
		}
		if len(p.Embedding) != want {
			return nil, vecerrors.Newf("store.bulk_create_chunks", vecerrors.DimensionMismatch,
				"expected dimension %d, got %d", want, len(p.Embedding))
		}
		established = want
		chunks = append(chunks, &entity.Chunk{
			ID:         newID(),
			DocumentID: documentID,
			Text:       p.Text,
			Embedding:  p.Embedding,
			Metadata:   p.Metadata,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	before := len(doc.ChunkIDs)
	for _, c := range chunks {
		s.chunks[c.ID] = c
		doc.ChunkIDs = append(doc.ChunkIDs, c.ID)
	}

	idx, _ := s.registry.Get(lib.ID)
	items := make([]index.Item, len(chunks))
	for i, c := range chunks {
		items[i] = index.Item{ID: c.ID, Vector: c.Embedding}
	}
	if err := idx.BulkAdd(items); err != nil {
		for _, c := range chunks {
			delete(s.chunks, c.ID)
			_ = idx.Delete(c.ID) // ids the index never received are simply absent
		}
		doc.ChunkIDs = doc.ChunkIDs[:before]
		return nil, err
	}
	doc.UpdatedAt = now
	s.establishDimensionLocked(lib, established)
	s.registry.MarkDirty(lib.ID)
	s.touchWrite()

	out := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.Clone()
	}
	return out, nil
}
