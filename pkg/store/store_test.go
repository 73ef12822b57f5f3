package store

import (
	"testing"

	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/vecerrors"
)

func newTestLibrary(t *testing.T, s *Store) *entity.Library {
	t.Helper()
	lib, err := s.CreateLibrary(CreateLibraryParams{Name: "lib", IndexKind: entity.IndexFlat})
	if err != nil {
		t.Fatalf("create library: %v", err)
	}
	return lib
}

func TestCreateLibraryUnknownKind(t *testing.T) {
	s := New(nil)
	_, err := s.CreateLibrary(CreateLibraryParams{Name: "lib", IndexKind: entity.IndexKind("bogus")})
	if vecerrors.KindOf(err) != vecerrors.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestCreateChunkEstablishesDimension(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, err := s.CreateDocument(lib.ID, "doc", nil)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	if _, err := s.CreateChunk(doc.ID, "hello", []float32{1, 0, 0}, nil); err != nil {
		t.Fatalf("create chunk: %v", err)
	}
	got, err := s.GetLibrary(lib.ID)
	if err != nil {
		t.Fatalf("get library: %v", err)
	}
	if got.Dimension != 3 {
		t.Fatalf("expected established dimension 3, got %d", got.Dimension)
	}

	if _, err := s.CreateChunk(doc.ID, "world", []float32{1, 0}, nil); vecerrors.KindOf(err) != vecerrors.DimensionMismatch {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}

func TestCascadeDeleteLibrary(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)
	chunk, _ := s.CreateChunk(doc.ID, "hello", []float32{1, 0}, nil)

	if err := s.DeleteLibrary(lib.ID); err != nil {
		t.Fatalf("delete library: %v", err)
	}
	if _, err := s.GetDocument(doc.ID); vecerrors.KindOf(err) != vecerrors.NotFound {
		t.Fatalf("expected document to be cascade-deleted, got %v", err)
	}
	if _, err := s.GetChunk(chunk.ID); vecerrors.KindOf(err) != vecerrors.NotFound {
		t.Fatalf("expected chunk to be cascade-deleted, got %v", err)
	}
}

func TestCascadeDeleteDocumentDetachesFromLibrary(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)

	if err := s.DeleteDocument(doc.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	got, _ := s.GetLibrary(lib.ID)
	for _, id := range got.DocumentIDs {
		if id == doc.ID {
			t.Fatalf("expected document id removed from library's DocumentIDs")
		}
	}
}

func TestDeleteChunkDetachesFromDocument(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)
	chunk, _ := s.CreateChunk(doc.ID, "hello", []float32{1, 0}, nil)

	if err := s.DeleteChunk(chunk.ID); err != nil {
		t.Fatalf("delete chunk: %v", err)
	}
	got, _ := s.GetDocument(doc.ID)
	if len(got.ChunkIDs) != 0 {
		t.Fatalf("expected chunk id removed from document's ChunkIDs, got %v", got.ChunkIDs)
	}
}

func TestBulkCreateChunksAllOrNothing(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)

	params := []BulkCreateChunkParams{
		{Text: "a", Embedding: []float32{1, 0}},
		{Text: "b", Embedding: []float32{0, 1}},
		{Text: "bad", Embedding: []float32{1, 0, 0}}, // wrong dimension
	}
	_, err := s.BulkCreateChunks(doc.ID, params)
	if vecerrors.KindOf(err) != vecerrors.DimensionMismatch {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}

	got, _ := s.GetDocument(doc.ID)
	if len(got.ChunkIDs) != 0 {
		t.Fatalf("expected no chunks committed after a failed bulk add, got %d", len(got.ChunkIDs))
	}
	gotLib, _ := s.GetLibrary(lib.ID)
	if gotLib.Dimension != 0 {
		t.Fatalf("expected library dimension to remain unestablished, got %d", gotLib.Dimension)
	}
}

func TestBulkCreateChunksSuccess(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)

	params := []BulkCreateChunkParams{
		{Text: "a", Embedding: []float32{1, 0}},
		{Text: "b", Embedding: []float32{0, 1}},
	}
	chunks, err := s.BulkCreateChunks(doc.ID, params)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	got, _ := s.GetDocument(doc.ID)
	if len(got.ChunkIDs) != 2 {
		t.Fatalf("expected 2 chunk ids on document, got %d", len(got.ChunkIDs))
	}
}

func TestRebuildIndex(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	doc, _ := s.CreateDocument(lib.ID, "doc", nil)
	_, _ = s.CreateChunk(doc.ID, "a", []float32{1, 0}, nil)
	_, _ = s.CreateChunk(doc.ID, "b", []float32{0, 1}, nil)

	result, err := s.RebuildIndex(lib.ID)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if result.TotalVectors != 2 {
		t.Fatalf("expected 2 vectors, got %d", result.TotalVectors)
	}
	if result.Kind != string(entity.IndexFlat) {
		t.Fatalf("expected kind flat, got %s", result.Kind)
	}
}

func TestWriteCounterIncrementsOnMutations(t *testing.T) {
	s := New(nil)
	lib := newTestLibrary(t, s)
	if s.WritesSinceSave() != 1 {
		t.Fatalf("expected 1 write after create library, got %d", s.WritesSinceSave())
	}
	_, _ = s.CreateDocument(lib.ID, "doc", nil)
	if s.WritesSinceSave() != 2 {
		t.Fatalf("expected 2 writes after create document, got %d", s.WritesSinceSave())
	}
	s.ResetWriteCounter()
	if s.WritesSinceSave() != 0 {
		t.Fatalf("expected counter reset to 0, got %d", s.WritesSinceSave())
	}
}
