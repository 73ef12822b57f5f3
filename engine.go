package vectorcore

import (
	"github.com/liliang-cn/vectorcore/pkg/config"
	"github.com/liliang-cn/vectorcore/pkg/corelog"
	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/query"
	"github.com/liliang-cn/vectorcore/pkg/snapshot"
	"github.com/liliang-cn/vectorcore/pkg/store"
)

// Engine binds the entity store, the query pipeline, and the snapshot
// manager into the one programmatic surface external adapters (an HTTP
// layer, cmd/vectorcore) are built on top of. It binds every row of the
// resource table: library/document/chunk CRUD, bulk chunk insertion,
// index rebuild, query, snapshot save/restore, and status.
type Engine struct {
	store    *store.Store
	pipeline *query.Pipeline
	snap     *snapshot.Manager
	cfg      config.Config
}

// New wires an Engine from process configuration. log may be nil, in which
// case logging is a no-op.
func New(cfg config.Config, log corelog.Logger) *Engine {
	s := store.New(log)
	return &Engine{
		store:    s,
		pipeline: query.New(s),
		snap:     snapshot.New(s, cfg.SnapshotDir, cfg.PersistenceEnabled),
		cfg:      cfg,
	}
}

// autosave must be called with the store's lock already held by the caller,
// so the triggering mutation and the threshold check/save happen in one
// continuous critical section — otherwise a concurrent write could land
// between the mutation and the save it's supposed to capture.
func (e *Engine) autosave() {
	_, _ = e.snap.MaybeAutosave(e.cfg.AutosaveThreshold)
}

// --- Library ---

func (e *Engine) CreateLibrary(p store.CreateLibraryParams) (*entity.Library, error) {
	e.store.Lock()
	defer e.store.Unlock()

	lib, err := e.store.CreateLibrary(p)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return lib, nil
}

func (e *Engine) GetLibrary(id string) (*entity.Library, error) { return e.store.GetLibrary(id) }

func (e *Engine) ListLibraries() []*entity.Library { return e.store.ListLibraries() }

func (e *Engine) UpdateLibrary(id string, p store.UpdateLibraryParams) (*entity.Library, error) {
	e.store.Lock()
	defer e.store.Unlock()

	lib, err := e.store.UpdateLibrary(id, p)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return lib, nil
}

func (e *Engine) DeleteLibrary(id string) error {
	e.store.Lock()
	defer e.store.Unlock()

	if err := e.store.DeleteLibrary(id); err != nil {
		return err
	}
	e.autosave()
	return nil
}

// RebuildIndex explicitly builds libraryID's index (libraries/{id}/build-index).
func (e *Engine) RebuildIndex(libraryID string) (*store.RebuildResult, error) {
	return e.store.RebuildIndex(libraryID)
}

// --- Document ---

func (e *Engine) CreateDocument(libraryID, name string, metadata map[string]any) (*entity.Document, error) {
	e.store.Lock()
	defer e.store.Unlock()

	doc, err := e.store.CreateDocument(libraryID, name, metadata)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return doc, nil
}

func (e *Engine) GetDocument(id string) (*entity.Document, error) { return e.store.GetDocument(id) }

func (e *Engine) ListDocuments(libraryID string) ([]*entity.Document, error) {
	return e.store.ListDocuments(libraryID)
}

func (e *Engine) UpdateDocument(id, name string, metadata map[string]any) (*entity.Document, error) {
	e.store.Lock()
	defer e.store.Unlock()

	doc, err := e.store.UpdateDocument(id, name, metadata)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return doc, nil
}

func (e *Engine) DeleteDocument(id string) error {
	e.store.Lock()
	defer e.store.Unlock()

	if err := e.store.DeleteDocument(id); err != nil {
		return err
	}
	e.autosave()
	return nil
}

// --- Chunk ---

func (e *Engine) CreateChunk(documentID, text string, embedding []float32, metadata map[string]any) (*entity.Chunk, error) {
	e.store.Lock()
	defer e.store.Unlock()

	chunk, err := e.store.CreateChunk(documentID, text, embedding, metadata)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return chunk, nil
}

func (e *Engine) GetChunk(id string) (*entity.Chunk, error) { return e.store.GetChunk(id) }

func (e *Engine) ListChunks(documentID string) ([]*entity.Chunk, error) {
	return e.store.ListChunks(documentID)
}

func (e *Engine) UpdateChunk(id string, text *string, embedding []float32, metadata map[string]any) (*entity.Chunk, error) {
	e.store.Lock()
	defer e.store.Unlock()

	chunk, err := e.store.UpdateChunk(id, text, embedding, metadata)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return chunk, nil
}

func (e *Engine) DeleteChunk(id string) error {
	e.store.Lock()
	defer e.store.Unlock()

	if err := e.store.DeleteChunk(id); err != nil {
		return err
	}
	e.autosave()
	return nil
}

// BulkCreateChunks inserts every chunk atomically: a dimension mismatch
// anywhere in params leaves the document untouched.
func (e *Engine) BulkCreateChunks(documentID string, params []store.BulkCreateChunkParams) ([]*entity.Chunk, error) {
	e.store.Lock()
	defer e.store.Unlock()

	chunks, err := e.store.BulkCreateChunks(documentID, params)
	if err != nil {
		return nil, err
	}
	e.autosave()
	return chunks, nil
}

// --- Query ---

// Query runs the search + filter pipeline (libraries/{id}/query).
func (e *Engine) Query(req query.Request) (*query.Response, error) {
	return e.pipeline.Run(req)
}

// --- Snapshot ---

// SaveSnapshot performs an atomic, crash-safe write of the full entity
// state. Returns Unavailable if persistence is disabled.
func (e *Engine) SaveSnapshot() (*snapshot.Stats, error) {
	return e.snap.Save()
}

// RestoreSnapshot clears the store and loads the latest snapshot from disk.
// Returns NotFound if no snapshot exists, Unavailable if persistence is
// disabled.
func (e *Engine) RestoreSnapshot() (*snapshot.Stats, error) {
	return e.snap.Restore()
}

// Status reports entity counts and the autosave state.
type Status struct {
	Libraries          int
	Documents          int
	Chunks             int
	PersistenceEnabled bool
	WritesSinceSave    int
	AutosaveThreshold  int
}

// Status returns counts and autosave state, for the `status` resource.
func (e *Engine) Status() Status {
	libs := e.store.ListLibraries()
	documents, chunks := 0, 0
	for _, lib := range libs {
		docs, err := e.store.ListDocuments(lib.ID)
		if err != nil {
			continue
		}
		documents += len(docs)
		for _, doc := range docs {
			cs, err := e.store.ListChunks(doc.ID)
			if err != nil {
				continue
			}
			chunks += len(cs)
		}
	}
	return Status{
		Libraries:          len(libs),
		Documents:          documents,
		Chunks:             chunks,
		PersistenceEnabled: e.snap.Enabled(),
		WritesSinceSave:    e.store.WritesSinceSave(),
		AutosaveThreshold:  e.cfg.AutosaveThreshold,
	}
}
