// Package vectorcore is the storage kernel for a lightweight vector
// database: a three-level library/document/chunk hierarchy backed by a
// pluggable approximate-nearest-neighbor index per library, a declarative
// metadata filter pipeline, and atomic JSON snapshot persistence.
//
// # Quick start
//
//	cfg, _ := config.FromEnv()
//	eng := vectorcore.New(cfg, corelog.NewStd(corelog.LevelInfo))
//
//	lib, _ := eng.CreateLibrary(store.CreateLibraryParams{
//		Name:      "docs",
//		IndexKind: entity.IndexFlat,
//	})
//	doc, _ := eng.CreateDocument(lib.ID, "readme", nil)
//	chunk, _ := eng.CreateChunk(doc.ID, "hello world", []float32{0.1, 0.2}, nil)
//
//	resp, _ := eng.Query(query.Request{LibraryID: lib.ID, Vector: []float32{0.1, 0.2}, K: 5})
//
// The HTTP transport, request/response DTO validation, and embedding
// generation are out of scope: Engine is the one Go-native surface every
// external adapter (cmd/vectorcore included) is built on top of.
package vectorcore
