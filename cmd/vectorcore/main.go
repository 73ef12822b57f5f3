// Command vectorcore is a CLI wrapper around the vectorcore Engine, grounded
// on the teacher's cmd/sqvect/main.go command-tree shape (rootCmd,
// persistent flags, RunE closures) but re-pointed at the in-memory
// library/document/chunk engine instead of a SQLite-backed store.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/vectorcore"
	"github.com/liliang-cn/vectorcore/pkg/config"
	"github.com/liliang-cn/vectorcore/pkg/corelog"
	"github.com/liliang-cn/vectorcore/pkg/entity"
	"github.com/liliang-cn/vectorcore/pkg/filter"
	"github.com/liliang-cn/vectorcore/pkg/query"
	"github.com/liliang-cn/vectorcore/pkg/store"
)

var (
	verbose bool
	eng     *vectorcore.Engine
)

var rootCmd = &cobra.Command{
	Use:   "vectorcore",
	Short: "CLI for the vectorcore vector storage engine",
	Long:  `A command-line interface for managing libraries, documents, chunks, and queries against an in-process vectorcore engine.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		level := corelog.LevelInfo
		if verbose {
			level = corelog.LevelDebug
		}
		eng = vectorcore.New(cfg, corelog.NewStd(level))
		return nil
	},
}

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage libraries",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		configStr, _ := cmd.Flags().GetString("config")

		var indexConfig map[string]any
		if configStr != "" {
			if err := json.Unmarshal([]byte(configStr), &indexConfig); err != nil {
				return fmt.Errorf("invalid index config JSON: %w", err)
			}
		}

		lib, err := eng.CreateLibrary(store.CreateLibraryParams{
			Name:        args[0],
			IndexKind:   entity.IndexKind(kind),
			IndexConfig: indexConfig,
		})
		if err != nil {
			return fmt.Errorf("failed to create library: %w", err)
		}
		fmt.Printf("Library '%s' created with id %s\n", lib.Name, lib.ID)
		return nil
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all libraries",
	RunE: func(cmd *cobra.Command, args []string) error {
		libs := eng.ListLibraries()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(libs)
		}
		fmt.Printf("Libraries (%d):\n", len(libs))
		for _, lib := range libs {
			fmt.Printf("  %s  %-20s  kind=%s  documents=%d\n", lib.ID, lib.Name, lib.IndexKind, len(lib.DocumentIDs))
		}
		return nil
	},
}

var libraryGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a library by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := eng.GetLibrary(args[0])
		if err != nil {
			return fmt.Errorf("failed to get library: %w", err)
		}
		return printJSON(lib)
	},
}

var libraryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a library and everything under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eng.DeleteLibrary(args[0]); err != nil {
			return fmt.Errorf("failed to delete library: %w", err)
		}
		fmt.Printf("Library '%s' deleted\n", args[0])
		return nil
	},
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index <library-id>",
	Short: "Explicitly rebuild a library's index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := eng.RebuildIndex(args[0])
		if err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
		fmt.Printf("Index for library '%s' rebuilt: %d vectors, dimension %d\n",
			result.LibraryID, result.TotalVectors, result.Dimension)
		return nil
	},
}

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage documents",
}

var documentCreateCmd = &cobra.Command{
	Use:   "create <library-id> <name>",
	Short: "Create a document in a library",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := eng.CreateDocument(args[0], args[1], nil)
		if err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}
		fmt.Printf("Document '%s' created with id %s\n", doc.Name, doc.ID)
		return nil
	},
}

var documentListCmd = &cobra.Command{
	Use:   "list <library-id>",
	Short: "List documents in a library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := eng.ListDocuments(args[0])
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(docs)
		}
		fmt.Printf("Documents (%d):\n", len(docs))
		for _, doc := range docs {
			fmt.Printf("  %s  %-20s  chunks=%d\n", doc.ID, doc.Name, len(doc.ChunkIDs))
		}
		return nil
	},
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Manage chunks",
}

var chunkAddCmd = &cobra.Command{
	Use:   "add <document-id>",
	Short: "Add a chunk to a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		metadata, err := parseMetadata(metadataStr)
		if err != nil {
			return err
		}

		chunk, err := eng.CreateChunk(args[0], text, vector, metadata)
		if err != nil {
			return fmt.Errorf("failed to add chunk: %w", err)
		}
		fmt.Printf("Chunk added with id %s\n", chunk.ID)
		return nil
	},
}

var chunkBulkAddCmd = &cobra.Command{
	Use:   "bulk-add <document-id> <json-file>",
	Short: "Add many chunks to a document atomically from a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		var params []store.BulkCreateChunkParams
		if err := json.Unmarshal(data, &params); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}

		chunks, err := eng.BulkCreateChunks(args[0], params)
		if err != nil {
			return fmt.Errorf("bulk add failed: %w", err)
		}
		fmt.Printf("Added %d chunks\n", len(chunks))
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <library-id>",
	Short: "Run a k-nearest-neighbor query against a library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("top-k")
		filterStr, _ := cmd.Flags().GetString("filter")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		req := query.Request{LibraryID: args[0], Vector: vector, K: k}
		if filterStr != "" {
			var node filter.Node
			if err := json.Unmarshal([]byte(filterStr), &node); err != nil {
				return fmt.Errorf("invalid filter JSON: %w", err)
			}
			expr, err := filter.Compile(&node)
			if err != nil {
				return fmt.Errorf("invalid filter: %w", err)
			}
			req.Filter = expr
		}

		resp, err := eng.Query(req)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(resp)
		}
		fmt.Printf("Found %d matches in %.2fms:\n", len(resp.Matches), resp.QueryTimeMS)
		for i, m := range resp.Matches {
			fmt.Printf("%d. %s (score: %.4f)\n", i+1, m.Chunk.ID, m.Score)
			if verbose && m.Chunk.Text != "" {
				fmt.Printf("   %s\n", m.Chunk.Text)
			}
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage snapshot persistence",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Atomically write a snapshot of the entire store",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := eng.SaveSnapshot()
		if err != nil {
			return fmt.Errorf("save failed: %w", err)
		}
		fmt.Printf("Snapshot saved to %s: %d libraries, %d documents, %d chunks\n",
			stats.Path, stats.Libraries, stats.Documents, stats.Chunks)
		return nil
	},
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Clear the store and load the latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := eng.RestoreSnapshot()
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Snapshot restored from %s: %d libraries, %d documents, %d chunks\n",
			stats.Path, stats.Libraries, stats.Documents, stats.Chunks)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show entity counts and autosave state",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := eng.Status()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(status)
		}
		fmt.Printf("Libraries: %d\nDocuments: %d\nChunks: %d\n", status.Libraries, status.Documents, status.Chunks)
		fmt.Printf("Persistence enabled: %t\n", status.PersistenceEnabled)
		fmt.Printf("Writes since save: %d (autosave threshold: %d)\n", status.WritesSinceSave, status.AutosaveThreshold)
		return nil
	},
}

func parseVector(str string) ([]float32, error) {
	if str == "" {
		return nil, fmt.Errorf("vector is required")
	}
	parts := strings.Split(str, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format: %w", err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

func parseMetadata(str string) (map[string]any, error) {
	if str == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(str), &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}
	return metadata, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	libraryCreateCmd.Flags().String("kind", string(entity.IndexFlat), "Index kind (flat/ivf)")
	libraryCreateCmd.Flags().String("config", "", "Index config as JSON")
	libraryListCmd.Flags().Bool("json", false, "Output as JSON")

	documentListCmd.Flags().Bool("json", false, "Output as JSON")

	chunkAddCmd.Flags().String("text", "", "Chunk text")
	chunkAddCmd.Flags().String("vector", "", "Embedding values (comma-separated)")
	chunkAddCmd.Flags().String("metadata", "", "Metadata as JSON")
	_ = chunkAddCmd.MarkFlagRequired("vector")

	queryCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	queryCmd.Flags().Int("top-k", 10, "Number of results")
	queryCmd.Flags().String("filter", "", "Declarative filter as JSON")
	queryCmd.Flags().Bool("json", false, "Output as JSON")
	_ = queryCmd.MarkFlagRequired("vector")

	statusCmd.Flags().Bool("json", false, "Output as JSON")

	libraryCmd.AddCommand(libraryCreateCmd, libraryListCmd, libraryGetCmd, libraryDeleteCmd)
	documentCmd.AddCommand(documentCreateCmd, documentListCmd)
	chunkCmd.AddCommand(chunkAddCmd, chunkBulkAddCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotRestoreCmd)

	rootCmd.AddCommand(libraryCmd, documentCmd, chunkCmd, buildIndexCmd, queryCmd, snapshotCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
