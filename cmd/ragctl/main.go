// Package main provides the ragctl CLI for managing the embedding index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/godagent/ragbot/internal/config"
	"github.com/godagent/ragbot/internal/embedding"
	ghclient "github.com/godagent/ragbot/internal/github"
	"github.com/godagent/ragbot/internal/ingest"
	mcpserver "github.com/godagent/ragbot/internal/mcp"
	"github.com/godagent/ragbot/internal/retriever"
	"github.com/godagent/ragbot/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Embedding index management tool",
	Long:  "CLI for ingesting documents, searching the index and serving it over MCP",
}

var (
	flagReplace bool
	flagName    string
	flagTopK    int
	flagMinSim  float64
	flagAll     bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>",
	Short: "Chunk, embed and store local files",
	Long: `Ingests a single file or every .md/.txt file under a directory.

Environment variables:
  OPENROUTER_API_KEY  API key for the embeddings endpoint (required)
  EMBEDDING_MODEL     Embedding model identifier
  DB_PATH             SQLite database file (default: ragbot.sqlite3)`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var ingestRepoCmd = &cobra.Command{
	Use:   "ingest-repo <owner/repo> [base-path]",
	Short: "Ingest markdown docs from a GitHub repository",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runIngestRepo,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List indexed documents",
	RunE:  runDocs,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every document from the index",
	RunE:  runClear,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index statistics",
	RunE:  runStatus,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the index over MCP on stdio",
	RunE:  runMCP,
}

func init() {
	ingestCmd.Flags().BoolVar(&flagReplace, "replace", false, "replace existing documents of the same name")
	ingestCmd.Flags().StringVar(&flagName, "name", "", "document name for a single file (default: file name)")
	ingestRepoCmd.Flags().BoolVar(&flagReplace, "replace", false, "replace existing documents of the same name")
	searchCmd.Flags().IntVar(&flagTopK, "top-k", 0, "number of results (default from RAG_TOP_K)")
	searchCmd.Flags().Float64Var(&flagMinSim, "min-sim", 0, "similarity floor (default from RAG_SIM_THRESHOLD)")
	searchCmd.Flags().BoolVar(&flagAll, "all", false, "skip the similarity floor")

	rootCmd.AddCommand(ingestCmd, ingestRepoCmd, searchCmd, docsCmd, deleteCmd, clearCmd, statusCmd, mcpCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openCore wires the store, embedder and pipeline shared by most
// commands. Callers must Close the returned store.
func openCore() (*config.Config, *store.Store, *ingest.Pipeline, *retriever.Retriever, error) {
	cfg, err := config.Load(false)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	client := embedding.NewClient(cfg.BaseURL, cfg.APIKey)
	embedder := embedding.NewEmbedder(client, cfg.EmbeddingModel, 0, cfg.RequestTimeout)
	pipeline := ingest.NewPipeline(embedder, st, cfg.ChunkSize, cfg.ChunkOverlap, slog.Default())
	ret := retriever.New(embedder, st, slog.Default())

	return cfg, st, pipeline, ret, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, st, pipeline, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		result, err := pipeline.IngestDir(ctx, path, flagReplace)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d/%d files, %d chunks in %s\n",
			result.SuccessfulDocs, result.TotalDocs, result.TotalChunks,
			result.Duration.Round(time.Second))
		for _, failed := range result.FailedDocs {
			fmt.Printf("  failed %s: %s\n", failed.Path, failed.Reason)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := flagName
	if name == "" {
		name = info.Name()
	}

	var res *ingest.Result
	if strings.HasSuffix(strings.ToLower(path), ".md") {
		res, err = pipeline.IngestMarkdown(ctx, name, string(data), flagReplace)
	} else {
		res, err = pipeline.IngestText(ctx, name, string(data), flagReplace)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %q: %d chunks\n", res.Name, res.Chunks)
	return nil
}

func runIngestRepo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, st, pipeline, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	owner, repo, ok := strings.Cut(args[0], "/")
	if !ok {
		return fmt.Errorf("expected owner/repo, got %q", args[0])
	}
	basePath := ""
	if len(args) > 1 {
		basePath = args[1]
	}

	gh, err := ghclient.NewClient()
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}
	fetcher := ghclient.NewFetcher(gh, owner, repo, basePath)

	fmt.Printf("Indexing markdown docs from %s...\n", fetcher.Repo())
	result, err := pipeline.IngestRepo(ctx, fetcher, fetcher.Repo(), flagReplace)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d/%d docs, %d chunks in %s\n",
		result.SuccessfulDocs, result.TotalDocs, result.TotalChunks,
		result.Duration.Round(time.Second))
	for _, failed := range result.FailedDocs {
		fmt.Printf("  failed %s: %s\n", failed.Path, failed.Reason)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, st, _, ret, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	topK := flagTopK
	if topK <= 0 {
		topK = cfg.TopK
	}
	minSim := flagMinSim
	if minSim <= 0 {
		minSim = cfg.SimThreshold
	}

	query := strings.Join(args, " ")
	results, err := ret.Search(ctx, query, topK, minSim, !flagAll)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No matching chunks.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%d. %s#%d  score=%.3f\n%s\n\n", i+1, r.Chunk.DocName, r.Chunk.Index, r.Similarity, r.Chunk.Text)
	}
	return nil
}

func runDocs(cmd *cobra.Command, args []string) error {
	_, st, _, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	docs, err := st.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}
	for _, d := range docs {
		fmt.Printf("%-40s %5d chunks  %s  %s\n", d.Name, d.ChunkCount, d.Model, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	_, st, _, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.DeleteDocument(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Printf("No document named %q\n", args[0])
		return nil
	}
	fmt.Printf("Deleted %q\n", args[0])
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	_, st, _, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	deleted, err := st.ClearAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d chunks\n", deleted)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, st, _, _, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	status, err := st.IndexStatus(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Documents: %d\nChunks:    %d\nDimension: %d\nModel:     %s\n",
		status.Documents, status.Chunks, status.Dimension, status.Model)
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	_, st, pipeline, ret, err := openCore()
	if err != nil {
		return err
	}
	defer st.Close()

	server := mcpserver.NewServer(&mcpserver.Config{
		Searcher: ret,
		Ingester: pipeline,
		Catalog:  st,
	})
	return server.Run(ctx)
}
