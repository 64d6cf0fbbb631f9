// Package main is the Mikake CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/mikake/internal/catalog"
	"github.com/hyperjump/mikake/internal/config"
	"github.com/hyperjump/mikake/internal/embedding"
	"github.com/hyperjump/mikake/internal/index"
	"github.com/hyperjump/mikake/internal/search"
	"github.com/hyperjump/mikake/internal/server"
	"github.com/hyperjump/mikake/internal/watcher"
	"github.com/hyperjump/mikake/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/mikake/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "mikake server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "rebuild":
		runRebuild()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("mikake version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (build progress, reference changes, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	// Build the index at startup. A failed initial build is not fatal:
	// the service starts not-ready and a later rebuild can succeed.
	if st, err := components.Manager.Rebuild(context.Background()); err != nil {
		logger.Error("initial index build failed", zap.Error(err))
	} else {
		logger.Info("index ready", zap.Int("vectors", st.IndexSize), zap.Int("products", st.Products))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		watchOpts := []watcher.WatcherOption{
			watcher.WithDebounce(time.Duration(cfg.Watch.DebounceMS) * time.Millisecond),
		}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(
			cfg.Catalog.ReferencesDir,
			cfg.Catalog.Extensions,
			func() {
				if _, err := components.Manager.Rebuild(context.Background()); err != nil {
					logger.Warn("watch-triggered rebuild failed", zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(components.Engine, components.Manager, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8001", "server URL")
	k := fs.Int("k", 5, "number of products to return")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: mikake search [flags] <image-file>")
		os.Exit(1)
	}
	imagePath := fs.Arg(0)
	imageBytes, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	response, err := searchViaHTTP(*serverURL, imagePath, imageBytes, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(response); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if len(response.Matches) == 0 {
			fmt.Println("No matches.")
			return
		}
		for i, m := range response.Matches {
			price := "-"
			if m.Price != nil {
				price = strconv.FormatFloat(*m.Price, 'f', 2, 64)
			}
			fmt.Printf("%d. %s (%s)  similarity=%.4f  ref=%s  price=%s\n",
				i+1, m.ProductName, m.ProductID, m.Similarity, m.RefFile, price)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, filename string, imageBytes []byte, k int) (*searchResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(imageBytes); err != nil {
		return nil, err
	}
	if err := mw.WriteField("k", strconv.Itoa(k)); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(serverURL+"/api/v1/search", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// searchResponse mirrors the server's search response shape.
type searchResponse struct {
	Success bool `json:"success"`
	Matches []struct {
		ProductID   string   `json:"product_id"`
		ProductName string   `json:"product_name"`
		Similarity  float64  `json:"similarity"`
		RefFile     string   `json:"ref_file"`
		Price       *float64 `json:"price"`
	} `json:"matches"`
	QueryTime int64 `json:"query_time_ms"`
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8001", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Post(*serverURL+"/api/v1/index/rebuild", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Rebuild failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Success   bool   `json:"success"`
		IndexSize int    `json:"index_size"`
		BuildID   string `json:"build_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt: %d vectors (build %s)\n", out.IndexSize, out.BuildID)
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Ready     bool   `json:"ready"`
	IndexSize int    `json:"index_size"`
	Products  int    `json:"products"`
	BuildID   string `json:"build_id,omitempty"`
	BuiltAt   string `json:"built_at,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8001", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("ready:       %t\n", status.Ready)
		fmt.Printf("index_size:  %d\n", status.IndexSize)
		fmt.Printf("products:    %d\n", status.Products)
		if status.BuildID != "" {
			fmt.Printf("build_id:    %s\n", status.BuildID)
		}
		if status.Ready && status.BuiltAt != "" {
			fmt.Printf("built_at:    %s\n", status.BuiltAt)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Source   catalog.Source
	Manager  *index.Manager
	Engine   *search.Engine
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Source != nil {
		_ = c.Source.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.LibraryPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.ResizeSize,
		cfg.Embedding.CropSize,
	)
	if err != nil {
		logger.Warn("failed to load ONNX model, falling back to mock embedder",
			zap.String("model_path", cfg.Embedding.ModelPath),
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	source, err := catalog.NewSource(&cfg.Catalog)
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("failed to initialize catalog source: %w", err)
	}

	builderOpts := []catalog.BuilderOption{}
	if debug {
		builderOpts = append(builderOpts, catalog.WithLogger(logger))
	}
	builder := catalog.NewBuilder(source, embedder, cfg.Catalog.ReferencesDir, cfg.Catalog.Extensions, builderOpts...)
	manager := index.NewManager(builder, cfg.Embedding.Dimensions, index.WithLogger(logger))
	engine := search.NewEngine(embedder, manager, &cfg.Search, logger)

	return &Components{
		Embedder: embedder,
		Source:   source,
		Manager:  manager,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`mikake - Visual product similarity search

Usage:
  mikake server [flags]           Start the HTTP server
  mikake search [flags] <image>   Find products similar to an image
  mikake rebuild [flags]          Rebuild the index from the catalog
  mikake status [flags]           Show index status
  mikake version                  Show version
  mikake help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/mikake/config.yaml)
  --debug            Enable debug logging (build progress, reference changes, etc.)

Search Flags:
  --server string    Server URL (default: http://localhost:8001)
  --k int            Number of products to return (default: 5)
  --output string    Output format: text or json (default: text)

Rebuild Flags:
  --server string    Server URL (default: http://localhost:8001)

Status Flags:
  --server string    Server URL (default: http://localhost:8001)
  --output string    Output format: text or json (default: text)

Examples:
  mikake server
  mikake search photo.jpg
  mikake search --k 3 --output json photo.jpg
  mikake rebuild
  mikake status --output json`)
}
