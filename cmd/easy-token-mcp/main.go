package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/ironsheep/easy-token-mcp/internal/assets"
	"github.com/ironsheep/easy-token-mcp/internal/editor"
	"github.com/ironsheep/easy-token-mcp/internal/entity"
	"github.com/ironsheep/easy-token-mcp/internal/server"
	"github.com/ironsheep/easy-token-mcp/internal/settings"
	"github.com/ironsheep/easy-token-mcp/internal/storage"
	"github.com/ironsheep/easy-token-mcp/internal/viewport"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("easy-token-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("easy-token-mcp - MCP server for editing token and avatar images")
			fmt.Println()
			fmt.Println("Usage: easy-token-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  EASY_TOKEN_DATA=<dir>        Storage root for uploads (default ./data)")
			fmt.Println("  EASY_TOKEN_SETTINGS=<file>   Settings file (default <data>/easy-token.json)")
			fmt.Println("  EASY_TOKEN_ENTITIES=<file>   Actors and scenes JSON (default: none)")
			fmt.Println("  EASY_TOKEN_ASSETS=<dir>      Border and overlay images overriding the built-ins")
			fmt.Println("  EASY_TOKEN_LOG_LEVEL=debug   Enable debug logging")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	debug := os.Getenv("EASY_TOKEN_LOG_LEVEL") == "debug"
	if debug {
		log.Printf("Easy Token MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	srv, err := setup(debug)
	if err != nil {
		log.Fatalf("Startup error: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// setup wires storage, settings, entities and assets from the environment.
func setup(debug bool) (*server.Server, error) {
	root := getenv("EASY_TOKEN_DATA", "data")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	disk := storage.NewDisk(root)

	store, err := settings.Open(getenv("EASY_TOKEN_SETTINGS", filepath.Join(root, "easy-token.json")))
	if err != nil {
		return nil, err
	}

	ents := entity.NewStore(nil, nil)
	if p := os.Getenv("EASY_TOKEN_ENTITIES"); p != "" {
		if ents, err = entity.Load(p); err != nil {
			return nil, err
		}
	}

	var assetDir fs.FS
	if dir := os.Getenv("EASY_TOKEN_ASSETS"); dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, errors.New("EASY_TOKEN_ASSETS is not a directory: " + dir)
		}
		assetDir = os.DirFS(dir)
	}

	if debug {
		log.Printf("Data: %s, settings: %s, %d actors", root, store.Path(), len(ents.Actors()))
	}

	return server.New(editor.Deps{
		Entities: ents,
		Uploader: disk,
		Textures: viewport.NewTextureLoader(disk.FS()),
		Logger:   log.Default(),
	}, store, assets.NewResolver(assetDir)), nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
