package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/goviu/internal/config"
	"github.com/amaumene/goviu/internal/extractor"
	"github.com/amaumene/goviu/internal/fetch"
	"github.com/amaumene/goviu/internal/services/broadcast"
	"github.com/amaumene/goviu/internal/services/catalog"
	"github.com/amaumene/goviu/internal/services/store"
	"github.com/amaumene/goviu/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 2 {
		return fmt.Errorf("usage: %s <url>", os.Args[0])
	}
	rawURL := os.Args[1]

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 3. Initialize downloader and resolvers
	downloader := fetch.NewDownloader(cfg, logger)

	catalogClient := catalog.NewClient(downloader, logger)
	storeResolver := store.NewResolver(downloader, cfg, logger)
	broadcastResolver := broadcast.NewResolver(downloader, logger)

	registry := extractor.NewRegistry(
		&extractor.CatalogPlaylist{Client: catalogClient},
		&extractor.CatalogItem{Client: catalogClient},
		&extractor.Store{Resolver: storeResolver},
		&extractor.Broadcast{Resolver: broadcastResolver},
	)

	resolver, ok := registry.Lookup(rawURL)
	if !ok {
		return fmt.Errorf("no resolver matches %s", rawURL)
	}
	logger.WithField("resolver", resolver.Name()).Info("Resolving URL")

	// The catalog session is only needed for catalog URLs; the token
	// lives for the rest of the process.
	switch resolver.(type) {
	case *extractor.CatalogItem, *extractor.CatalogPlaylist:
		if err := catalogClient.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize catalog session: %w", err)
		}
	}

	result, err := resolver.Resolve(ctx, rawURL)
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(encoded))

	return nil
}
