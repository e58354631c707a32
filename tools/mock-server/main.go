// Package main runs a fake MercadoLibre API for local development. It
// serves a catalog fixture through the token, identity, listing, item and
// description endpoints so the harvester can run without real credentials.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/donaldgifford/meli-harvester/internal/meli/melitest"
)

func main() {
	port := flag.Int("port", 8089, "port to listen on")
	catalogFile := flag.String("catalog", "internal/meli/melitest/testdata/catalog.json", "path to catalog fixture")
	clientID := flag.String("client-id", "", "require this client id on the token endpoint")
	clientSecret := flag.String("client-secret", "", "require this client secret on the token endpoint")
	refreshToken := flag.String("refresh-token", "", "first refresh token to accept; empty accepts any")
	tokenTTL := flag.Int("token-ttl", 21600, "expires_in for issued access tokens, in seconds")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	srv, err := newServer(*port, *catalogFile, logger,
		melitest.WithCredentials(*clientID, *clientSecret, *refreshToken),
		melitest.WithTokenTTL(*tokenTTL),
	)
	if err != nil {
		logger.Error("failed to load catalog", "path", *catalogFile, "error", err)
		os.Exit(1)
	}

	logger.Info("starting mock MercadoLibre server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newServer(port int, catalogFile string, logger *slog.Logger, opts ...melitest.Option) (*http.Server, error) {
	catalog, err := melitest.LoadCatalog(catalogFile)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded catalog", "seller_id", catalog.SellerID, "listings", len(catalog.Listings))

	m := melitest.NewMarketplace(catalog, append(opts, melitest.WithLogger(logger))...)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      m.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}, nil
}
