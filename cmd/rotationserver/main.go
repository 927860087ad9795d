package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/keyfleet/ticket-key-service/cmd/flags"
	"github.com/keyfleet/ticket-key-service/cryptoutils"
	"github.com/keyfleet/ticket-key-service/fleetsync"
	"github.com/keyfleet/ticket-key-service/httpserver"
	"github.com/keyfleet/ticket-key-service/interfaces"
	"github.com/keyfleet/ticket-key-service/rotation"
	"github.com/keyfleet/ticket-key-service/seedfile"
	"github.com/keyfleet/ticket-key-service/storage"
)

// sealSalt pins the argon2 salt for cache sealing. Changing it makes every
// existing sealed document unreadable.
var sealSalt = []byte("ticket-key-service/cache/v1")

var serverFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	flags.MetricsAddrFlag,
	flags.InventoryFlag,
	flags.CacheURIFlag,
	flags.SealPassphraseFileFlag,
	flags.MinIntervalFlag,
	flags.PprofFlag,
	flags.DrainSecondsFlag,
}, flags.CommonFlags...)

func main() {
	// A .env next to the binary is a convenience for local runs only.
	godotenv.Load()

	app := &cli.App{
		Name:  "rotationserver",
		Usage: "Serve the TLS session ticket key rotation API",
		Flags: serverFlags,
		Commands: []*cli.Command{
			{
				Name:  "bootstrap",
				Usage: "Create a region's initial ring from a seed file (out-of-band, direct store access)",
				Flags: []cli.Flag{
					flags.RegionFlag,
					flags.KeyIDFlag,
					&cli.StringFlag{
						Name:     "seed-file",
						Required: true,
						Usage:    "seed file with three keys, oldest to newest",
					},
				},
				Action: runBootstrap,
			},
		},
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			logger := flags.SetupLogger(cCtx)

			inventory, err := fleetsync.LoadInventory(cCtx.String(flags.InventoryFlag.Name))
			if err != nil {
				logger.Error("Failed to load inventory", "err", err)
				return err
			}

			factory := storage.NewFactory(logger)
			if passphraseFile := cCtx.String(flags.SealPassphraseFileFlag.Name); passphraseFile != "" {
				passphrase, err := os.ReadFile(passphraseFile)
				if err != nil {
					logger.Error("Failed to read seal passphrase", "err", err)
					return err
				}
				passphrase = bytes.TrimRight(passphrase, "\r\n")
				factory = factory.WithSealKey(cryptoutils.DeriveSealKey(passphrase, sealSalt))
				logger.Info("Cache sealing enabled")
			}

			stores, err := buildRegionStores(factory, inventory, cCtx.String(flags.CacheURIFlag.Name))
			if err != nil {
				logger.Error("Failed to configure cache stores", "err", err)
				return err
			}

			engine := rotation.NewEngine(nil, cCtx.Duration(flags.MinIntervalFlag.Name))
			coordinator := rotation.NewCoordinator(storage.NewRouter(stores), engine, logger)

			channel := fleetsync.NewTextChannel(fleetsync.DefaultExecTimeout, logger)
			pusher := fleetsync.NewPusher(fleetsync.NewClient(channel, logger), logger)
			handler := httpserver.NewHandler(coordinator, inventory, pusher, logger)

			cfg := flags.ConfigureServer(cCtx, logger, listenAddr)
			server, err := httpserver.New(cfg, handler)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server",
				"regions", len(stores),
				"minInterval", engine.MinInterval().String())
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runBootstrap creates the initial ring for one key identifier directly in
// the region's cache store. The running server picks it up on the next
// load; rings are created exactly once.
func runBootstrap(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	inventory, err := fleetsync.LoadInventory(cCtx.String(flags.InventoryFlag.Name))
	if err != nil {
		return err
	}

	factory := storage.NewFactory(logger)
	if passphraseFile := cCtx.String(flags.SealPassphraseFileFlag.Name); passphraseFile != "" {
		passphrase, err := os.ReadFile(passphraseFile)
		if err != nil {
			return err
		}
		passphrase = bytes.TrimRight(passphrase, "\r\n")
		factory = factory.WithSealKey(cryptoutils.DeriveSealKey(passphrase, sealSalt))
	}

	stores, err := buildRegionStores(factory, inventory, cCtx.String(flags.CacheURIFlag.Name))
	if err != nil {
		return err
	}

	region := interfaces.Region(cCtx.String(flags.RegionFlag.Name))
	keyID := interfaces.KeyID(cCtx.String(flags.KeyIDFlag.Name))

	seeds, err := seedfile.Read(cCtx.String("seed-file"))
	if err != nil {
		return err
	}

	engine := rotation.NewEngine(nil, cCtx.Duration(flags.MinIntervalFlag.Name))
	coordinator := rotation.NewCoordinator(storage.NewRouter(stores), engine, logger)
	if err := coordinator.Bootstrap(cCtx.Context, region, keyID, seeds, time.Now().UTC()); err != nil {
		return err
	}

	logger.Info("Ring bootstrapped",
		"region", region.String(),
		"keyID", keyID.String(),
		"third", seeds[2].Fingerprint())
	return nil
}

// buildRegionStores resolves each region's cache location. A --cache-uri
// override wins over the inventory's per-region cache_uri.
func buildRegionStores(factory *storage.Factory, inventory *fleetsync.Inventory, override string) (map[interfaces.Region]interfaces.CacheStore, error) {
	stores := make(map[interfaces.Region]interfaces.CacheStore, len(inventory.Regions))
	for _, region := range inventory.RegionNames() {
		uri := inventory.Regions[region].CacheURI
		if override != "" {
			uri = override
		}
		if uri == "" {
			return nil, fmt.Errorf("region %s has no cache_uri and no --cache-uri override was given", region)
		}

		location, err := interfaces.NewCacheStoreLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region, err)
		}
		store, err := factory.CacheStoreFor(location)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region, err)
		}
		stores[region] = store
	}
	return stores, nil
}
