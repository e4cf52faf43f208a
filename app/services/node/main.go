package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/hashledger/app/services/node/handlers"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/disk"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/memory"
	"github.com/ardanlabs/hashledger/foundation/blockchain/database/storage/snapshot"
	"github.com/ardanlabs/hashledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/hashledger/foundation/blockchain/state"
	"github.com/ardanlabs/hashledger/foundation/blockchain/worker"
	"github.com/ardanlabs/hashledger/foundation/events"
	"github.com/ardanlabs/hashledger/foundation/logger"
	"github.com/ardanlabs/hashledger/foundation/nameservice"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
		}
		State struct {
			Beneficiary  string `conf:"default:miner1"`
			GenesisFile  string `conf:"default:zblock/genesis.json"`
			Storage      string `conf:"default:disk,help:disk, snapshot or memory"`
			DBPath       string `conf:"default:zblock/blocks"`
			SnapshotFile string `conf:"default:zblock/blockchain_data.json"`
			Workers      int    `conf:"default:0,help:proof of work goroutines, 0 uses every cpu"`
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "hash chained ledger node",
		},
	}

	// Parse will set the defaults and then look for any overriding values
	// in environment variables and command line flags.
	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	// Display the current configuration to the logs.
	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The nameservice package provides name resolution for account addresses.
	// The names come from the file names in the zblock/accounts folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load account name service: %w", err)
	}

	// Logging the accounts for documentation in the logs.
	for account, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "account", account)
	}

	// =========================================================================
	// Blockchain Support

	// The genesis file holds the difficulty, reward and hash strategy every
	// block is checked against.
	gen, err := genesis.Load(cfg.State.GenesisFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Infow("startup", "status", "genesis file not found, using defaults", "file", cfg.State.GenesisFile)
		gen = genesis.Default()

	case err != nil:
		return fmt.Errorf("unable to load genesis file: %w", err)
	}

	// Need the private key file for the configured beneficiary so the account
	// can get credited with mining rewards. A new key is created on first run.
	beneficiary, err := loadBeneficiary(cfg.NameService.Folder, cfg.State.Beneficiary)
	if err != nil {
		return err
	}
	log.Infow("startup", "status", "beneficiary", "name", cfg.State.Beneficiary, "account", beneficiary)

	serializer, err := openStorage(cfg.State.Storage, cfg.State.DBPath, cfg.State.SnapshotFile, uint(gen.Difficulty))
	if err != nil {
		return err
	}

	workers := cfg.State.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the ledger node and manages the chain
	// database and provides an API for application support.
	st, err := state.New(context.Background(), state.Config{
		Beneficiary: beneficiary,
		Genesis:     gen,
		Serializer:  serializer,
		Workers:     workers,
		EvHandler:   ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker package implements the mining workflow. The worker will
	// register itself with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	// Construct the mux for the debug calls.
	debugMux := handlers.DebugMux(build, log, st)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	// Construct the mux for the public API calls.
	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		NS:       ns,
		Evts:     evts,
	})

	// Construct a server to service the requests against the mux.
	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Start the service listening for api requests.
	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}

// loadBeneficiary returns the account for the named key file, creating the
// key when the file doesn't exist.
func loadBeneficiary(folder string, name string) (database.AccountID, error) {
	path := filepath.Join(folder, name+".ecdsa")

	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return database.PublicKeyToAccountID(privateKey.PublicKey), nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("unable to load private key for node: %w", err)
	}

	if privateKey, err = crypto.GenerateKey(); err != nil {
		return "", fmt.Errorf("generating private key for node: %w", err)
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return "", fmt.Errorf("saving private key for node: %w", err)
	}

	return database.PublicKeyToAccountID(privateKey.PublicKey), nil
}

// openStorage constructs the serializer named by kind.
func openStorage(kind string, dbPath string, snapshotFile string, difficulty uint) (database.Serializer, error) {
	switch kind {
	case "disk":
		return disk.New(dbPath)
	case "snapshot":
		return snapshot.New(snapshotFile, difficulty)
	case "memory":
		return memory.New(), nil
	}

	return nil, fmt.Errorf("unknown storage %q", kind)
}
