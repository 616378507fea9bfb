package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"go.uber.org/zap"

	"github.com/ardanlabs/dposchain/app/services/node/handlers"
	"github.com/ardanlabs/dposchain/business/core/chain"
	"github.com/ardanlabs/dposchain/business/sys/secrets"
	"github.com/ardanlabs/dposchain/foundation/blockchain/genesis"
	"github.com/ardanlabs/dposchain/foundation/blockchain/slots"
	"github.com/ardanlabs/dposchain/foundation/blockchain/store"
	"github.com/ardanlabs/dposchain/foundation/logger"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

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
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:8080"`
			PrivateHost     string        `conf:"default:0.0.0.0:9080"`
		}
		Chain struct {
			ModuleAlias      string        `conf:"default:mainnet"`
			ActiveDelegates  int           `conf:"default:101"`
			MaxTransactions  int           `conf:"default:25"`
			MaxPayloadLength int           `conf:"default:1048576"`
			BlockTime        time.Duration `conf:"default:10s"`
			DBPath           string        `conf:"default:zblock/store"`
			GenesisPath      string        `conf:"default:zblock/genesis.json"`
			SecretsPath      string        `conf:"default:zblock/secrets.yaml"`
			KnownPeers       []string      `conf:"default:0.0.0.0:9080;0.0.0.0:9180"`
			RequestTimeout   time.Duration `conf:"default:5s"`

			SyncInterval        time.Duration `conf:"default:10s"`
			BlockReceiptTimeout time.Duration `conf:"default:5s"`
			FetchLimit          int           `conf:"default:34"`

			BroadcastInterval     time.Duration `conf:"default:3s"`
			BroadcastReleaseLimit int           `conf:"default:10"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

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

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Chain Support

	ev := func(v string, args ...any) {
		log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
	}

	db, err := store.OpenBadger(cfg.Chain.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	gen, err := genesis.Load(cfg.Chain.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	maxHeight, err := db.MaxHeight()
	if err != nil {
		return fmt.Errorf("checking store height: %w", err)
	}
	if maxHeight == 0 {
		for _, account := range gen.Accounts() {
			rec := store.Account{
				Address:    account.Address,
				PublicKey:  account.PublicKey,
				Balance:    account.Balance,
				IsDelegate: account.IsDelegate,
				VoteWeight: account.VoteWeight,
			}
			if err := db.PutAccountDirect(rec); err != nil {
				return fmt.Errorf("seeding genesis account %s: %w", account.Address, err)
			}
		}
		log.Infow("startup", "status", "seeded genesis accounts", "count", len(gen.Accounts()))
	}

	clock := slots.New(gen.Date, cfg.Chain.BlockTime, cfg.Chain.ActiveDelegates)

	c, err := chain.New(chain.Config{
		ModuleAlias:      cfg.Chain.ModuleAlias,
		Host:             cfg.Web.PrivateHost,
		ActiveDelegates:  cfg.Chain.ActiveDelegates,
		MaxTransactions:  cfg.Chain.MaxTransactions,
		MaxPayloadLength: cfg.Chain.MaxPayloadLength,
		Clock:            clock,
		Store:            db,
		KnownPeers:       cfg.Chain.KnownPeers,
		RequestTimeout:   cfg.Chain.RequestTimeout,

		SyncInterval:        cfg.Chain.SyncInterval,
		BlockReceiptTimeout: cfg.Chain.BlockReceiptTimeout,
		FetchLimit:          cfg.Chain.FetchLimit,

		BroadcastInterval:     cfg.Chain.BroadcastInterval,
		BroadcastReleaseLimit: cfg.Chain.BroadcastReleaseLimit,

		EvHandler: ev,
	}, gen.Block())
	if err != nil {
		return fmt.Errorf("constructing chain: %w", err)
	}

	delegateSecrets, err := secrets.Load(cfg.Chain.SecretsPath)
	if err != nil {
		return fmt.Errorf("loading delegate secrets: %w", err)
	}
	for _, s := range delegateSecrets {
		publicKey, err := c.LoadDelegate(s)
		if err != nil {
			log.Errorw("startup", "status", "unable to load delegate", "ERROR", err)
			continue
		}
		log.Infow("startup", "status", "delegate loaded", "publicKey", publicKey)
	}

	c.Run()
	defer c.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log)

	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Chain:    c,
		Store:    db,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start Private Service

	log.Infow("startup", "status", "initializing V1 private API support")

	privateMux := handlers.PrivateMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Chain:    c,
		Store:    db,
	})

	private := http.Server{
		Addr:         cfg.Web.PrivateHost,
		Handler:      privateMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "private api router started", "host", private.Addr)
		serverErrors <- private.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancelPri := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPri()

		log.Infow("shutdown", "status", "shutdown private API started")
		if err := private.Shutdown(ctx); err != nil {
			private.Close()
			return fmt.Errorf("could not stop private service gracefully: %w", err)
		}

		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
