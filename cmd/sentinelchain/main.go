package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sentinelchain/api/server"
	"sentinelchain/core/audit"
	"sentinelchain/core/auth"
	"sentinelchain/core/engine"
	"sentinelchain/core/finality"
	"sentinelchain/core/genesis"
	"sentinelchain/core/mempool"
	"sentinelchain/core/mining"
	"sentinelchain/core/quorum"
	"sentinelchain/core/storage"
	"sentinelchain/core/threat"
	"sentinelchain/core/validation"
	"sentinelchain/core/wallet"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	godotenv.Load()

	cfgPath := envOr("CHAIN_CONFIG", "chain.json")
	cfg, err := genesis.LoadChainConfig(cfgPath)
	if err != nil {
		log.Fatalf("chain config: %v", err)
	}
	log.Printf("chain %s with %d validators", cfg.ChainID, len(cfg.Validators))

	ledger, err := storage.Open(envOr("LEDGER_PATH", "data/ledger"))
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer ledger.Close()

	pool := mempool.New(mempool.Config{
		MinFee:            cfg.Params.MinFee,
		MaxTxSize:         cfg.Params.MaxTxSizeBytes,
		Capacity:          cfg.Params.MempoolCapacity,
		AgeBonusPerMinute: 0.001,
	})
	if validator, err := validation.FromEnv(); err != nil {
		log.Fatalf("payload schema: %v", err)
	} else if validator != nil {
		pool.WithPayloadValidator(validator)
		log.Printf("payload schema validation enabled")
	}

	feed := threat.NewAlertFeed()
	threats := threat.NewAdapter(feed)

	collector := quorum.NewCollector().WithValidators(cfg.ValidatorIDs())
	checker := finality.NewChecker(ledger, collector, threats, len(cfg.Validators)).
		WithMempool(pool).
		WithAuditLogger(audit.NewStdoutAuditLogger())

	miner := mining.NewMiner()
	if cfg.Params.MiningBudget > 0 {
		miner.WithAttemptBudget(cfg.Params.MiningBudget)
	}

	eng := engine.New(cfg, pool, miner, collector, checker)
	if latest, err := ledger.Latest(); err == nil {
		eng.Bootstrap(latest)
		log.Printf("resuming at height %d (%s)", latest.Index, latest.Hash[:12])
	} else if err != storage.ErrNotFound {
		log.Fatalf("ledger bootstrap: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := 3 * time.Second
	if ms, err := strconv.Atoi(os.Getenv("BLOCK_TIME_MS")); err == nil && ms > 0 {
		interval = time.Duration(ms) * time.Millisecond
	}
	go eng.Run(ctx, interval)

	// Dev mode: when a local signer key is configured the node votes on its
	// own candidates, so a single-validator chain can finalize end to end.
	if os.Getenv("SENTINEL_SIGNER_PRIVKEY") != "" {
		w, err := (&wallet.EnvWalletLoader{}).LoadWallet()
		if err != nil {
			log.Fatalf("signer wallet: %v", err)
		}
		go selfSign(ctx, eng, w, interval)
		log.Printf("dev self-signing enabled for %s", w.SignerID)
	}

	api := server.NewServer(eng, ledger, threats)
	if os.Getenv("SENTINEL_TOKEN_PUBKEY") != "" {
		keys, err := auth.NewEnvKeyProvider()
		if err != nil {
			log.Fatalf("token verifier: %v", err)
		}
		api.WithTokenVerifier(&auth.TokenVerifier{KeyProvider: keys, ChainID: cfg.ChainID})
		log.Printf("validator token verification enabled")
	}
	if err := api.Start(); err != nil {
		log.Fatalf("api server: %v", err)
	}
}

// selfSign submits the local validator's signature on each pending
// candidate it has not voted on yet.
func selfSign(ctx context.Context, eng *engine.Engine, w *wallet.Wallet, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending := eng.Pending()
			if pending == nil {
				continue
			}
			digest := pending.SigningDigest()
			if err := eng.SubmitSignature(w.SignerID, w.Public(), w.Sign(digest[:])); err != nil {
				log.Printf("[signer] vote failed: %v", err)
			}
		}
	}
}
