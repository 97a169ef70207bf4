package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"compounder/config"
	"compounder/core/events"
	"compounder/integrations/evm"
	"compounder/native/strategy"
	"compounder/observability"
	"compounder/observability/logging"
	"compounder/rpc"
	"compounder/services/harvester"
	"compounder/storage"
)

func main() {
	configPath := flag.String("config", "./strategyd.toml", "path to the daemon configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "strategyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup("strategyd", cfg.Environment, logging.Rotation{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	rawKey := strings.TrimSpace(os.Getenv(cfg.Chain.OperatorKeyEnv))
	if rawKey == "" {
		return fmt.Errorf("%s is required", cfg.Chain.OperatorKeyEnv)
	}
	key, err := gethcrypto.HexToECDSA(strings.TrimPrefix(rawKey, "0x"))
	if err != nil {
		return fmt.Errorf("parse operator key: %w", err)
	}
	authToken := strings.TrimSpace(os.Getenv(cfg.AuthTokenEnv))

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	client, err := evm.Dial(cfg.Chain.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer client.Close()

	transactor, err := evm.NewTransactor(client, key, new(big.Int).SetUint64(cfg.Chain.ChainID))
	if err != nil {
		return err
	}
	logger.Info("operator wired",
		"operator", transactor.From().Hex(),
		logging.MaskField("rpc_endpoint", cfg.Chain.RPCEndpoint))

	engine, err := buildEngine(cfg, transactor)
	if err != nil {
		return fmt.Errorf("build strategy: %w", err)
	}

	journal, err := storage.OpenJournal(cfg.JournalPath, nil)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()
	engine.SetEmitter(events.MultiEmitter{journal, observability.MetricsEmitter{}})

	manager, err := config.ParseAddress(cfg.Contracts.Manager)
	if err != nil {
		return err
	}
	scheduler, err := harvester.New(harvester.Config{
		Engine:   engine,
		Manager:  manager,
		Interval: cfg.HarvestInterval(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	server, err := rpc.NewServer(rpc.Config{
		Engine:    engine,
		Journal:   journal,
		Harvester: scheduler,
		Manager:   manager,
		AuthToken: authToken,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := scheduler.Run(groupCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		logger.Info("strategyd listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func buildEngine(cfg *config.Config, transactor *evm.Transactor) (*strategy.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ledger, err := evm.NewLedger(transactor)
	if err != nil {
		return nil, err
	}
	farmAddr, err := config.ParseAddress(cfg.Contracts.Farm)
	if err != nil {
		return nil, err
	}
	farm, err := evm.NewFarm(transactor, farmAddr, cfg.Contracts.PendingRewardMethod)
	if err != nil {
		return nil, err
	}
	routerAddr, err := config.ParseAddress(cfg.Contracts.Router)
	if err != nil {
		return nil, err
	}
	router, err := evm.NewRouter(transactor, routerAddr)
	if err != nil {
		return nil, err
	}

	want, err := config.ParseAddress(cfg.Contracts.Want)
	if err != nil {
		return nil, err
	}
	secondaryPairAddr, err := config.ParseAddress(cfg.Contracts.SecondaryPair)
	if err != nil {
		return nil, err
	}
	wantPair, err := evm.NewPair(transactor, want)
	if err != nil {
		return nil, err
	}
	secondaryPair, err := evm.NewPair(transactor, secondaryPairAddr)
	if err != nil {
		return nil, err
	}

	strategist, err := config.ParseAddress(cfg.Contracts.Strategist)
	if err != nil {
		return nil, err
	}
	treasury, err := config.ParseAddress(cfg.Contracts.Treasury)
	if err != nil {
		return nil, err
	}
	fees, err := strategy.NewStaticFeeConfig(strategy.FeeSchedule{
		CallFee:       cfg.Fees.CallFee,
		StrategistFee: cfg.Fees.StrategistFee,
		ProtocolFee:   cfg.Fees.ProtocolFee,
		Strategist:    strategist,
		Treasury:      treasury,
	})
	if err != nil {
		return nil, err
	}

	vault, err := config.ParseAddress(cfg.Contracts.Vault)
	if err != nil {
		return nil, err
	}
	owner, err := config.ParseAddress(cfg.Contracts.Owner)
	if err != nil {
		return nil, err
	}
	manager, err := config.ParseAddress(cfg.Contracts.Manager)
	if err != nil {
		return nil, err
	}
	output, err := config.ParseAddress(cfg.Contracts.Output)
	if err != nil {
		return nil, err
	}
	native, err := config.ParseAddress(cfg.Contracts.Native)
	if err != nil {
		return nil, err
	}

	engineCfg := strategy.Config{
		Strategy:         transactor.From(),
		Vault:            vault,
		Owner:            owner,
		Manager:          manager,
		Want:             want,
		Output:           output,
		Native:           native,
		SecondaryPair:    secondaryPairAddr,
		PrimaryPool:      cfg.Contracts.PrimaryPool,
		SecondaryPool:    cfg.Contracts.SecondaryPool,
		HarvestOnDeposit: cfg.Harvest.HarvestOnDeposit,
	}
	if engineCfg.OutputToNativeRoute, err = parseRoute(cfg.Routes.OutputToNative); err != nil {
		return nil, err
	}
	if engineCfg.OutputToLP0Route, err = parseRoute(cfg.Routes.OutputToLP0); err != nil {
		return nil, err
	}
	if engineCfg.OutputToLP1Route, err = parseRoute(cfg.Routes.OutputToLP1); err != nil {
		return nil, err
	}
	if engineCfg.NativeToSecondary0Route, err = parseRoute(cfg.Routes.NativeToSecondary0); err != nil {
		return nil, err
	}
	if engineCfg.NativeToSecondary1Route, err = parseRoute(cfg.Routes.NativeToSecondary1); err != nil {
		return nil, err
	}

	return strategy.NewEngine(ctx, engineCfg, wantPair, secondaryPair, ledger, farm, router, fees)
}

func parseRoute(hops []string) (strategy.Route, error) {
	if len(hops) == 0 {
		return nil, nil
	}
	parsed, err := config.ParseRoute(hops)
	if err != nil {
		return nil, err
	}
	return strategy.Route(parsed), nil
}
