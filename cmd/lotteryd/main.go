// Command lotteryd runs the lottery enclave backend: it polls a lottery
// contract over JSON-RPC, mirrors its state into an in-memory store, drives
// round progression once a round's timing window permits it, and serves the
// result over HTTP and WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/offchainlabs/lottery-enclave/internal/chainclient"
	"github.com/offchainlabs/lottery-enclave/internal/config"
	"github.com/offchainlabs/lottery-enclave/internal/enclave"
	"github.com/offchainlabs/lottery-enclave/internal/eventmanager"
	"github.com/offchainlabs/lottery-enclave/internal/gateway"
	"github.com/offchainlabs/lottery-enclave/internal/operator"
	"github.com/offchainlabs/lottery-enclave/internal/store"
)

var log = logrus.WithField("prefix", "lotteryd")

func main() {
	configPath := flag.String("config", "./lottery.conf", "path to lottery.conf")
	staticDir := flag.String("static-dir", "", "optional directory of static frontend assets to serve")
	flag.Parse()

	if err := run(*configPath, *staticDir); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func run(configPath, staticDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("lotteryd: load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := store.New()
	st.SetFeedCapacity(cfg.EventManager.LiveFeedMaxEntries)
	st.SetHistoryCapacity(cfg.EventManager.RoundHistoryMax)

	cc, err := chainclient.Initialize(ctx, chainclient.Config{
		RPCURL:        cfg.Blockchain.RPCURL,
		ContractAddr:  cfg.ContractAddressParsed(),
		ABIPath:       cfg.Blockchain.ABIPath,
		ChainID:       cfg.ChainIDBig(),
		GasMultiplier: cfg.Blockchain.GasMultiplier,
		GasPriceWei:   cfg.GasPriceWei(),
	})
	if err != nil {
		return fmt.Errorf("lotteryd: initialize chain client: %w", err)
	}

	if err := bootstrap(ctx, cc, st); err != nil {
		return fmt.Errorf("lotteryd: bootstrap: %w", err)
	}

	em := eventmanager.New(cc, st, eventmanager.Options{
		ConfigInterval:    time.Duration(cfg.EventManager.ContractConfigIntervalSec) * time.Second,
		RoundInterval:     time.Duration(cfg.EventManager.RoundAndParticipantsIntervalSec) * time.Second,
		StartBlockOffset:  uint64(cfg.EventManager.StartBlockOffset),
	})
	em.Start(ctx)

	op := operator.New(cc, st, operator.Options{
		WaitTimeout: time.Duration(cfg.Operator.TxTimeoutSeconds) * time.Second,
	})
	op.Start(ctx)

	kp, err := enclave.Generate()
	if err != nil {
		return fmt.Errorf("lotteryd: generate enclave identity key: %w", err)
	}
	keySvc := enclave.NewService(kp, enclave.NewDummyProvider(), cc, cfg.OperatorAddressParsed())

	gw := gateway.New(st, cc, op, keySvc, cfg.Blockchain.ContractAddress, gateway.Options{
		StaticDir: staticDir,
	})

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Infof("lotteryd listening on %s", addr)
	return gw.Start(sigCtx, addr)
}

// bootstrap performs the one-time initial config/round/participants fetch
// before the polling loops take over, so the store is never observed empty
// by a client connecting immediately after startup against a chain that
// already has an active round.
func bootstrap(ctx context.Context, cc *chainclient.Client, st *store.Store) error {
	cfg, err := cc.GetContractConfig(ctx)
	if err != nil {
		return fmt.Errorf("getConfig: %w", err)
	}
	round, err := cc.GetCurrentRound(ctx)
	if err != nil {
		return fmt.Errorf("getRound: %w", err)
	}
	st.Bootstrap(cfg, round)

	if round == nil {
		return nil
	}
	participants, err := cc.GetParticipantSummaries(ctx, round.RoundID)
	if err != nil {
		return fmt.Errorf("getParticipants: %w", err)
	}
	st.SyncParticipants(participants)
	return nil
}
