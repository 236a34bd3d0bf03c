// Command mint runs the ecash mint's HTTP server: key management,
// bolt11 and on-chain minting/melting, and double-spend protection, as
// configured entirely from the environment (optionally loaded from a
// .env file).
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/joho/godotenv"

	"github.com/cashunuts/mint/mint"
	"github.com/cashunuts/mint/mint/lightning"
	"github.com/cashunuts/mint/mint/lightning/onchain"
)

func lightningClientFromEnv() (lightning.Client, error) {
	switch strings.ToLower(os.Getenv("LIGHTNING_BACKEND")) {
	case "lnd":
		return lightning.NewLndClient()
	case "cln":
		return lightning.NewClnClient()
	case "lnbits":
		return lightning.NewLnbitsClient()
	case "strike":
		return lightning.NewStrikeClient()
	case "alby":
		return lightning.NewAlbyClient()
	case "fakebackend", "":
		return &lightning.FakeBackend{}, nil
	default:
		return nil, errors.New("invalid LIGHTNING_BACKEND")
	}
}

func onchainBackendFromEnv() (onchain.Backend, error) {
	switch strings.ToLower(os.Getenv("ONCHAIN_BACKEND")) {
	case "bitcoind":
		return onchain.NewBitcoindBackend(&chaincfg.MainNetParams)
	case "fakebackend":
		return onchain.NewFakeBackend(), nil
	case "":
		return nil, nil
	default:
		return nil, errors.New("invalid ONCHAIN_BACKEND")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading configuration from the environment")
	}

	config := mint.GetConfig()

	lightningClient, err := lightningClientFromEnv()
	if err != nil {
		log.Fatalf("error setting up lightning backend: %v", err)
	}
	config.LightningClient = lightningClient

	onchainBackend, err := onchainBackendFromEnv()
	if err != nil {
		log.Fatalf("error setting up on-chain backend: %v", err)
	}
	config.OnchainBackend = onchainBackend

	m, err := mint.LoadMint(config)
	if err != nil {
		log.Fatalf("error loading mint: %v", err)
	}

	port := config.Port
	if port == "" {
		port = "3338"
	}
	addr := port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	server := mint.SetupMintServer(m, addr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("error shutting down mint server: %v", err)
		}
	}()

	log.Printf("starting mint on %s", addr)
	if err := server.Start(); err != nil {
		log.Fatalf("error running mint: %v", err)
	}
}
