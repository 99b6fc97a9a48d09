// ====================================
// File: cmd/ammctl/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token2022-amm/internal/amm"
	"github.com/rovshanmuradov/token2022-amm/internal/config"
	"github.com/rovshanmuradov/token2022-amm/internal/logger"
	"github.com/rovshanmuradov/token2022-amm/internal/sdk"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: ammctl [-config path] <whitelist|pool|proposal> [address]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Init(cfg.DebugLogging, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := sdk.NewClient(cfg.RPCURL, log, sdk.WithMaxRetries(uint(cfg.Retries)))

	if err := run(ctx, client, flag.Arg(0), flag.Arg(1)); err != nil {
		log.Fatal("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
}

func run(ctx context.Context, client *sdk.Client, command, address string) error {
	switch command {
	case "whitelist":
		addr, _, err := amm.WhitelistAddress()
		if err != nil {
			return err
		}
		wl, err := client.FetchWhitelist(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Printf("whitelist %s\n  authority: %s\n  hooks: %d/%d\n",
			addr, wl.Authority, wl.HookCount, len(wl.Hooks))
		for _, hook := range wl.Hooks[:wl.HookCount] {
			fmt.Printf("    %s\n", hook)
		}
		return nil

	case "pool":
		addr, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return fmt.Errorf("invalid pool address: %w", err)
		}
		snap, err := client.FetchPoolSnapshot(ctx, addr)
		if err != nil {
			return err
		}
		p := snap.Pool
		fmt.Printf("pool %s\n  pair: %s / %s\n  reserves: %d / %d\n  vaults: %d / %d\n  lp supply: %d\n  fee: %d bps\n",
			addr, p.TokenAMint, p.TokenBMint,
			p.TokenAReserve, p.TokenBReserve,
			snap.VaultABalance, snap.VaultBBalance,
			p.TotalLPSupply, p.FeeRateBps)
		return nil

	case "proposal":
		addr, err := solana.PublicKeyFromBase58(address)
		if err != nil {
			return fmt.Errorf("invalid proposal address: %w", err)
		}
		prop, err := client.FetchProposal(ctx, addr)
		if err != nil {
			return err
		}
		fmt.Printf("proposal %s\n  hook: %s\n  status: %s\n  approve/reject stake: %d / %d\n  votes: %d\n  deadline: %d\n",
			addr, prop.HookProgramID, prop.Status,
			prop.TotalApproveStake, prop.TotalRejectStake,
			len(prop.Votes), prop.VotingDeadline)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
