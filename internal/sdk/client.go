// =============================
// File: internal/sdk/client.go
// =============================
package sdk

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/token2022-amm/internal/governance"
	"github.com/rovshanmuradov/token2022-amm/internal/pool"
	"github.com/rovshanmuradov/token2022-amm/internal/whitelist"
)

const (
	// TokenAccountAmountOffset is where the u64 amount sits in an SPL
	// token account.
	TokenAccountAmountOffset = 64
	TokenAccountAmountSize   = 8

	requestTimeout = 5 * time.Second
)

// accountFetcher is the slice of the RPC client the SDK needs.
type accountFetcher interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetMultipleAccounts(ctx context.Context, accounts ...solana.PublicKey) (*rpc.GetMultipleAccountsResult, error)
}

// Client reads program accounts over RPC and decodes them into their typed
// representations.
type Client struct {
	rpc        accountFetcher
	logger     *zap.Logger
	maxRetries uint
	retryDelay time.Duration
}

type ClientOption func(*Client)

func WithMaxRetries(n uint) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.retryDelay = d }
}

func NewClient(endpoint string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		rpc:        rpc.New(endpoint),
		logger:     logger.Named("sdk"),
		maxRetries: 3,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getAccountData fetches one account's raw data with a per-call timeout and
// exponential backoff across attempts.
func (c *Client) getAccountData(ctx context.Context, pubkey solana.PublicKey) ([]byte, error) {
	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = c.retryDelay
	backoffPolicy.MaxInterval = c.retryDelay * 10

	notify := func(err error, duration time.Duration) {
		c.logger.Info("retrying account fetch",
			zap.String("account", pubkey.String()),
			zap.Error(err), zap.Duration("backoff", duration))
	}

	operation := func() ([]byte, error) {
		cctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		accountInfo, err := c.rpc.GetAccountInfo(cctx, pubkey)
		if err != nil {
			return nil, fmt.Errorf("failed to get account info for %s: %w", pubkey.String(), err)
		}
		if accountInfo == nil || accountInfo.Value == nil {
			return nil, backoff.Permanent(fmt.Errorf("account not found: %s", pubkey.String()))
		}
		return accountInfo.Value.Data.GetBinary(), nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(c.maxRetries),
		backoff.WithNotify(notify))
}

// FetchWhitelist reads and decodes the singleton hook registry.
func (c *Client) FetchWhitelist(ctx context.Context, whitelistAddr solana.PublicKey) (*whitelist.Whitelist, error) {
	data, err := c.getAccountData(ctx, whitelistAddr)
	if err != nil {
		return nil, err
	}
	return whitelist.Parse(data)
}

// FetchPool reads and decodes one pool account.
func (c *Client) FetchPool(ctx context.Context, poolAddr solana.PublicKey) (*pool.Pool, error) {
	data, err := c.getAccountData(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	return pool.Parse(data)
}

// FetchProposal reads and decodes one governance proposal.
func (c *Client) FetchProposal(ctx context.Context, proposalAddr solana.PublicKey) (*governance.Proposal, error) {
	data, err := c.getAccountData(ctx, proposalAddr)
	if err != nil {
		return nil, err
	}
	return governance.Parse(data)
}

// PoolSnapshot is a pool account together with its live vault balances.
type PoolSnapshot struct {
	Pool          *pool.Pool
	VaultABalance uint64
	VaultBBalance uint64
}

// FetchPoolSnapshot loads the pool account and both vault token accounts in
// parallel. A drifted snapshot, where the reserves disagree with the vault
// balances, indicates a read between two instructions of a transaction.
func (c *Client) FetchPoolSnapshot(ctx context.Context, poolAddr solana.PublicKey) (*PoolSnapshot, error) {
	p, err := c.FetchPool(ctx, poolAddr)
	if err != nil {
		return nil, err
	}

	snap := &PoolSnapshot{Pool: p}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		data, err := c.getAccountData(gctx, p.TokenAVault)
		if err != nil {
			return err
		}
		snap.VaultABalance, err = parseTokenAmount(data)
		return err
	})
	g.Go(func() error {
		data, err := c.getAccountData(gctx, p.TokenBVault)
		if err != nil {
			return err
		}
		snap.VaultBBalance, err = parseTokenAmount(data)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// FetchPools batch-loads several pool accounts, skipping missing ones.
func (c *Client) FetchPools(ctx context.Context, poolAddrs []solana.PublicKey) ([]*pool.Pool, error) {
	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.rpc.GetMultipleAccounts(cctx, poolAddrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to get multiple accounts: %w", err)
	}

	pools := make([]*pool.Pool, 0, len(poolAddrs))
	for i, info := range resp.Value {
		if info == nil {
			continue
		}
		p, err := pool.Parse(info.Data.GetBinary())
		if err != nil {
			c.logger.Warn("skipping undecodable pool account",
				zap.String("account", poolAddrs[i].String()), zap.Error(err))
			continue
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// parseTokenAmount extracts the u64 amount from raw SPL token account data.
func parseTokenAmount(data []byte) (uint64, error) {
	if len(data) < TokenAccountAmountOffset+TokenAccountAmountSize {
		return 0, fmt.Errorf("token account data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[TokenAccountAmountOffset : TokenAccountAmountOffset+TokenAccountAmountSize]), nil
}
