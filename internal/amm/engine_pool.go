package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token2022-amm/internal/pool"
)

// InitializePool creates the pool PDA for a mint pair, its vaults and LP
// mint. Any transfer hook on either mint must already be whitelisted.
func (e *Engine) InitializePool(authority, tokenAMint, tokenBMint solana.PublicKey, feeRateBps uint64) (solana.PublicKey, error) {
	if !e.ledger.HasMint(tokenAMint) || !e.ledger.HasMint(tokenBMint) {
		return solana.PublicKey{}, fmt.Errorf("%w: pool mints must be registered", ErrUnknownMint)
	}
	if err := e.validateMintHooks(tokenAMint, tokenBMint); err != nil {
		return solana.PublicKey{}, err
	}

	poolAddr, bump, err := PoolAddress(tokenAMint, tokenBMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive pool address: %w", err)
	}
	lpMint, _, err := LPMintAddress(poolAddr)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive lp mint: %w", err)
	}
	vaultA, _, err := VaultAddress(poolAddr, tokenAMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive vault: %w", err)
	}
	vaultB, _, err := VaultAddress(poolAddr, tokenBMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive vault: %w", err)
	}

	state, err := pool.New(authority, tokenAMint, tokenBMint, vaultA, vaultB, lpMint, feeRateBps, bump)
	if err != nil {
		return solana.PublicKey{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pools[poolAddr]; ok {
		return solana.PublicKey{}, ErrPoolAlreadyExists
	}
	if err := e.ledger.RegisterMint(lpMint, solana.PublicKey{}); err != nil {
		return solana.PublicKey{}, fmt.Errorf("register lp mint: %w", err)
	}
	e.pools[poolAddr] = &poolRecord{state: state}

	e.log.Info("pool initialized",
		zap.Stringer("pool", poolAddr),
		zap.Stringer("token_a_mint", tokenAMint),
		zap.Stringer("token_b_mint", tokenBMint),
		zap.Uint64("fee_rate_bps", feeRateBps))
	return poolAddr, nil
}

// AddLiquidity deposits both tokens at the pool ratio and mints LP shares.
// The first deposit sets the ratio and is priced by geometric mean; later
// deposits are priced at the smaller implied share. minLPTokens is the
// depositor's slippage bound.
func (e *Engine) AddLiquidity(owner, poolAddr solana.PublicKey, amountA, amountB, minLPTokens uint64) (uint64, error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := rec.state
	if err := e.validateMintHooks(p.TokenAMint, p.TokenBMint); err != nil {
		return 0, err
	}

	var lpTokens uint64
	if p.TotalLPSupply == 0 {
		lpTokens, err = pool.InitialLPTokens(amountA, amountB, p.MinLiquidity)
	} else {
		lpTokens, err = pool.LPTokensForDeposit(p.TokenAReserve, p.TokenBReserve, p.TotalLPSupply, amountA, amountB)
	}
	if err != nil {
		return 0, err
	}
	if lpTokens < minLPTokens {
		return 0, fmt.Errorf("%w: lp tokens %d below minimum %d", pool.ErrSlippageExceeded, lpTokens, minLPTokens)
	}

	staged := *p
	if err := staged.ApplyDeposit(amountA, amountB, lpTokens); err != nil {
		return 0, err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: p.TokenAMint, From: owner, To: poolAddr, Amount: amountA},
		{Kind: OpTransfer, Mint: p.TokenBMint, From: owner, To: poolAddr, Amount: amountB},
		{Kind: OpMint, Mint: p.LPMint, To: owner, Amount: lpTokens},
	}); err != nil {
		return 0, err
	}
	*p = staged

	e.log.Debug("liquidity added",
		zap.Stringer("pool", poolAddr),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("lp_tokens", lpTokens))
	return lpTokens, nil
}

// RemoveLiquidity burns LP shares for a proportional slice of both
// reserves. minAmountA and minAmountB bound rounding slippage.
func (e *Engine) RemoveLiquidity(owner, poolAddr solana.PublicKey, lpTokens, minAmountA, minAmountB uint64) (amountA, amountB uint64, err error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return 0, 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := rec.state
	if err := e.validateMintHooks(p.TokenAMint, p.TokenBMint); err != nil {
		return 0, 0, err
	}

	amountA, amountB, err = pool.TokensForBurn(p.TokenAReserve, p.TokenBReserve, p.TotalLPSupply, lpTokens)
	if err != nil {
		return 0, 0, err
	}
	if amountA < minAmountA || amountB < minAmountB {
		return 0, 0, fmt.Errorf("%w: payout (%d, %d) below minimum (%d, %d)",
			pool.ErrSlippageExceeded, amountA, amountB, minAmountA, minAmountB)
	}

	staged := *p
	if err := staged.ApplyWithdrawal(amountA, amountB, lpTokens); err != nil {
		return 0, 0, err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpBurn, Mint: p.LPMint, From: owner, Amount: lpTokens},
		{Kind: OpTransfer, Mint: p.TokenAMint, From: poolAddr, To: owner, Amount: amountA},
		{Kind: OpTransfer, Mint: p.TokenBMint, From: poolAddr, To: owner, Amount: amountB},
	}); err != nil {
		return 0, 0, err
	}
	*p = staged

	e.log.Debug("liquidity removed",
		zap.Stringer("pool", poolAddr),
		zap.Uint64("lp_tokens", lpTokens),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB))
	return amountA, amountB, nil
}

// Swap trades token A for token B with an exact input amount.
func (e *Engine) Swap(owner, poolAddr solana.PublicKey, amountIn, minAmountOut uint64) (uint64, error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return e.swapExactInLocked(rec.state, owner, poolAddr, rec.state.TokenAMint, amountIn, minAmountOut)
}

// SwapExactTokensForTokens trades an exact input of either pool token for
// the other.
func (e *Engine) SwapExactTokensForTokens(owner, poolAddr, inputMint solana.PublicKey, amountIn, minAmountOut uint64) (uint64, error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return e.swapExactInLocked(rec.state, owner, poolAddr, inputMint, amountIn, minAmountOut)
}

func (e *Engine) swapExactInLocked(p *pool.Pool, owner, poolAddr, inputMint solana.PublicKey, amountIn, minAmountOut uint64) (uint64, error) {
	reserveIn, reserveOut, outputMint, err := p.ReservesFor(inputMint)
	if err != nil {
		return 0, err
	}
	if err := e.validateMintHooks(inputMint, outputMint); err != nil {
		return 0, err
	}

	amountOut, err := pool.SwapOutput(reserveIn, reserveOut, amountIn, p.FeeRateBps)
	if err != nil {
		return 0, err
	}
	if amountOut < minAmountOut {
		return 0, fmt.Errorf("%w: output %d below minimum %d", pool.ErrSlippageExceeded, amountOut, minAmountOut)
	}

	staged := *p
	if err := staged.ApplySwap(inputMint, amountIn, amountOut); err != nil {
		return 0, err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: inputMint, From: owner, To: poolAddr, Amount: amountIn},
		{Kind: OpTransfer, Mint: outputMint, From: poolAddr, To: owner, Amount: amountOut},
	}); err != nil {
		return 0, err
	}
	*p = staged

	e.log.Debug("swap executed",
		zap.Stringer("pool", poolAddr),
		zap.Stringer("input_mint", inputMint),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", amountOut))
	return amountOut, nil
}

// SwapTokensForExactTokens trades for an exact output amount, spending at
// most maxAmountIn of the input token.
func (e *Engine) SwapTokensForExactTokens(owner, poolAddr, inputMint solana.PublicKey, amountOut, maxAmountIn uint64) (uint64, error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	p := rec.state
	reserveIn, reserveOut, outputMint, err := p.ReservesFor(inputMint)
	if err != nil {
		return 0, err
	}
	if err := e.validateMintHooks(inputMint, outputMint); err != nil {
		return 0, err
	}

	amountIn, err := pool.SwapInput(reserveIn, reserveOut, amountOut, p.FeeRateBps)
	if err != nil {
		return 0, err
	}
	if amountIn > maxAmountIn {
		return 0, fmt.Errorf("%w: input %d above maximum %d", pool.ErrSlippageExceeded, amountIn, maxAmountIn)
	}

	staged := *p
	if err := staged.ApplySwap(inputMint, amountIn, amountOut); err != nil {
		return 0, err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: inputMint, From: owner, To: poolAddr, Amount: amountIn},
		{Kind: OpTransfer, Mint: outputMint, From: poolAddr, To: owner, Amount: amountOut},
	}); err != nil {
		return 0, err
	}
	*p = staged

	e.log.Debug("exact-out swap executed",
		zap.Stringer("pool", poolAddr),
		zap.Stringer("input_mint", inputMint),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", amountOut))
	return amountIn, nil
}

// UpdatePoolConfig changes the fee rate and minimum-liquidity floor. Only
// the pool authority may call it; trades in flight settle at the old fee.
func (e *Engine) UpdatePoolConfig(authority, poolAddr solana.PublicKey, feeRateBps, minLiquidity uint64) error {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !authority.Equals(rec.state.Authority) {
		return ErrUnauthorized
	}
	if err := rec.state.UpdateConfig(feeRateBps, minLiquidity); err != nil {
		return err
	}

	e.log.Info("pool config updated",
		zap.Stringer("pool", poolAddr),
		zap.Uint64("fee_rate_bps", feeRateBps),
		zap.Uint64("min_liquidity", minLiquidity))
	return nil
}
