// Package pool implements the constant-product pool state machine: reserve
// accounting, fee handling and LP share issuance for one Token-2022 pair.
package pool

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

const (
	// FeeRateDenominator converts basis points to a fraction.
	FeeRateDenominator = 10_000

	// MaxFeeRateBps is the highest fee accepted at pool creation or update.
	MaxFeeRateBps = 10_000

	// DefaultFeeRateBps is the 0.3% fee a new pool starts with.
	DefaultFeeRateBps = 30

	// DefaultMinLiquidity is the floor on the first deposit's LP issuance,
	// preventing dust pools that are trivially manipulated.
	DefaultMinLiquidity = 1_000
)

var (
	ErrInvalidMintPair          = errors.New("invalid token pair")
	ErrInvalidFeeRate           = errors.New("fee rate out of bounds")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInsufficientLPTokens     = errors.New("insufficient LP tokens")
	ErrSlippageExceeded         = errors.New("slippage exceeded")
	ErrArithmeticOverflow       = errors.New("arithmetic overflow")
)

// HookValidator is the read-only capability the pool engine uses to consult
// the transfer-hook registry. The pool can never mutate registry state
// through this interface.
type HookValidator interface {
	IsHookWhitelisted(hookProgramID solana.PublicKey) bool
}

// Pool mirrors the on-chain AmmPool account. Reserves are the pricing view
// of the vault balances and are only ever updated atomically alongside the
// corresponding vault transfers.
type Pool struct {
	Authority     solana.PublicKey
	TokenAMint    solana.PublicKey
	TokenBMint    solana.PublicKey
	TokenAVault   solana.PublicKey
	TokenBVault   solana.PublicKey
	LPMint        solana.PublicKey
	TotalLPSupply uint64
	TokenAReserve uint64
	TokenBReserve uint64
	FeeRateBps    uint64
	MinLiquidity  uint64
	Bump          uint8
	Reserved      [8]uint64
}

// New returns a zero-reserve pool shell for the given pair. The mints must
// be distinct and the fee within [0, MaxFeeRateBps].
func New(authority, tokenAMint, tokenBMint, tokenAVault, tokenBVault, lpMint solana.PublicKey, feeRateBps uint64, bump uint8) (*Pool, error) {
	if tokenAMint.Equals(tokenBMint) {
		return nil, ErrInvalidMintPair
	}
	if tokenAMint.IsZero() || tokenBMint.IsZero() {
		return nil, ErrInvalidMintPair
	}
	if feeRateBps > MaxFeeRateBps {
		return nil, ErrInvalidFeeRate
	}
	return &Pool{
		Authority:    authority,
		TokenAMint:   tokenAMint,
		TokenBMint:   tokenBMint,
		TokenAVault:  tokenAVault,
		TokenBVault:  tokenBVault,
		LPMint:       lpMint,
		FeeRateBps:   feeRateBps,
		MinLiquidity: DefaultMinLiquidity,
		Bump:         bump,
	}, nil
}

// UpdateConfig replaces the fee rate and minimum-liquidity floor. Takes
// effect for subsequent trades only.
func (p *Pool) UpdateConfig(feeRateBps, minLiquidity uint64) error {
	if feeRateBps > MaxFeeRateBps {
		return ErrInvalidFeeRate
	}
	p.FeeRateBps = feeRateBps
	p.MinLiquidity = minLiquidity
	return nil
}

// ReservesFor resolves the swap direction for the given input mint,
// returning the input and output reserves and the output mint.
func (p *Pool) ReservesFor(inputMint solana.PublicKey) (reserveIn, reserveOut uint64, outputMint solana.PublicKey, err error) {
	switch {
	case inputMint.Equals(p.TokenAMint):
		return p.TokenAReserve, p.TokenBReserve, p.TokenBMint, nil
	case inputMint.Equals(p.TokenBMint):
		return p.TokenBReserve, p.TokenAReserve, p.TokenAMint, nil
	default:
		return 0, 0, solana.PublicKey{}, ErrInvalidMintPair
	}
}

// ApplySwap commits a swap's reserve movement for the given input mint.
// Callers must have validated amounts via SwapOutput/SwapInput first.
func (p *Pool) ApplySwap(inputMint solana.PublicKey, amountIn, amountOut uint64) error {
	reserveIn, reserveOut, _, err := p.ReservesFor(inputMint)
	if err != nil {
		return err
	}
	newIn, err := checkedAdd(reserveIn, amountIn)
	if err != nil {
		return err
	}
	if reserveOut < amountOut {
		return ErrInsufficientLiquidity
	}
	newOut := reserveOut - amountOut
	if inputMint.Equals(p.TokenAMint) {
		p.TokenAReserve, p.TokenBReserve = newIn, newOut
	} else {
		p.TokenBReserve, p.TokenAReserve = newIn, newOut
	}
	return nil
}

// ApplyDeposit commits a liquidity addition.
func (p *Pool) ApplyDeposit(amountA, amountB, lpTokens uint64) error {
	newA, err := checkedAdd(p.TokenAReserve, amountA)
	if err != nil {
		return err
	}
	newB, err := checkedAdd(p.TokenBReserve, amountB)
	if err != nil {
		return err
	}
	newSupply, err := checkedAdd(p.TotalLPSupply, lpTokens)
	if err != nil {
		return err
	}
	p.TokenAReserve, p.TokenBReserve, p.TotalLPSupply = newA, newB, newSupply
	return nil
}

// ApplyWithdrawal commits a liquidity removal.
func (p *Pool) ApplyWithdrawal(amountA, amountB, lpTokens uint64) error {
	if p.TokenAReserve < amountA || p.TokenBReserve < amountB {
		return ErrInsufficientLiquidity
	}
	if p.TotalLPSupply < lpTokens {
		return ErrInsufficientLPTokens
	}
	p.TokenAReserve -= amountA
	p.TokenBReserve -= amountB
	p.TotalLPSupply -= lpTokens
	return nil
}
