package pool

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// All pricing math runs on 256-bit intermediates so that products of two
// u64 reserves can never wrap. Results are narrowed back to u64 with an
// explicit overflow check; rounding always favors the pool.

func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

func narrow(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return v.Uint64(), nil
}

// feeOnInput returns the fee charged on amountIn, rounded up so that
// truncation never leaks value out of the pool.
func feeOnInput(amountIn, feeRateBps uint64) (uint64, error) {
	if feeRateBps > MaxFeeRateBps {
		return 0, ErrInvalidFeeRate
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(feeRateBps))
	num.Add(num, uint256.NewInt(FeeRateDenominator-1))
	num.Div(num, uint256.NewInt(FeeRateDenominator))
	return narrow(num)
}

// SwapOutput computes the exact-in constant-product output:
//
//	out = reserveOut * inAfterFee / (reserveIn + inAfterFee)
//
// with the fee deducted from the input leg and the division truncated in the
// pool's favor. The trade may never drain the output reserve to zero.
func SwapOutput(reserveIn, reserveOut, amountIn, feeRateBps uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInvalidAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}

	fee, err := feeOnInput(amountIn, feeRateBps)
	if err != nil {
		return 0, err
	}
	if fee >= amountIn {
		return 0, ErrInsufficientOutputAmount
	}
	inAfterFee := amountIn - fee

	num := new(uint256.Int).Mul(uint256.NewInt(reserveOut), uint256.NewInt(inAfterFee))
	den := new(uint256.Int).Add(uint256.NewInt(reserveIn), uint256.NewInt(inAfterFee))
	amountOut, err := narrow(num.Div(num, den))
	if err != nil {
		return 0, err
	}

	if amountOut == 0 {
		return 0, ErrInsufficientOutputAmount
	}
	if amountOut >= reserveOut {
		return 0, ErrInsufficientLiquidity
	}
	return amountOut, nil
}

// SwapInput computes the exact-out counterpart: the smallest input that
// yields at least amountOut, gross of fee, with every division rounded up.
func SwapInput(reserveIn, reserveOut, amountOut, feeRateBps uint64) (uint64, error) {
	if amountOut == 0 {
		return 0, ErrInvalidAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}
	if amountOut >= reserveOut {
		return 0, ErrInsufficientLiquidity
	}
	if feeRateBps >= FeeRateDenominator {
		// A 100% fee pool cannot quote an exact-out trade.
		return 0, ErrInvalidFeeRate
	}

	// inAfterFee = ceil(reserveIn * amountOut / (reserveOut - amountOut))
	num := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(amountOut))
	den := uint256.NewInt(reserveOut - amountOut)
	inAfterFee := ceilDiv(num, den)

	// amountIn = ceil(inAfterFee * denom / (denom - feeRateBps))
	gross := new(uint256.Int).Mul(inAfterFee, uint256.NewInt(FeeRateDenominator))
	gross = ceilDiv(gross, uint256.NewInt(FeeRateDenominator-feeRateBps))

	amountIn, err := narrow(gross)
	if err != nil {
		return 0, err
	}
	if amountIn == 0 {
		return 0, ErrInvalidAmount
	}
	return amountIn, nil
}

func ceilDiv(num, den *uint256.Int) *uint256.Int {
	q := new(uint256.Int)
	r := new(uint256.Int)
	q.DivMod(num, den, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}

// InitialLPTokens prices the very first deposit as the geometric mean of the
// two amounts. The resulting rate is final; later deposits can only join at
// the prevailing reserve ratio.
func InitialLPTokens(amountA, amountB, minLiquidity uint64) (uint64, error) {
	if amountA == 0 || amountB == 0 {
		return 0, ErrInvalidAmount
	}
	product := new(uint256.Int).Mul(uint256.NewInt(amountA), uint256.NewInt(amountB))
	lpTokens, err := narrow(product.Sqrt(product))
	if err != nil {
		return 0, err
	}
	if lpTokens < minLiquidity {
		return 0, ErrInsufficientLPTokens
	}
	return lpTokens, nil
}

// LPTokensForDeposit prices a follow-up deposit as the smaller of the two
// implied shares, so an imbalanced deposit can never dilute existing holders.
func LPTokensForDeposit(reserveA, reserveB, totalSupply, amountA, amountB uint64) (uint64, error) {
	if amountA == 0 || amountB == 0 {
		return 0, ErrInvalidAmount
	}
	if reserveA == 0 || reserveB == 0 || totalSupply == 0 {
		return 0, ErrInsufficientLiquidity
	}

	sharesA := new(uint256.Int).Mul(uint256.NewInt(amountA), uint256.NewInt(totalSupply))
	sharesA.Div(sharesA, uint256.NewInt(reserveA))
	sharesB := new(uint256.Int).Mul(uint256.NewInt(amountB), uint256.NewInt(totalSupply))
	sharesB.Div(sharesB, uint256.NewInt(reserveB))

	if sharesB.Lt(sharesA) {
		sharesA = sharesB
	}
	lpTokens, err := narrow(sharesA)
	if err != nil {
		return 0, err
	}
	if lpTokens == 0 {
		return 0, ErrInsufficientLPTokens
	}
	return lpTokens, nil
}

// TokensForBurn computes the proportional payout for burning lpTokens,
// floor-rounded so rounding loss stays in the pool.
func TokensForBurn(reserveA, reserveB, totalSupply, lpTokens uint64) (amountA, amountB uint64, err error) {
	if lpTokens == 0 {
		return 0, 0, ErrInvalidAmount
	}
	if totalSupply == 0 || lpTokens > totalSupply {
		return 0, 0, ErrInsufficientLPTokens
	}

	outA := new(uint256.Int).Mul(uint256.NewInt(reserveA), uint256.NewInt(lpTokens))
	outA.Div(outA, uint256.NewInt(totalSupply))
	outB := new(uint256.Int).Mul(uint256.NewInt(reserveB), uint256.NewInt(lpTokens))
	outB.Div(outB, uint256.NewInt(totalSupply))

	if amountA, err = narrow(outA); err != nil {
		return 0, 0, err
	}
	if amountB, err = narrow(outB); err != nil {
		return 0, 0, err
	}
	return amountA, amountB, nil
}
