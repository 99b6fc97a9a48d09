package amm

import (
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/token2022-amm/internal/governance"
	"github.com/rovshanmuradov/token2022-amm/internal/pool"
	"github.com/rovshanmuradov/token2022-amm/internal/whitelist"
)

var (
	admin = key(1)
	alice = key(10)
	bob   = key(11)

	mintA    = key(20)
	mintB    = key(21)
	kycHook  = key(30)
	evilHook = key(31)
)

type fixture struct {
	engine *Engine
	ledger *Ledger
	now    time.Time
}

// newFixture builds an engine with a whitelisted kycHook, mintA carrying
// that hook, a hookless mintB and funded traders.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger: NewLedger(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.ledger, WithClock(func() time.Time { return f.now }))

	require.NoError(t, f.engine.InitializeWhitelist(admin))
	require.NoError(t, f.engine.AddHookToWhitelist(admin, kycHook))

	require.NoError(t, f.ledger.RegisterMint(mintA, kycHook))
	require.NoError(t, f.ledger.RegisterMint(mintB, solana.PublicKey{}))

	for _, owner := range []solana.PublicKey{alice, bob} {
		require.NoError(t, f.ledger.MintTo(mintA, owner, 1_000_000))
		require.NoError(t, f.ledger.MintTo(mintB, owner, 1_000_000))
		require.NoError(t, f.ledger.MintTo(solana.SolMint, owner, 500_000_000_000))
	}
	return f
}

func (f *fixture) initPool(t *testing.T) solana.PublicKey {
	t.Helper()
	poolAddr, err := f.engine.InitializePool(admin, mintA, mintB, pool.DefaultFeeRateBps)
	require.NoError(t, err)
	return poolAddr
}

func (f *fixture) seedPool(t *testing.T) solana.PublicKey {
	t.Helper()
	poolAddr := f.initPool(t)
	_, err := f.engine.AddLiquidity(alice, poolAddr, 100_000, 100_000, 0)
	require.NoError(t, err)
	return poolAddr
}

func TestInitializeWhitelist(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.InitializeWhitelist(admin), ErrWhitelistAlreadyExists)
	assert.True(t, f.engine.IsHookWhitelisted(kycHook))
	assert.False(t, f.engine.IsHookWhitelisted(evilHook))
	assert.Equal(t, []solana.PublicKey{kycHook}, f.engine.WhitelistedHooks())
}

func TestWhitelistAuthority(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.engine.AddHookToWhitelist(alice, evilHook), ErrUnauthorized)
	assert.ErrorIs(t, f.engine.RemoveHookFromWhitelist(alice, kycHook), ErrUnauthorized)
}

func TestInitializePool(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.initPool(t)

	p, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)
	assert.Equal(t, mintA, p.TokenAMint)
	assert.Equal(t, mintB, p.TokenBMint)
	assert.Equal(t, uint64(pool.DefaultFeeRateBps), p.FeeRateBps)

	_, err = f.engine.InitializePool(admin, mintA, mintB, pool.DefaultFeeRateBps)
	assert.ErrorIs(t, err, ErrPoolAlreadyExists)
}

func TestInitializePoolRejectsUnlistedHook(t *testing.T) {
	f := newFixture(t)
	badMint := key(22)
	require.NoError(t, f.ledger.RegisterMint(badMint, evilHook))

	_, err := f.engine.InitializePool(admin, badMint, mintB, pool.DefaultFeeRateBps)
	assert.ErrorIs(t, err, whitelist.ErrHookNotWhitelisted)
}

func TestAddLiquidityInitial(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.initPool(t)

	lp, err := f.engine.AddLiquidity(alice, poolAddr, 100_000, 100_000, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), lp) // sqrt(100000^2)

	p, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000), p.TokenAReserve)
	assert.Equal(t, uint64(100_000), p.TokenBReserve)
	assert.Equal(t, uint64(100_000), p.TotalLPSupply)
	assert.Equal(t, uint64(100_000), f.ledger.Balance(alice, p.LPMint))
	assert.Equal(t, uint64(100_000), f.ledger.Balance(poolAddr, mintA))
}

func TestAddLiquiditySlippage(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	_, err := f.engine.AddLiquidity(bob, poolAddr, 10_000, 10_000, 10_001)
	assert.ErrorIs(t, err, pool.ErrSlippageExceeded)
	assert.Equal(t, uint64(1_000_000), f.ledger.Balance(bob, mintA))
}

func TestRemoveLiquidityRoundTrip(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)
	p, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)

	lp := f.ledger.Balance(alice, p.LPMint)
	amountA, amountB, err := f.engine.RemoveLiquidity(alice, poolAddr, lp, 0, 0)
	require.NoError(t, err)

	// A full burn with no intervening trades pays out at most the deposits.
	assert.LessOrEqual(t, amountA, uint64(100_000))
	assert.LessOrEqual(t, amountB, uint64(100_000))
	assert.Equal(t, uint64(1_000_000), f.ledger.Balance(alice, mintA))
	assert.Equal(t, uint64(0), f.ledger.Supply(p.LPMint))
}

func TestSwapMovesTokensAndReserves(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	out, err := f.engine.Swap(bob, poolAddr, 10_000, 0)
	require.NoError(t, err)
	assert.Greater(t, out, uint64(0))

	p, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(110_000), p.TokenAReserve)
	assert.Equal(t, uint64(100_000)-out, p.TokenBReserve)
	assert.Equal(t, uint64(1_000_000)-10_000, f.ledger.Balance(bob, mintA))
	assert.Equal(t, uint64(1_000_000)+out, f.ledger.Balance(bob, mintB))

	// Reserves always mirror the vault balances.
	assert.Equal(t, p.TokenAReserve, f.ledger.Balance(poolAddr, mintA))
	assert.Equal(t, p.TokenBReserve, f.ledger.Balance(poolAddr, mintB))
}

func TestSwapSlippageGuard(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	_, err := f.engine.Swap(bob, poolAddr, 10_000, 1_000_000)
	assert.ErrorIs(t, err, pool.ErrSlippageExceeded)

	p, perr := f.engine.Pool(poolAddr)
	require.NoError(t, perr)
	assert.Equal(t, uint64(100_000), p.TokenAReserve)
	assert.Equal(t, uint64(1_000_000), f.ledger.Balance(bob, mintA))
}

func TestSwapExactTokensBothDirections(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	outB, err := f.engine.SwapExactTokensForTokens(bob, poolAddr, mintA, 10_000, 0)
	require.NoError(t, err)
	outA, err := f.engine.SwapExactTokensForTokens(bob, poolAddr, mintB, 10_000, 0)
	require.NoError(t, err)
	assert.Greater(t, outB, uint64(0))
	assert.Greater(t, outA, uint64(0))

	_, err = f.engine.SwapExactTokensForTokens(bob, poolAddr, key(99), 10_000, 0)
	assert.ErrorIs(t, err, pool.ErrInvalidMintPair)
}

func TestSwapTokensForExactTokens(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	in, err := f.engine.SwapTokensForExactTokens(bob, poolAddr, mintA, 5_000, 10_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000)+5_000, f.ledger.Balance(bob, mintB))
	assert.Equal(t, uint64(1_000_000)-in, f.ledger.Balance(bob, mintA))

	_, err = f.engine.SwapTokensForExactTokens(bob, poolAddr, mintA, 5_000, 1)
	assert.ErrorIs(t, err, pool.ErrSlippageExceeded)
}

func TestDelistedHookFreezesPool(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.seedPool(t)

	require.NoError(t, f.engine.RemoveHookFromWhitelist(admin, kycHook))

	// Every operation that would move tokens is rejected before any
	// balance or reserve changes.
	before, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)

	_, swapErr := f.engine.Swap(bob, poolAddr, 10_000, 0)
	assert.ErrorIs(t, swapErr, whitelist.ErrHookNotWhitelisted)
	_, addErr := f.engine.AddLiquidity(bob, poolAddr, 1_000, 1_000, 0)
	assert.ErrorIs(t, addErr, whitelist.ErrHookNotWhitelisted)
	_, _, rmErr := f.engine.RemoveLiquidity(alice, poolAddr, 1, 0, 0)
	assert.ErrorIs(t, rmErr, whitelist.ErrHookNotWhitelisted)

	after, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(1_000_000), f.ledger.Balance(bob, mintA))

	// Re-approving the hook unfreezes trading.
	require.NoError(t, f.engine.AddHookToWhitelist(admin, kycHook))
	_, err = f.engine.Swap(bob, poolAddr, 10_000, 0)
	assert.NoError(t, err)
}

func TestUpdatePoolConfig(t *testing.T) {
	f := newFixture(t)
	poolAddr := f.initPool(t)

	assert.ErrorIs(t, f.engine.UpdatePoolConfig(alice, poolAddr, 100, 500), ErrUnauthorized)
	require.NoError(t, f.engine.UpdatePoolConfig(admin, poolAddr, 100, 500))

	p, err := f.engine.Pool(poolAddr)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), p.FeeRateBps)
}

func TestGovernanceLifecycle(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "allow audited kyc hook",
		"https://audits.example/report.pdf", policy.MinProposerStake)
	require.NoError(t, err)
	assert.Equal(t, uint64(500_000_000_000)-policy.MinProposerStake,
		f.ledger.Balance(alice, solana.SolMint))

	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, policy.QuorumStake, true))

	// Finalization needs the deadline to pass.
	assert.ErrorIs(t, f.engine.FinalizeProposal(proposalAddr), governance.ErrVotingPeriodNotExpired)
	f.now = f.now.Add(policy.VotingPeriod)
	require.NoError(t, f.engine.FinalizeProposal(proposalAddr))

	// Voter stake comes back at finalization; the bond waits for execution.
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(bob, solana.SolMint))

	require.NoError(t, f.engine.ExecuteProposal(bob, proposalAddr))
	assert.True(t, f.engine.IsHookWhitelisted(evilHook))
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(alice, solana.SolMint))

	prop, err := f.engine.Proposal(proposalAddr)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusExecuted, prop.Status)

	// Execution is one-shot.
	assert.ErrorIs(t, f.engine.ExecuteProposal(bob, proposalAddr), governance.ErrProposalNotApproved)
}

func TestGovernanceRejection(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "sketchy hook", "",
		policy.MinProposerStake)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, policy.QuorumStake, false))

	f.now = f.now.Add(policy.VotingPeriod)
	require.NoError(t, f.engine.FinalizeProposal(proposalAddr))

	prop, err := f.engine.Proposal(proposalAddr)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusRejected, prop.Status)

	// Rejection refunds both the voter and the proposer.
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(alice, solana.SolMint))
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(bob, solana.SolMint))
	assert.False(t, f.engine.IsHookWhitelisted(evilHook))

	assert.ErrorIs(t, f.engine.ExecuteProposal(alice, proposalAddr), governance.ErrProposalNotApproved)
}

func TestGovernanceCancel(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "withdrawn", "",
		policy.MinProposerStake)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, 1_000_000, true))

	assert.ErrorIs(t, f.engine.CancelProposal(bob, proposalAddr), governance.ErrNotProposer)
	require.NoError(t, f.engine.CancelProposal(alice, proposalAddr))

	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(alice, solana.SolMint))
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(bob, solana.SolMint))

	assert.ErrorIs(t, f.engine.CancelProposal(alice, proposalAddr), governance.ErrProposalNotCancellable)
}

func TestDuplicateActiveProposalRejected(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	first, err := f.engine.CreateProposal(alice, evilHook, "first", "", policy.MinProposerStake)
	require.NoError(t, err)

	_, err = f.engine.CreateProposal(bob, evilHook, "second", "", policy.MinProposerStake)
	assert.ErrorIs(t, err, ErrDuplicateProposal)

	// A different hook is fine, and so is a retry once the first resolves.
	_, err = f.engine.CreateProposal(bob, key(32), "other hook", "", policy.MinProposerStake)
	assert.NoError(t, err)

	require.NoError(t, f.engine.CancelProposal(alice, first))
	_, err = f.engine.CreateProposal(bob, evilHook, "second attempt", "", policy.MinProposerStake)
	assert.NoError(t, err)
}

func TestGuardianCancelsApprovedProposal(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "guarded", "",
		policy.MinProposerStake)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, policy.QuorumStake, true))
	f.now = f.now.Add(policy.VotingPeriod)
	require.NoError(t, f.engine.FinalizeProposal(proposalAddr))

	// Approved proposals are out of the proposer's reach but the registry
	// authority can still pull them before execution.
	assert.ErrorIs(t, f.engine.CancelProposal(alice, proposalAddr),
		governance.ErrProposalNotCancellable)
	require.NoError(t, f.engine.CancelProposal(admin, proposalAddr))

	prop, err := f.engine.Proposal(proposalAddr)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusCancelled, prop.Status)
	assert.Equal(t, uint64(500_000_000_000), f.ledger.Balance(alice, solana.SolMint))
	assert.False(t, f.engine.IsHookWhitelisted(evilHook))

	assert.ErrorIs(t, f.engine.ExecuteProposal(alice, proposalAddr),
		governance.ErrProposalNotApproved)
}

func TestExecuteRetriesWhenWhitelistFull(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	// Fill the remaining registry slots (kycHook already holds one).
	for i := 0; i < whitelist.MaxWhitelistedHooks-1; i++ {
		require.NoError(t, f.engine.AddHookToWhitelist(admin, key(byte(100+i))))
	}

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "queued hook", "",
		policy.MinProposerStake)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, policy.QuorumStake, true))
	f.now = f.now.Add(policy.VotingPeriod)
	require.NoError(t, f.engine.FinalizeProposal(proposalAddr))

	// A full registry blocks execution but leaves the proposal approved.
	assert.ErrorIs(t, f.engine.ExecuteProposal(alice, proposalAddr), whitelist.ErrWhitelistFull)
	prop, err := f.engine.Proposal(proposalAddr)
	require.NoError(t, err)
	assert.Equal(t, governance.StatusApproved, prop.Status)

	require.NoError(t, f.engine.RemoveHookFromWhitelist(admin, key(100)))
	require.NoError(t, f.engine.ExecuteProposal(alice, proposalAddr))
	assert.True(t, f.engine.IsHookWhitelisted(evilHook))
}

func TestExecuteRequiresProposerWhenPermissioned(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()
	policy.PermissionlessExecution = false
	f.engine = NewEngine(f.ledger, WithClock(func() time.Time { return f.now }), WithPolicy(policy))
	require.NoError(t, f.engine.InitializeWhitelist(admin))

	proposalAddr, err := f.engine.CreateProposal(alice, evilHook, "restricted", "",
		policy.MinProposerStake)
	require.NoError(t, err)
	require.NoError(t, f.engine.VoteOnProposal(bob, proposalAddr, policy.QuorumStake, true))
	f.now = f.now.Add(policy.VotingPeriod)
	require.NoError(t, f.engine.FinalizeProposal(proposalAddr))

	assert.ErrorIs(t, f.engine.ExecuteProposal(bob, proposalAddr), ErrUnauthorized)
	require.NoError(t, f.engine.ExecuteProposal(alice, proposalAddr))
}

func TestProposalAddressesAreUnique(t *testing.T) {
	f := newFixture(t)
	policy := governance.DefaultPolicy()

	seen := make(map[solana.PublicKey]bool)
	for i := 0; i < 3; i++ {
		addr, err := f.engine.CreateProposal(alice, evilHook,
			fmt.Sprintf("attempt %d", i), "", policy.MinProposerStake)
		require.NoError(t, err)
		assert.False(t, seen[addr])
		seen[addr] = true
		require.NoError(t, f.engine.CancelProposal(alice, addr))
	}
}
