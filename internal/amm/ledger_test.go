package amm

import (
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(seed byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = seed
	}
	return k
}

func TestRegisterMint(t *testing.T) {
	l := NewLedger()
	mint, hook := key(1), key(2)

	require.NoError(t, l.RegisterMint(mint, hook))
	assert.ErrorIs(t, l.RegisterMint(mint, hook), ErrMintExists)
	assert.ErrorIs(t, l.RegisterMint(solana.PublicKey{}, hook), ErrUnknownMint)

	got, ok := l.HookProgram(mint)
	require.True(t, ok)
	assert.Equal(t, hook, got)

	plain := key(3)
	require.NoError(t, l.RegisterMint(plain, solana.PublicKey{}))
	_, ok = l.HookProgram(plain)
	assert.False(t, ok)
	assert.True(t, l.HasMint(plain))
	assert.False(t, l.HasMint(key(9)))
}

func TestMintTransferBurn(t *testing.T) {
	l := NewLedger()
	mint, alice, bob := key(1), key(10), key(11)
	require.NoError(t, l.RegisterMint(mint, solana.PublicKey{}))

	require.NoError(t, l.MintTo(mint, alice, 1000))
	assert.Equal(t, uint64(1000), l.Balance(alice, mint))
	assert.Equal(t, uint64(1000), l.Supply(mint))

	require.NoError(t, l.Apply([]Op{
		{Kind: OpTransfer, Mint: mint, From: alice, To: bob, Amount: 400},
	}))
	assert.Equal(t, uint64(600), l.Balance(alice, mint))
	assert.Equal(t, uint64(400), l.Balance(bob, mint))

	require.NoError(t, l.Apply([]Op{
		{Kind: OpBurn, Mint: mint, From: bob, Amount: 400},
	}))
	assert.Equal(t, uint64(0), l.Balance(bob, mint))
	assert.Equal(t, uint64(600), l.Supply(mint))
}

func TestApplyIsAtomic(t *testing.T) {
	l := NewLedger()
	mint, alice, bob := key(1), key(10), key(11)
	require.NoError(t, l.RegisterMint(mint, solana.PublicKey{}))
	require.NoError(t, l.MintTo(mint, alice, 100))

	// The second transfer overdraws, so the first must not land either.
	err := l.Apply([]Op{
		{Kind: OpTransfer, Mint: mint, From: alice, To: bob, Amount: 50},
		{Kind: OpTransfer, Mint: mint, From: alice, To: bob, Amount: 51},
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, uint64(100), l.Balance(alice, mint))
	assert.Equal(t, uint64(0), l.Balance(bob, mint))
}

func TestApplySeesStagedState(t *testing.T) {
	l := NewLedger()
	mint, alice, bob, carol := key(1), key(10), key(11), key(12)
	require.NoError(t, l.RegisterMint(mint, solana.PublicKey{}))
	require.NoError(t, l.MintTo(mint, alice, 100))

	// Bob forwards funds he only receives earlier in the same batch.
	require.NoError(t, l.Apply([]Op{
		{Kind: OpTransfer, Mint: mint, From: alice, To: bob, Amount: 100},
		{Kind: OpTransfer, Mint: mint, From: bob, To: carol, Amount: 100},
	}))
	assert.Equal(t, uint64(0), l.Balance(alice, mint))
	assert.Equal(t, uint64(0), l.Balance(bob, mint))
	assert.Equal(t, uint64(100), l.Balance(carol, mint))
}

func TestApplyRejectsUnknownMint(t *testing.T) {
	l := NewLedger()
	err := l.Apply([]Op{{Kind: OpTransfer, Mint: key(1), From: key(10), To: key(11), Amount: 1}})
	assert.ErrorIs(t, err, ErrUnknownMint)
}

func TestApplySupplyOverflow(t *testing.T) {
	l := NewLedger()
	mint := key(1)
	require.NoError(t, l.RegisterMint(mint, solana.PublicKey{}))
	require.NoError(t, l.MintTo(mint, key(10), math.MaxUint64))

	err := l.MintTo(mint, key(11), 1)
	assert.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, uint64(math.MaxUint64), l.Supply(mint))
}
