package amm

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrMintExists          = errors.New("mint already registered")
	ErrUnknownMint         = errors.New("unknown mint")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrBalanceOverflow     = errors.New("token balance overflow")
)

// OpKind selects the effect of a ledger operation.
type OpKind uint8

const (
	OpTransfer OpKind = iota
	OpMint
	OpBurn
)

// Op is one token movement inside an atomic batch. From is ignored for
// mints, To for burns.
type Op struct {
	Kind   OpKind
	Mint   solana.PublicKey
	From   solana.PublicKey
	To     solana.PublicKey
	Amount uint64
}

type balanceKey struct {
	owner solana.PublicKey
	mint  solana.PublicKey
}

type mintInfo struct {
	supply      uint64
	hookProgram solana.PublicKey
	hasHook     bool
}

// Ledger is the token-account model backing the engine: balances keyed by
// (owner, mint), plus per-mint supply and the optional transfer hook the
// mint was created with. Batches commit all-or-nothing.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]uint64
	mints    map[solana.PublicKey]*mintInfo
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]uint64),
		mints:    make(map[solana.PublicKey]*mintInfo),
	}
}

// RegisterMint adds a mint to the ledger. A zero hookProgram means the mint
// carries no transfer hook. The hook binding is immutable afterwards.
func (l *Ledger) RegisterMint(mint, hookProgram solana.PublicKey) error {
	if mint.IsZero() {
		return ErrUnknownMint
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.mints[mint]; ok {
		return ErrMintExists
	}
	l.mints[mint] = &mintInfo{
		hookProgram: hookProgram,
		hasHook:     !hookProgram.IsZero(),
	}
	return nil
}

// HasMint reports whether the mint is registered.
func (l *Ledger) HasMint(mint solana.PublicKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.mints[mint]
	return ok
}

// HookProgram returns the transfer hook bound to the mint, if any.
func (l *Ledger) HookProgram(mint solana.PublicKey) (solana.PublicKey, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info, ok := l.mints[mint]
	if !ok || !info.hasHook {
		return solana.PublicKey{}, false
	}
	return info.hookProgram, true
}

// Balance returns the owner's balance for the mint. Unknown accounts read
// as zero.
func (l *Ledger) Balance(owner, mint solana.PublicKey) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{owner, mint}]
}

// Supply returns the total minted amount for the mint.
func (l *Ledger) Supply(mint solana.PublicKey) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	info, ok := l.mints[mint]
	if !ok {
		return 0
	}
	return info.supply
}

// MintTo issues amount of mint to owner.
func (l *Ledger) MintTo(mint, owner solana.PublicKey, amount uint64) error {
	return l.Apply([]Op{{Kind: OpMint, Mint: mint, To: owner, Amount: amount}})
}

// Apply executes the batch atomically: every op is validated against the
// staged state and either all of them commit or none do.
func (l *Ledger) Apply(ops []Op) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[balanceKey]uint64, len(ops)*2)
	supplies := make(map[solana.PublicKey]uint64, len(ops))

	read := func(k balanceKey) uint64 {
		if v, ok := staged[k]; ok {
			return v
		}
		return l.balances[k]
	}
	supply := func(mint solana.PublicKey) (uint64, error) {
		if v, ok := supplies[mint]; ok {
			return v, nil
		}
		info, ok := l.mints[mint]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
		}
		return info.supply, nil
	}

	for i, op := range ops {
		if op.Amount == 0 {
			continue
		}
		cur, err := supply(op.Mint)
		if err != nil {
			return err
		}

		switch op.Kind {
		case OpTransfer:
			from := balanceKey{op.From, op.Mint}
			to := balanceKey{op.To, op.Mint}
			if read(from) < op.Amount {
				return fmt.Errorf("op %d: %w", i, ErrInsufficientBalance)
			}
			sum, carry := bits.Add64(read(to), op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("op %d: %w", i, ErrBalanceOverflow)
			}
			staged[from] = read(from) - op.Amount
			staged[to] = sum

		case OpMint:
			to := balanceKey{op.To, op.Mint}
			newSupply, carry := bits.Add64(cur, op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("op %d: %w", i, ErrBalanceOverflow)
			}
			sum, carry := bits.Add64(read(to), op.Amount, 0)
			if carry != 0 {
				return fmt.Errorf("op %d: %w", i, ErrBalanceOverflow)
			}
			supplies[op.Mint] = newSupply
			staged[to] = sum

		case OpBurn:
			from := balanceKey{op.From, op.Mint}
			if read(from) < op.Amount {
				return fmt.Errorf("op %d: %w", i, ErrInsufficientBalance)
			}
			if cur < op.Amount {
				return fmt.Errorf("op %d: %w", i, ErrInsufficientBalance)
			}
			supplies[op.Mint] = cur - op.Amount
			staged[from] = read(from) - op.Amount

		default:
			return fmt.Errorf("op %d: unknown op kind %d", i, op.Kind)
		}
	}

	for k, v := range staged {
		if v == 0 {
			delete(l.balances, k)
			continue
		}
		l.balances[k] = v
	}
	for mint, v := range supplies {
		l.mints[mint].supply = v
	}
	return nil
}
