// Package amm ties the whitelist registry, the pool state machine and hook
// governance together behind one engine with atomic, hook-gated token
// movements.
package amm

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token2022-amm/internal/governance"
	"github.com/rovshanmuradov/token2022-amm/internal/pool"
	"github.com/rovshanmuradov/token2022-amm/internal/whitelist"
)

// ProgramID is the deployed program address all PDAs derive from.
var ProgramID = solana.MustPublicKeyFromBase58("5VFsZC9h31MA9gMkV8ycx8eeyHXJT4QE36SgopWKXnE7")

var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrWhitelistNotInitialized = errors.New("whitelist not initialized")
	ErrWhitelistAlreadyExists  = errors.New("whitelist already initialized")
	ErrPoolNotFound            = errors.New("pool not found")
	ErrPoolAlreadyExists       = errors.New("pool already exists")
	ErrProposalNotFound        = errors.New("proposal not found")
	ErrDuplicateProposal       = errors.New("hook already has an active proposal")
)

type poolRecord struct {
	mu    sync.Mutex
	state *pool.Pool
}

type proposalRecord struct {
	mu    sync.Mutex
	state *governance.Proposal
}

// Engine hosts the program state: one registry, the pools and the open
// proposals, all backed by a shared token ledger. Each record carries its
// own lock so unrelated pools and proposals never contend. The registry
// lock is always the innermost one.
type Engine struct {
	log    *zap.Logger
	clock  func() time.Time
	policy governance.Policy
	ledger *Ledger

	registryMu sync.RWMutex
	registry   *whitelist.Whitelist

	mu            sync.RWMutex
	pools         map[solana.PublicKey]*poolRecord
	proposals     map[solana.PublicKey]*proposalRecord
	proposalCount uint64
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithPolicy(policy governance.Policy) Option {
	return func(e *Engine) { e.policy = policy }
}

// NewEngine creates an engine over the given ledger. The native SOL mint is
// registered for governance stake escrow if the ledger does not have it yet.
func NewEngine(ledger *Ledger, opts ...Option) *Engine {
	e := &Engine{
		log:       zap.NewNop(),
		clock:     time.Now,
		policy:    governance.DefaultPolicy(),
		ledger:    ledger,
		pools:     make(map[solana.PublicKey]*poolRecord),
		proposals: make(map[solana.PublicKey]*proposalRecord),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("amm_engine")
	if err := ledger.RegisterMint(solana.SolMint, solana.PublicKey{}); err != nil && !errors.Is(err, ErrMintExists) {
		e.log.Warn("stake mint registration failed", zap.Error(err))
	}
	return e
}

// Ledger exposes the backing token ledger for balance inspection.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// StakeMint is the mint governance stake is escrowed in.
func (e *Engine) StakeMint() solana.PublicKey { return solana.SolMint }

// WhitelistAddress derives the singleton registry PDA.
func WhitelistAddress() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("whitelist")}, ProgramID)
}

// PoolAddress derives the pool PDA for an ordered mint pair.
func PoolAddress(tokenAMint, tokenBMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("pool"), tokenAMint.Bytes(), tokenBMint.Bytes()},
		ProgramID,
	)
}

// LPMintAddress derives the LP mint PDA for a pool.
func LPMintAddress(poolAddr solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("lp_mint"), poolAddr.Bytes()},
		ProgramID,
	)
}

// VaultAddress derives a pool's vault PDA for one of its mints.
func VaultAddress(poolAddr, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("vault"), poolAddr.Bytes(), mint.Bytes()},
		ProgramID,
	)
}

// ProposalAddress derives a proposal PDA from the hook program and a
// monotonically increasing counter.
func ProposalAddress(hookProgramID solana.PublicKey, count uint64) (solana.PublicKey, uint8, error) {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], count)
	return solana.FindProgramAddress(
		[][]byte{[]byte("proposal"), hookProgramID.Bytes(), seq[:]},
		ProgramID,
	)
}

func (e *Engine) poolRecord(poolAddr solana.PublicKey) (*poolRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.pools[poolAddr]
	if !ok {
		return nil, ErrPoolNotFound
	}
	return rec, nil
}

func (e *Engine) proposalRecord(proposalAddr solana.PublicKey) (*proposalRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rec, ok := e.proposals[proposalAddr]
	if !ok {
		return nil, ErrProposalNotFound
	}
	return rec, nil
}

// Pool returns a snapshot of the pool state.
func (e *Engine) Pool(poolAddr solana.PublicKey) (pool.Pool, error) {
	rec, err := e.poolRecord(poolAddr)
	if err != nil {
		return pool.Pool{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return *rec.state, nil
}

// Proposal returns a snapshot of the proposal state.
func (e *Engine) Proposal(proposalAddr solana.PublicKey) (governance.Proposal, error) {
	rec, err := e.proposalRecord(proposalAddr)
	if err != nil {
		return governance.Proposal{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	snap := *rec.state
	snap.Votes = append([]governance.Vote(nil), rec.state.Votes...)
	return snap, nil
}
