package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token2022-amm/internal/governance"
	"github.com/rovshanmuradov/token2022-amm/internal/whitelist"
)

func cloneProposal(p *governance.Proposal) governance.Proposal {
	clone := *p
	clone.Votes = append([]governance.Vote(nil), p.Votes...)
	return clone
}

// CreateProposal opens a hook approval vote and escrows the proposer's bond
// at the proposal address. The bond is returned on rejection, cancellation
// or execution.
func (e *Engine) CreateProposal(proposer, hookProgramID solana.PublicKey, description, auditReportURL string, proposerStake uint64) (solana.PublicKey, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for addr, rec := range e.proposals {
		rec.mu.Lock()
		duplicate := rec.state.Status == governance.StatusActive &&
			rec.state.HookProgramID.Equals(hookProgramID)
		rec.mu.Unlock()
		if duplicate {
			return solana.PublicKey{}, fmt.Errorf("%w: %s", ErrDuplicateProposal, addr)
		}
	}

	proposalAddr, _, err := ProposalAddress(hookProgramID, e.proposalCount)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive proposal address: %w", err)
	}

	state, err := governance.NewProposal(proposer, hookProgramID, description, auditReportURL,
		proposerStake, e.clock(), e.policy)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: solana.SolMint, From: proposer, To: proposalAddr, Amount: proposerStake},
	}); err != nil {
		return solana.PublicKey{}, fmt.Errorf("escrow proposer stake: %w", err)
	}

	e.proposals[proposalAddr] = &proposalRecord{state: state}
	e.proposalCount++

	e.log.Info("proposal created",
		zap.Stringer("proposal", proposalAddr),
		zap.Stringer("hook_program", hookProgramID),
		zap.Uint64("proposer_stake", proposerStake),
		zap.Int64("voting_deadline", state.VotingDeadline))
	return proposalAddr, nil
}

// VoteOnProposal casts a stake-weighted ballot and escrows the voter's
// stake at the proposal address until finalization.
func (e *Engine) VoteOnProposal(voter, proposalAddr solana.PublicKey, stakeAmount uint64, approve bool) error {
	rec, err := e.proposalRecord(proposalAddr)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	staged := cloneProposal(rec.state)
	if err := staged.AddVote(voter, stakeAmount, approve, e.clock()); err != nil {
		return err
	}
	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: solana.SolMint, From: voter, To: proposalAddr, Amount: stakeAmount},
	}); err != nil {
		return fmt.Errorf("escrow vote stake: %w", err)
	}
	*rec.state = staged

	e.log.Debug("vote recorded",
		zap.Stringer("proposal", proposalAddr),
		zap.Stringer("voter", voter),
		zap.Uint64("stake", stakeAmount),
		zap.Bool("approve", approve))
	return nil
}

// FinalizeProposal settles an active proposal after its deadline and
// refunds every voter's escrowed stake. A rejected proposal also returns
// the proposer's bond; an approved one keeps it until execution.
func (e *Engine) FinalizeProposal(proposalAddr solana.PublicKey) error {
	rec, err := e.proposalRecord(proposalAddr)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	staged := cloneProposal(rec.state)
	if err := staged.Finalize(e.clock(), e.policy); err != nil {
		return err
	}

	refunds := make([]Op, 0, len(staged.Votes)+1)
	for _, v := range staged.Votes {
		refunds = append(refunds, Op{
			Kind: OpTransfer, Mint: solana.SolMint,
			From: proposalAddr, To: v.Voter, Amount: v.StakeAmount,
		})
	}
	if staged.Status == governance.StatusRejected {
		refunds = append(refunds, Op{
			Kind: OpTransfer, Mint: solana.SolMint,
			From: proposalAddr, To: staged.Proposer, Amount: staged.ProposerStake,
		})
	}
	if err := e.ledger.Apply(refunds); err != nil {
		return fmt.Errorf("refund stakes: %w", err)
	}
	*rec.state = staged

	e.log.Info("proposal finalized",
		zap.Stringer("proposal", proposalAddr),
		zap.Stringer("status", staged.Status),
		zap.Uint64("approve_stake", staged.TotalApproveStake),
		zap.Uint64("reject_stake", staged.TotalRejectStake))
	return nil
}

// ExecuteProposal adds an approved proposal's hook to the registry and
// returns the proposer's bond. If the registry is full the proposal stays
// approved and execution can be retried after a slot frees up.
func (e *Engine) ExecuteProposal(caller, proposalAddr solana.PublicKey) error {
	rec, err := e.proposalRecord(proposalAddr)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !e.policy.PermissionlessExecution && !caller.Equals(rec.state.Proposer) {
		return ErrUnauthorized
	}

	staged := cloneProposal(rec.state)
	if err := staged.MarkExecuted(); err != nil {
		return err
	}

	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	if e.registry == nil {
		return ErrWhitelistNotInitialized
	}
	alreadyListed := e.registry.IsHookWhitelisted(staged.HookProgramID)
	if !alreadyListed && e.registry.HookCount >= whitelist.MaxWhitelistedHooks {
		return whitelist.ErrWhitelistFull
	}

	if err := e.ledger.Apply([]Op{
		{Kind: OpTransfer, Mint: solana.SolMint,
			From: proposalAddr, To: staged.Proposer, Amount: staged.ProposerStake},
	}); err != nil {
		return fmt.Errorf("refund proposer stake: %w", err)
	}
	if !alreadyListed {
		if err := e.registry.AddHook(staged.HookProgramID); err != nil {
			return err
		}
	}
	*rec.state = staged

	e.log.Info("proposal executed",
		zap.Stringer("proposal", proposalAddr),
		zap.Stringer("hook_program", staged.HookProgramID))
	return nil
}

// CancelProposal withdraws a proposal and refunds escrowed stake. The
// proposer may cancel while voting is open; the registry authority may also
// cancel an approved but unexecuted proposal. Voter stakes come back only
// when cancellation preempts finalization, which is the refund point
// otherwise.
func (e *Engine) CancelProposal(caller, proposalAddr solana.PublicKey) error {
	rec, err := e.proposalRecord(proposalAddr)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	staged := cloneProposal(rec.state)
	wasActive := staged.Status == governance.StatusActive

	if caller.Equals(staged.Proposer) {
		if err := staged.Cancel(caller); err != nil {
			return err
		}
	} else if auth, ok := e.registryAuthority(); ok && caller.Equals(auth) {
		if err := staged.CancelByGuardian(); err != nil {
			return err
		}
	} else {
		return governance.ErrNotProposer
	}

	refunds := []Op{{
		Kind: OpTransfer, Mint: solana.SolMint,
		From: proposalAddr, To: staged.Proposer, Amount: staged.ProposerStake,
	}}
	if wasActive {
		for _, v := range staged.Votes {
			refunds = append(refunds, Op{
				Kind: OpTransfer, Mint: solana.SolMint,
				From: proposalAddr, To: v.Voter, Amount: v.StakeAmount,
			})
		}
	}
	if err := e.ledger.Apply(refunds); err != nil {
		return fmt.Errorf("refund stakes: %w", err)
	}
	*rec.state = staged

	e.log.Info("proposal cancelled",
		zap.Stringer("proposal", proposalAddr),
		zap.Stringer("caller", caller))
	return nil
}
