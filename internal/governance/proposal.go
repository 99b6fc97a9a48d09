// Package governance implements stake-weighted approval voting for
// transfer-hook programs. A hook enters the registry only through an
// executed proposal that cleared the stake quorum.
package governance

import (
	"errors"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// DefaultVotingPeriod is how long a proposal accepts votes.
	DefaultVotingPeriod = 7 * 24 * time.Hour

	// DefaultMinProposerStake is the bond a proposer locks, in lamports.
	DefaultMinProposerStake = 10_000_000_000

	// DefaultQuorumStake is the approve-side stake required for approval,
	// in lamports.
	DefaultQuorumStake = 100_000_000_000

	// MaxDescriptionLen bounds the proposal description.
	MaxDescriptionLen = 256

	// MaxAuditURLLen bounds the audit report link.
	MaxAuditURLLen = 200
)

var (
	ErrInvalidHookProgram     = errors.New("invalid hook program id")
	ErrInvalidDescription     = errors.New("invalid proposal description")
	ErrInvalidAuditURL        = errors.New("invalid audit report url")
	ErrInsufficientStake      = errors.New("stake below required minimum")
	ErrProposalNotActive      = errors.New("proposal is not active")
	ErrVotingPeriodExpired    = errors.New("voting period has expired")
	ErrVotingPeriodNotExpired = errors.New("voting period has not expired")
	ErrAlreadyVoted           = errors.New("voter has already voted")
	ErrProposalNotApproved    = errors.New("proposal is not approved")
	ErrProposalNotCancellable = errors.New("proposal cannot be cancelled")
	ErrNotProposer            = errors.New("only the proposer may cancel")
	ErrStakeOverflow          = errors.New("stake tally overflow")
)

// ProposalStatus is the lifecycle state of a hook proposal.
type ProposalStatus uint8

const (
	StatusActive ProposalStatus = iota
	StatusApproved
	StatusRejected
	StatusCancelled
	StatusExecuted
)

func (s ProposalStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	case StatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Policy holds the governance parameters. All stake amounts are lamports.
type Policy struct {
	VotingPeriod time.Duration

	// MinProposerStake is the bond locked when a proposal is created.
	MinProposerStake uint64

	// QuorumStake is the minimum approve-side stake for approval.
	QuorumStake uint64

	// ApprovalMargin is how much approve stake must exceed reject stake.
	// Zero means a simple strict majority of stake.
	ApprovalMargin uint64

	// PermissionlessExecution allows anyone to execute an approved
	// proposal. When false only the proposer may.
	PermissionlessExecution bool
}

// DefaultPolicy returns the production governance parameters.
func DefaultPolicy() Policy {
	return Policy{
		VotingPeriod:            DefaultVotingPeriod,
		MinProposerStake:        DefaultMinProposerStake,
		QuorumStake:             DefaultQuorumStake,
		ApprovalMargin:          0,
		PermissionlessExecution: true,
	}
}

// Vote is one voter's stake-weighted ballot. A voter appears at most once
// per proposal. Field order is part of the serialized account layout.
type Vote struct {
	Voter       solana.PublicKey
	Approve     bool
	StakeAmount uint64
	Timestamp   int64
}

// Proposal mirrors the on-chain HookProposal account.
type Proposal struct {
	Proposer          solana.PublicKey
	HookProgramID     solana.PublicKey
	Description       string
	AuditReportURL    string
	ProposerStake     uint64
	CreatedAt         int64
	VotingDeadline    int64
	Status            ProposalStatus
	TotalApproveStake uint64
	TotalRejectStake  uint64
	Votes             []Vote
}

// NewProposal opens a voting round for the given hook program. The proposer
// bond must already be escrowed by the caller.
func NewProposal(proposer, hookProgramID solana.PublicKey, description, auditReportURL string, proposerStake uint64, now time.Time, policy Policy) (*Proposal, error) {
	if hookProgramID.IsZero() {
		return nil, ErrInvalidHookProgram
	}
	if description == "" || len(description) > MaxDescriptionLen {
		return nil, ErrInvalidDescription
	}
	if len(auditReportURL) > MaxAuditURLLen {
		return nil, ErrInvalidAuditURL
	}
	if proposerStake < policy.MinProposerStake {
		return nil, ErrInsufficientStake
	}
	return &Proposal{
		Proposer:       proposer,
		HookProgramID:  hookProgramID,
		Description:    description,
		AuditReportURL: auditReportURL,
		ProposerStake:  proposerStake,
		CreatedAt:      now.Unix(),
		VotingDeadline: now.Add(policy.VotingPeriod).Unix(),
		Status:         StatusActive,
	}, nil
}

// HasVoted reports whether the voter already cast a ballot.
func (p *Proposal) HasVoted(voter solana.PublicKey) bool {
	for i := range p.Votes {
		if p.Votes[i].Voter.Equals(voter) {
			return true
		}
	}
	return false
}

// AddVote records a stake-weighted ballot. The vote stake must already be
// escrowed by the caller; it is weighed once and cannot be changed.
func (p *Proposal) AddVote(voter solana.PublicKey, stakeAmount uint64, approve bool, now time.Time) error {
	if p.Status != StatusActive {
		return ErrProposalNotActive
	}
	if now.Unix() >= p.VotingDeadline {
		return ErrVotingPeriodExpired
	}
	if stakeAmount == 0 {
		return ErrInsufficientStake
	}
	if p.HasVoted(voter) {
		return ErrAlreadyVoted
	}

	if approve {
		sum, carry := bits.Add64(p.TotalApproveStake, stakeAmount, 0)
		if carry != 0 {
			return ErrStakeOverflow
		}
		p.TotalApproveStake = sum
	} else {
		sum, carry := bits.Add64(p.TotalRejectStake, stakeAmount, 0)
		if carry != 0 {
			return ErrStakeOverflow
		}
		p.TotalRejectStake = sum
	}

	p.Votes = append(p.Votes, Vote{
		Voter:       voter,
		StakeAmount: stakeAmount,
		Approve:     approve,
		Timestamp:   now.Unix(),
	})
	return nil
}

// Finalize settles an active proposal after the deadline. Approval requires
// the approve-side stake to reach the quorum and exceed the reject side by
// the configured margin.
func (p *Proposal) Finalize(now time.Time, policy Policy) error {
	if p.Status != StatusActive {
		return ErrProposalNotActive
	}
	if now.Unix() < p.VotingDeadline {
		return ErrVotingPeriodNotExpired
	}

	approved := p.TotalApproveStake >= policy.QuorumStake &&
		p.TotalApproveStake > p.TotalRejectStake &&
		p.TotalApproveStake-p.TotalRejectStake >= policy.ApprovalMargin
	if approved {
		p.Status = StatusApproved
	} else {
		p.Status = StatusRejected
	}
	return nil
}

// MarkExecuted transitions an approved proposal to executed. Called only
// after the hook has actually been added to the registry.
func (p *Proposal) MarkExecuted() error {
	if p.Status != StatusApproved {
		return ErrProposalNotApproved
	}
	p.Status = StatusExecuted
	return nil
}

// Cancel withdraws an active proposal. Only the proposer may cancel, and
// only before finalization.
func (p *Proposal) Cancel(by solana.PublicKey) error {
	if !by.Equals(p.Proposer) {
		return ErrNotProposer
	}
	if p.Status != StatusActive {
		return ErrProposalNotCancellable
	}
	p.Status = StatusCancelled
	return nil
}

// CancelByGuardian withdraws a proposal on behalf of the registry
// authority. Allowed while the proposal is active or approved but not yet
// executed.
func (p *Proposal) CancelByGuardian() error {
	if p.Status != StatusActive && p.Status != StatusApproved {
		return ErrProposalNotCancellable
	}
	p.Status = StatusCancelled
	return nil
}
