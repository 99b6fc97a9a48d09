// =============================
// File: internal/sdk/instructions.go
// =============================
package sdk

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token2022-amm/internal/anchor"
)

// Token2022ProgramID is the SPL Token-2022 program.
var Token2022ProgramID = solana.MPK("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")

// Instruction discriminators derived from the instruction names.
var (
	initializeWhitelistDisc = anchor.InstructionDiscriminator("initialize_whitelist")
	addHookDisc             = anchor.InstructionDiscriminator("add_hook_to_whitelist")
	removeHookDisc          = anchor.InstructionDiscriminator("remove_hook_from_whitelist")
	initializePoolDisc      = anchor.InstructionDiscriminator("initialize_pool")
	addLiquidityDisc        = anchor.InstructionDiscriminator("add_liquidity")
	removeLiquidityDisc     = anchor.InstructionDiscriminator("remove_liquidity")
	swapDisc                = anchor.InstructionDiscriminator("swap")
	swapExactTokensDisc     = anchor.InstructionDiscriminator("swap_exact_tokens_for_tokens")
	swapTokensForExactDisc  = anchor.InstructionDiscriminator("swap_tokens_for_exact_tokens")
	updatePoolConfigDisc    = anchor.InstructionDiscriminator("update_pool_config")
	createProposalDisc      = anchor.InstructionDiscriminator("create_hook_proposal")
	voteOnProposalDisc      = anchor.InstructionDiscriminator("vote_on_proposal")
	finalizeProposalDisc    = anchor.InstructionDiscriminator("finalize_proposal")
	executeProposalDisc     = anchor.InstructionDiscriminator("execute_proposal")
	cancelProposalDisc      = anchor.InstructionDiscriminator("cancel_proposal")
)

// InstructionBuilder assembles program instructions with the account
// ordering the program expects.
type InstructionBuilder struct {
	programID solana.PublicKey
}

func NewInstructionBuilder(programID solana.PublicKey) *InstructionBuilder {
	return &InstructionBuilder{programID: programID}
}

// instructionData packs a discriminator followed by little-endian u64 args.
func instructionData(disc [8]byte, args ...uint64) []byte {
	data := make([]byte, 8+8*len(args))
	copy(data[0:8], disc[:])
	for i, arg := range args {
		binary.LittleEndian.PutUint64(data[8+8*i:16+8*i], arg)
	}
	return data
}

// appendBorshString appends a u32 length prefix and the raw bytes.
func appendBorshString(data []byte, s string) []byte {
	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
	data = append(data, l[:]...)
	return append(data, s...)
}

func (b *InstructionBuilder) InitializeWhitelist(authority, whitelistAddr solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(whitelistAddr, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(b.programID, accounts, instructionData(initializeWhitelistDisc))
}

func (b *InstructionBuilder) AddHookToWhitelist(authority, whitelistAddr, hookProgramID solana.PublicKey) solana.Instruction {
	data := instructionData(addHookDisc)
	data = append(data, hookProgramID.Bytes()...)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(whitelistAddr, true, false),
		solana.NewAccountMeta(authority, false, true),
	}
	return solana.NewInstruction(b.programID, accounts, data)
}

func (b *InstructionBuilder) RemoveHookFromWhitelist(authority, whitelistAddr, hookProgramID solana.PublicKey) solana.Instruction {
	data := instructionData(removeHookDisc)
	data = append(data, hookProgramID.Bytes()...)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(whitelistAddr, true, false),
		solana.NewAccountMeta(authority, false, true),
	}
	return solana.NewInstruction(b.programID, accounts, data)
}

// PoolAccounts carries the addresses every pool instruction touches.
type PoolAccounts struct {
	Pool          solana.PublicKey
	Whitelist     solana.PublicKey
	TokenAMint    solana.PublicKey
	TokenBMint    solana.PublicKey
	TokenAVault   solana.PublicKey
	TokenBVault   solana.PublicKey
	LPMint        solana.PublicKey
	UserTokenA    solana.PublicKey
	UserTokenB    solana.PublicKey
	UserLPAccount solana.PublicKey
}

func (b *InstructionBuilder) InitializePool(authority solana.PublicKey, accs PoolAccounts, feeRateBps uint64) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(accs.Pool, true, false),
		solana.NewAccountMeta(accs.Whitelist, false, false),
		solana.NewAccountMeta(accs.TokenAMint, false, false),
		solana.NewAccountMeta(accs.TokenBMint, false, false),
		solana.NewAccountMeta(accs.TokenAVault, true, false),
		solana.NewAccountMeta(accs.TokenBVault, true, false),
		solana.NewAccountMeta(accs.LPMint, true, false),
		solana.NewAccountMeta(authority, true, true),
		solana.NewAccountMeta(Token2022ProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(b.programID, accounts, instructionData(initializePoolDisc, feeRateBps))
}

func (b *InstructionBuilder) userPoolAccounts(user solana.PublicKey, accs PoolAccounts) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.NewAccountMeta(accs.Pool, true, false),
		solana.NewAccountMeta(accs.Whitelist, false, false),
		solana.NewAccountMeta(accs.TokenAMint, false, false),
		solana.NewAccountMeta(accs.TokenBMint, false, false),
		solana.NewAccountMeta(accs.TokenAVault, true, false),
		solana.NewAccountMeta(accs.TokenBVault, true, false),
		solana.NewAccountMeta(accs.LPMint, true, false),
		solana.NewAccountMeta(accs.UserTokenA, true, false),
		solana.NewAccountMeta(accs.UserTokenB, true, false),
		solana.NewAccountMeta(accs.UserLPAccount, true, false),
		solana.NewAccountMeta(user, true, true),
		solana.NewAccountMeta(Token2022ProgramID, false, false),
	}
}

func (b *InstructionBuilder) AddLiquidity(user solana.PublicKey, accs PoolAccounts, amountA, amountB, minLPTokens uint64) solana.Instruction {
	return solana.NewInstruction(b.programID, b.userPoolAccounts(user, accs),
		instructionData(addLiquidityDisc, amountA, amountB, minLPTokens))
}

func (b *InstructionBuilder) RemoveLiquidity(user solana.PublicKey, accs PoolAccounts, lpTokens, minAmountA, minAmountB uint64) solana.Instruction {
	return solana.NewInstruction(b.programID, b.userPoolAccounts(user, accs),
		instructionData(removeLiquidityDisc, lpTokens, minAmountA, minAmountB))
}

func (b *InstructionBuilder) Swap(user solana.PublicKey, accs PoolAccounts, amountIn, minAmountOut uint64) solana.Instruction {
	return solana.NewInstruction(b.programID, b.userPoolAccounts(user, accs),
		instructionData(swapDisc, amountIn, minAmountOut))
}

func (b *InstructionBuilder) SwapExactTokensForTokens(user solana.PublicKey, accs PoolAccounts, inputMint solana.PublicKey, amountIn, minAmountOut uint64) solana.Instruction {
	data := instructionData(swapExactTokensDisc, amountIn, minAmountOut)
	data = append(data, inputMint.Bytes()...)
	return solana.NewInstruction(b.programID, b.userPoolAccounts(user, accs), data)
}

func (b *InstructionBuilder) SwapTokensForExactTokens(user solana.PublicKey, accs PoolAccounts, inputMint solana.PublicKey, amountOut, maxAmountIn uint64) solana.Instruction {
	data := instructionData(swapTokensForExactDisc, amountOut, maxAmountIn)
	data = append(data, inputMint.Bytes()...)
	return solana.NewInstruction(b.programID, b.userPoolAccounts(user, accs), data)
}

func (b *InstructionBuilder) UpdatePoolConfig(authority, poolAddr solana.PublicKey, feeRateBps, minLiquidity uint64) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(poolAddr, true, false),
		solana.NewAccountMeta(authority, false, true),
	}
	return solana.NewInstruction(b.programID, accounts,
		instructionData(updatePoolConfigDisc, feeRateBps, minLiquidity))
}

func (b *InstructionBuilder) CreateProposal(proposer, proposalAddr, hookProgramID solana.PublicKey, description, auditReportURL string, proposerStake uint64) solana.Instruction {
	data := instructionData(createProposalDisc)
	data = append(data, hookProgramID.Bytes()...)
	data = appendBorshString(data, description)
	data = appendBorshString(data, auditReportURL)
	var stake [8]byte
	binary.LittleEndian.PutUint64(stake[:], proposerStake)
	data = append(data, stake[:]...)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(proposalAddr, true, false),
		solana.NewAccountMeta(proposer, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(b.programID, accounts, data)
}

// VoteOnProposal packs the ballot byte before the stake amount, matching
// the handler's argument order.
func (b *InstructionBuilder) VoteOnProposal(voter, proposalAddr solana.PublicKey, stakeAmount uint64, approve bool) solana.Instruction {
	data := instructionData(voteOnProposalDisc)
	if approve {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	var stake [8]byte
	binary.LittleEndian.PutUint64(stake[:], stakeAmount)
	data = append(data, stake[:]...)

	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(proposalAddr, true, false),
		solana.NewAccountMeta(voter, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	return solana.NewInstruction(b.programID, accounts, data)
}

func (b *InstructionBuilder) FinalizeProposal(caller, proposalAddr solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(proposalAddr, true, false),
		solana.NewAccountMeta(caller, true, true),
	}
	return solana.NewInstruction(b.programID, accounts, instructionData(finalizeProposalDisc))
}

func (b *InstructionBuilder) ExecuteProposal(caller, proposalAddr, whitelistAddr solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(proposalAddr, true, false),
		solana.NewAccountMeta(whitelistAddr, true, false),
		solana.NewAccountMeta(caller, true, true),
	}
	return solana.NewInstruction(b.programID, accounts, instructionData(executeProposalDisc))
}

func (b *InstructionBuilder) CancelProposal(proposer, proposalAddr solana.PublicKey) solana.Instruction {
	accounts := []*solana.AccountMeta{
		solana.NewAccountMeta(proposalAddr, true, false),
		solana.NewAccountMeta(proposer, true, true),
	}
	return solana.NewInstruction(b.programID, accounts, instructionData(cancelProposalDisc))
}
