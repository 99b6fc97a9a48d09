package governance

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"github.com/rovshanmuradov/token2022-amm/internal/anchor"
)

// Discriminator identifies HookProposal accounts on chain.
var Discriminator = anchor.AccountDiscriminator("HookProposal")

// Marshal serializes the proposal as a discriminator-prefixed Borsh blob.
// Unlike the fixed-size registry and pool accounts, proposals carry
// variable-length strings and a vote vector, so the size depends on content.
func (p *Proposal) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(Discriminator[:])
	if err := bin.NewBorshEncoder(buf).Encode(p); err != nil {
		return nil, fmt.Errorf("encode HookProposal: %w", err)
	}
	return buf.Bytes(), nil
}

// Parse deserializes a HookProposal account.
func Parse(data []byte) (*Proposal, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("data too short for HookProposal: got %d", len(data))
	}
	if !bytes.Equal(data[:8], Discriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for HookProposal")
	}

	p := &Proposal{}
	if err := bin.NewBorshDecoder(data[8:]).Decode(p); err != nil {
		return nil, fmt.Errorf("decode HookProposal: %w", err)
	}
	if p.Status > StatusExecuted {
		return nil, fmt.Errorf("invalid proposal status %d", p.Status)
	}
	return p, nil
}
