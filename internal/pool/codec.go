package pool

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token2022-amm/internal/anchor"
)

// Discriminator identifies AmmPool accounts on chain.
var Discriminator = anchor.AccountDiscriminator("AmmPool")

// AccountSize is the exact serialized size of a pool account.
const AccountSize = 8 + 32*6 + 8*5 + 1 + 8*8

// Marshal serializes the pool into its on-chain layout.
func (p *Pool) Marshal() []byte {
	data := make([]byte, AccountSize)
	pos := 0

	copy(data[pos:pos+8], Discriminator[:])
	pos += 8
	for _, key := range []solana.PublicKey{
		p.Authority, p.TokenAMint, p.TokenBMint,
		p.TokenAVault, p.TokenBVault, p.LPMint,
	} {
		copy(data[pos:pos+32], key[:])
		pos += 32
	}
	for _, v := range []uint64{
		p.TotalLPSupply, p.TokenAReserve, p.TokenBReserve,
		p.FeeRateBps, p.MinLiquidity,
	} {
		binary.LittleEndian.PutUint64(data[pos:pos+8], v)
		pos += 8
	}
	data[pos] = p.Bump
	pos++
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(data[pos:pos+8], p.Reserved[i])
		pos += 8
	}

	return data
}

// Parse deserializes an AmmPool account.
func Parse(data []byte) (*Pool, error) {
	if len(data) < AccountSize {
		return nil, fmt.Errorf("data too short for AmmPool: got %d, need %d", len(data), AccountSize)
	}
	if !bytes.Equal(data[:8], Discriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for AmmPool")
	}

	p := &Pool{}
	pos := 8

	for _, key := range []*solana.PublicKey{
		&p.Authority, &p.TokenAMint, &p.TokenBMint,
		&p.TokenAVault, &p.TokenBVault, &p.LPMint,
	} {
		*key = solana.PublicKeyFromBytes(data[pos : pos+32])
		pos += 32
	}
	for _, v := range []*uint64{
		&p.TotalLPSupply, &p.TokenAReserve, &p.TokenBReserve,
		&p.FeeRateBps, &p.MinLiquidity,
	} {
		*v = binary.LittleEndian.Uint64(data[pos : pos+8])
		pos += 8
	}
	p.Bump = data[pos]
	pos++
	for i := 0; i < 8; i++ {
		p.Reserved[i] = binary.LittleEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	return p, nil
}
