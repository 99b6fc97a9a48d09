package whitelist

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/token2022-amm/internal/anchor"
)

// Discriminator identifies TransferHookWhitelist accounts on chain.
var Discriminator = anchor.AccountDiscriminator("TransferHookWhitelist")

// AccountSize is the exact serialized size of a whitelist account:
// discriminator + authority + hookCount + reserved + 32 hook slots + padding.
const AccountSize = 8 + 32 + 4 + 4 + 32*MaxWhitelistedHooks + 8*8

// Marshal serializes the whitelist into its on-chain layout. The layout is a
// compatibility contract with deployed clients: 32 fixed slots and the count
// field stay byte-stable across releases.
func (w *Whitelist) Marshal() []byte {
	data := make([]byte, AccountSize)
	pos := 0

	copy(data[pos:pos+8], Discriminator[:])
	pos += 8
	copy(data[pos:pos+32], w.Authority[:])
	pos += 32
	binary.LittleEndian.PutUint32(data[pos:pos+4], w.HookCount)
	pos += 4
	binary.LittleEndian.PutUint32(data[pos:pos+4], w.Reserved)
	pos += 4
	for i := 0; i < MaxWhitelistedHooks; i++ {
		copy(data[pos:pos+32], w.Hooks[i][:])
		pos += 32
	}
	for i := 0; i < 8; i++ {
		binary.LittleEndian.PutUint64(data[pos:pos+8], w.Padding[i])
		pos += 8
	}

	return data
}

// Parse deserializes a TransferHookWhitelist account.
func Parse(data []byte) (*Whitelist, error) {
	if len(data) < AccountSize {
		return nil, fmt.Errorf("data too short for TransferHookWhitelist: got %d, need %d", len(data), AccountSize)
	}
	if !bytes.Equal(data[:8], Discriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for TransferHookWhitelist")
	}

	w := &Whitelist{}
	pos := 8

	w.Authority = solana.PublicKeyFromBytes(data[pos : pos+32])
	pos += 32
	w.HookCount = binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	w.Reserved = binary.LittleEndian.Uint32(data[pos : pos+4])
	pos += 4
	for i := 0; i < MaxWhitelistedHooks; i++ {
		w.Hooks[i] = solana.PublicKeyFromBytes(data[pos : pos+32])
		pos += 32
	}
	for i := 0; i < 8; i++ {
		w.Padding[i] = binary.LittleEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	if w.HookCount > MaxWhitelistedHooks {
		return nil, fmt.Errorf("corrupt whitelist: hook count %d exceeds capacity %d", w.HookCount, MaxWhitelistedHooks)
	}

	return w, nil
}
