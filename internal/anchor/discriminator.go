// Package anchor computes the Anchor framework discriminators that prefix
// every account and instruction of the on-chain program.
package anchor

import "crypto/sha256"

// AccountDiscriminator returns the 8-byte discriminator that Anchor prepends
// to accounts of the given type: sha256("account:<Name>")[0:8].
func AccountDiscriminator(name string) [8]byte {
	return sighash("account:" + name)
}

// InstructionDiscriminator returns the 8-byte discriminator for a program
// instruction: sha256("global:<snake_case_name>")[0:8].
func InstructionDiscriminator(name string) [8]byte {
	return sighash("global:" + name)
}

func sighash(preimage string) [8]byte {
	sum := sha256.Sum256([]byte(preimage))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
