// Package whitelist implements the transfer-hook whitelist registry: the
// bounded set of hook program IDs the AMM trusts to run during
// pool-mediated Token-2022 transfers.
package whitelist

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// MaxWhitelistedHooks bounds the registry so that membership checks on the
// trading hot path stay a fixed-cost linear scan.
const MaxWhitelistedHooks = 32

var (
	ErrWhitelistFull          = errors.New("whitelist is full")
	ErrHookAlreadyWhitelisted = errors.New("hook already whitelisted")
	ErrHookNotWhitelisted     = errors.New("hook not whitelisted")
)

// Whitelist mirrors the on-chain TransferHookWhitelist account. Field order
// and widths are part of the serialized layout and must not change.
type Whitelist struct {
	// Authority is the only signer allowed to mutate the registry outside
	// of executed governance proposals.
	Authority solana.PublicKey
	// HookCount is the number of populated slots in Hooks.
	HookCount uint32
	// Reserved is unused, kept for layout stability.
	Reserved uint32
	// Hooks holds the whitelisted hook program IDs in slots [0, HookCount).
	Hooks [MaxWhitelistedHooks]solana.PublicKey
	// Padding is reserved space for future expansion.
	Padding [8]uint64
}

// New returns an empty whitelist owned by the given authority.
func New(authority solana.PublicKey) *Whitelist {
	return &Whitelist{Authority: authority}
}

// IsHookWhitelisted reports whether the hook program is currently trusted.
// Pure read, callable by anyone.
func (w *Whitelist) IsHookWhitelisted(hookProgramID solana.PublicKey) bool {
	for i := uint32(0); i < w.HookCount; i++ {
		if w.Hooks[i].Equals(hookProgramID) {
			return true
		}
	}
	return false
}

// AddHook appends a hook program to the registry. Returns
// ErrHookAlreadyWhitelisted or ErrWhitelistFull without modifying state.
func (w *Whitelist) AddHook(hookProgramID solana.PublicKey) error {
	if w.HookCount >= MaxWhitelistedHooks {
		return ErrWhitelistFull
	}
	if w.IsHookWhitelisted(hookProgramID) {
		return ErrHookAlreadyWhitelisted
	}
	w.Hooks[w.HookCount] = hookProgramID
	w.HookCount++
	return nil
}

// RemoveHook deletes a hook program from the registry, compacting the
// remaining entries left. Returns ErrHookNotWhitelisted if absent.
func (w *Whitelist) RemoveHook(hookProgramID solana.PublicKey) error {
	for i := uint32(0); i < w.HookCount; i++ {
		if !w.Hooks[i].Equals(hookProgramID) {
			continue
		}
		for j := i; j+1 < w.HookCount; j++ {
			w.Hooks[j] = w.Hooks[j+1]
		}
		w.Hooks[w.HookCount-1] = solana.PublicKey{}
		w.HookCount--
		return nil
	}
	return ErrHookNotWhitelisted
}
