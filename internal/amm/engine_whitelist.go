package amm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/token2022-amm/internal/whitelist"
)

// InitializeWhitelist creates the singleton hook registry with the given
// authority. Idempotent initialization is rejected.
func (e *Engine) InitializeWhitelist(authority solana.PublicKey) error {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	if e.registry != nil {
		return ErrWhitelistAlreadyExists
	}
	e.registry = whitelist.New(authority)
	e.log.Info("whitelist initialized", zap.Stringer("authority", authority))
	return nil
}

// AddHookToWhitelist registers a hook program directly. Only the registry
// authority may do this; everyone else goes through governance.
func (e *Engine) AddHookToWhitelist(authority, hookProgramID solana.PublicKey) error {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	if e.registry == nil {
		return ErrWhitelistNotInitialized
	}
	if !authority.Equals(e.registry.Authority) {
		return ErrUnauthorized
	}
	if err := e.registry.AddHook(hookProgramID); err != nil {
		return err
	}
	e.log.Info("hook whitelisted",
		zap.Stringer("hook_program", hookProgramID),
		zap.Uint32("hook_count", e.registry.HookCount))
	return nil
}

// RemoveHookFromWhitelist delists a hook program. Pools whose mints use the
// hook stop trading until it is re-approved.
func (e *Engine) RemoveHookFromWhitelist(authority, hookProgramID solana.PublicKey) error {
	e.registryMu.Lock()
	defer e.registryMu.Unlock()

	if e.registry == nil {
		return ErrWhitelistNotInitialized
	}
	if !authority.Equals(e.registry.Authority) {
		return ErrUnauthorized
	}
	if err := e.registry.RemoveHook(hookProgramID); err != nil {
		return err
	}
	e.log.Info("hook delisted",
		zap.Stringer("hook_program", hookProgramID),
		zap.Uint32("hook_count", e.registry.HookCount))
	return nil
}

// IsHookWhitelisted reports whether the hook program is currently approved.
// An uninitialized registry approves nothing.
func (e *Engine) IsHookWhitelisted(hookProgramID solana.PublicKey) bool {
	e.registryMu.RLock()
	defer e.registryMu.RUnlock()

	return e.registry != nil && e.registry.IsHookWhitelisted(hookProgramID)
}

// ValidateTransferHook checks one hook program against the registry.
func (e *Engine) ValidateTransferHook(hookProgramID solana.PublicKey) error {
	if !e.IsHookWhitelisted(hookProgramID) {
		return fmt.Errorf("hook %s: %w", hookProgramID, whitelist.ErrHookNotWhitelisted)
	}
	return nil
}

// WhitelistedHooks returns a snapshot of the approved hook programs.
func (e *Engine) WhitelistedHooks() []solana.PublicKey {
	e.registryMu.RLock()
	defer e.registryMu.RUnlock()

	if e.registry == nil {
		return nil
	}
	hooks := make([]solana.PublicKey, e.registry.HookCount)
	copy(hooks, e.registry.Hooks[:e.registry.HookCount])
	return hooks
}

// registryAuthority returns the registry authority, if initialized.
func (e *Engine) registryAuthority() (solana.PublicKey, bool) {
	e.registryMu.RLock()
	defer e.registryMu.RUnlock()

	if e.registry == nil {
		return solana.PublicKey{}, false
	}
	return e.registry.Authority, true
}

// validateMintHooks verifies that every hook bound to the given mints is
// whitelisted. Runs before any token movement so a rejected hook leaves
// balances and reserves untouched.
func (e *Engine) validateMintHooks(mints ...solana.PublicKey) error {
	for _, mint := range mints {
		hook, ok := e.ledger.HookProgram(mint)
		if !ok {
			continue
		}
		if err := e.ValidateTransferHook(hook); err != nil {
			return fmt.Errorf("mint %s: %w", mint, err)
		}
	}
	return nil
}
