// Package store provides account persistence. The real deployment's
// database is an external collaborator; this package supplies an in-memory
// stand-in with the same contract so the room runtime has something to
// load from and save to.
package store

import (
	"sync"

	"boxborne/internal/game"
)

// Memory is a mutex-protected, process-lifetime game.AccountStore. A
// username not yet seen gets a fresh zero-value account on first Load,
// mirroring a real database's "create row on first sign-in" behaviour.
type Memory struct {
	mu       sync.Mutex
	accounts map[string]game.Account
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]game.Account)}
}

// Load returns the stored account for username, creating a fresh one if
// this is its first appearance.
func (m *Memory) Load(username string) (game.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acct, ok := m.accounts[username]; ok {
		return acct, nil
	}
	acct := game.Account{Username: username}
	m.accounts[username] = acct
	return acct, nil
}

// Save writes account back, keyed by its username.
func (m *Memory) Save(account game.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = account
	return nil
}
