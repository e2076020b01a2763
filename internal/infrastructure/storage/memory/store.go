// Package memory provides an in-memory implementation of the repositories and
// transaction manager. Used when no database is configured and in tests.
package memory

import (
	"context"
	"errors"
	"maps"
	"sync"

	"bakehouse/internal/core/id"
	"bakehouse/internal/core/tx"
	"bakehouse/internal/domain/ingredient"
	"bakehouse/internal/domain/recipe"
	"bakehouse/internal/infrastructure/audit"
)

// Compile-time interface checks.
var (
	_ tx.Manager            = (*TxManager)(nil)
	_ ingredient.Repository = (*IngredientRepo)(nil)
	_ recipe.Repository     = (*RecipeRepo)(nil)
	_ ingredient.AuditLog   = (*AuditLog)(nil)
)

var errReadOnly = errors.New("memory: write inside read-only transaction")

// Store holds all state behind a single RWMutex.
// Stored values are never handed out; reads and writes go through deep copies.
type Store struct {
	mu          sync.RWMutex
	ingredients map[id.ID]*ingredient.Ingredient
	recipes     map[id.ID]*recipe.Recipe
	audit       []audit.Entry
}

// New returns an empty store.
func New() *Store {
	return &Store{
		ingredients: make(map[id.ID]*ingredient.Ingredient),
		recipes:     make(map[id.ID]*recipe.Recipe),
	}
}

type snapshot struct {
	ingredients map[id.ID]*ingredient.Ingredient
	recipes     map[id.ID]*recipe.Recipe
	auditLen    int
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		ingredients: maps.Clone(s.ingredients),
		recipes:     maps.Clone(s.recipes),
		auditLen:    len(s.audit),
	}
}

func (s *Store) restore(snap snapshot) {
	s.ingredients = snap.ingredients
	s.recipes = snap.recipes
	s.audit = s.audit[:snap.auditLen]
}

// txState marks a context that already holds the store lock.
type txState struct {
	readOnly bool
}

type txKey struct{}

func stateFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

// read runs fn under the read lock unless ctx already holds the lock.
func (s *Store) read(ctx context.Context, fn func()) {
	if stateFrom(ctx) != nil {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write runs fn under the write lock unless ctx already holds it.
func (s *Store) write(ctx context.Context, fn func() error) error {
	if st := stateFrom(ctx); st != nil {
		if st.readOnly {
			return errReadOnly
		}
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// TxManager serialises writers with the store lock; readers share it.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager over the store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn holding the write lock.
// On error or panic every change made by fn is discarded.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if st := stateFrom(ctx); st != nil {
		if st.readOnly {
			return errReadOnly
		}
		return fn(ctx)
	}

	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(context.WithValue(ctx, txKey{}, &txState{}))
}

// ReadOnly executes fn holding the read lock, so it never observes a half-applied write.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if stateFrom(ctx) != nil {
		return fn(ctx)
	}

	s := m.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(context.WithValue(ctx, txKey{}, &txState{readOnly: true}))
}
