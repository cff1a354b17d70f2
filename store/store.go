// Package store provides ExecutionContextStore implementations: the
// worklist of pending paths an Engine drains (spec §4.H), adapted from
// glee's Searcher family (DFSSearcher/BFSSearcher/RandomSearcher/
// MultiSearcher in executor.go) onto the widened AddContext/NextContext/
// Size vocabulary.
package store

import (
	"math/rand"

	"github.com/caffeine-vm/caffeine"
)

var (
	_ caffeine.ExecutionContextStore = (*DFS)(nil)
	_ caffeine.ExecutionContextStore = (*BFS)(nil)
	_ caffeine.ExecutionContextStore = (*Random)(nil)
	_ caffeine.ExecutionContextStore = (*Multi)(nil)
)

// DFS explores the most recently forked context first (a stack), the
// default search order the way glee.NewDFSSearcher is Executor's default.
type DFS struct {
	contexts []*caffeine.Context
}

func NewDFS() *DFS { return &DFS{} }

func (s *DFS) AddContext(ctx *caffeine.Context) { s.contexts = append(s.contexts, ctx) }

func (s *DFS) NextContext() (*caffeine.Context, bool) {
	if len(s.contexts) == 0 {
		return nil, false
	}
	ctx := s.contexts[len(s.contexts)-1]
	s.contexts = s.contexts[:len(s.contexts)-1]
	return ctx, true
}

func (s *DFS) Size() int { return len(s.contexts) }

// BFS explores contexts in the order they were added (a queue).
type BFS struct {
	contexts []*caffeine.Context
}

func NewBFS() *BFS { return &BFS{} }

func (s *BFS) AddContext(ctx *caffeine.Context) { s.contexts = append(s.contexts, ctx) }

func (s *BFS) NextContext() (*caffeine.Context, bool) {
	if len(s.contexts) == 0 {
		return nil, false
	}
	ctx := s.contexts[0]
	s.contexts = s.contexts[1:]
	return ctx, true
}

func (s *BFS) Size() int { return len(s.contexts) }

// Random explores a uniformly-chosen pending context next, for
// randomized fuzzing-style exploration rather than strict depth/breadth
// order.
type Random struct {
	contexts []*caffeine.Context
	rand     *rand.Rand
}

func NewRandom(rand *rand.Rand) *Random { return &Random{rand: rand} }

func (s *Random) AddContext(ctx *caffeine.Context) { s.contexts = append(s.contexts, ctx) }

func (s *Random) NextContext() (*caffeine.Context, bool) {
	if len(s.contexts) == 0 {
		return nil, false
	}
	i := s.rand.Intn(len(s.contexts))
	ctx := s.contexts[i]
	s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
	return ctx, true
}

func (s *Random) Size() int { return len(s.contexts) }

// Multi fans a context out to every member store and round-robins
// NextContext across them, mirroring glee's MultiSearcher.
type Multi struct {
	stores []caffeine.ExecutionContextStore
	index  int
}

func NewMulti(stores ...caffeine.ExecutionContextStore) *Multi {
	return &Multi{stores: stores}
}

func (s *Multi) AddContext(ctx *caffeine.Context) {
	for _, store := range s.stores {
		store.AddContext(ctx)
	}
}

func (s *Multi) NextContext() (*caffeine.Context, bool) {
	for i := 0; i < len(s.stores); i++ {
		store := s.stores[s.index]
		s.index = (s.index + 1) % len(s.stores)
		if ctx, ok := store.NextContext(); ok {
			return ctx, true
		}
	}
	return nil, false
}

func (s *Multi) Size() int {
	n := 0
	for _, store := range s.stores {
		n += store.Size()
	}
	return n
}
