package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/meikuraledutech/pipeline"
)

var (
	errSessionNotFound = errors.New("session not found")
	errSessionLimit    = errors.New("session limit reached")
)

// sessions owns one pipeline.Store per editor session.
type sessions struct {
	mu     sync.RWMutex
	stores map[string]*pipeline.Store
	max    int
	seed   bool
	logger *log.Logger
}

func newSessions(limit int, seed bool, logger *log.Logger) *sessions {
	return &sessions{
		stores: make(map[string]*pipeline.Store),
		max:    limit,
		seed:   seed,
		logger: logger,
	}
}

func (s *sessions) create() (string, *pipeline.Store, error) {
	var opts []pipeline.Option
	if s.seed {
		opts = append(opts, pipeline.WithExample())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.stores) >= s.max {
		return "", nil, fmt.Errorf("%w (%d)", errSessionLimit, s.max)
	}

	id := uuid.NewString()
	store := pipeline.NewStore(opts...)
	store.Subscribe(func(snap pipeline.Snapshot) {
		s.logger.Debug("graph changed", "session", id, "nodes", len(snap.Nodes), "edges", len(snap.Edges))
	})
	s.stores[id] = store
	return id, store, nil
}

func (s *sessions) get(id string) (*pipeline.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	store, ok := s.stores[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	return store, nil
}

// remove drops a session. No error if it doesn't exist.
func (s *sessions) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, id)
}
