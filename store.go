package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNoNodes         = errors.New("pipeline: no nodes, add at least one node before submitting")
	ErrNodeNotFound    = errors.New("pipeline: node not found")
	ErrDuplicateNode   = errors.New("pipeline: node id already exists")
	ErrInvalidNode     = errors.New("pipeline: invalid node")
	ErrUnknownNodeType = errors.New("pipeline: unknown node type")
	ErrUnknownField    = errors.New("pipeline: unknown node field")
	ErrInvalidValue    = errors.New("pipeline: invalid field value")
	ErrInvalidPayload  = errors.New("pipeline: invalid drag payload")
	ErrInvalidEdge     = errors.New("pipeline: invalid edge")
	ErrDuplicateEdge   = errors.New("pipeline: edge id already exists")
)

// Edge decoration applied to every edge created by Connect.
const (
	EdgeType   = "smoothstep"
	MarkerType = "arrow"
)

// Store holds the node and edge collections of one editor session.
//
// Every mutation publishes a fresh Snapshot; published slices are never
// written again, so a reader holding a snapshot always sees a consistent
// graph. Writers are serialized by the store and every published snapshot
// carries a version one higher than the one it replaced.
type Store struct {
	mu    sync.Mutex
	cur   Snapshot
	ids   *IDGenerator
	subs  map[int]func(Snapshot)
	subID int

	notifyMu  sync.Mutex
	delivered uint64
}

// Option configures a Store.
type Option func(*Store)

// WithExample seeds the store with a starter input → llm → output pipeline.
func WithExample() Option {
	return func(s *Store) {
		s.cur = exampleSnapshot()
		for _, n := range s.cur.Nodes {
			s.ids.Seed(n.Type, 1)
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		cur:  Snapshot{Nodes: []Node{}, Edges: []Edge{}},
		ids:  NewIDGenerator(),
		subs: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current graph.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Subscribe registers fn to be called with the new snapshot after every
// mutation. Deliveries never go back in version; a snapshot superseded
// before it could be delivered is skipped. fn must not mutate the store.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subID++
	id := s.subID
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// NextID returns a fresh node id for t.
func (s *Store) NextID(t NodeType) string {
	return s.ids.Next(t)
}

// AddNode appends n to the node collection.
func (s *Store) AddNode(n Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	return s.update(func(cur Snapshot) (Snapshot, error) {
		for _, existing := range cur.Nodes {
			if existing.ID == n.ID {
				return cur, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
			}
		}
		cur.Nodes = appendCopy(cur.Nodes, n)
		return cur, nil
	})
}

// CreateNode issues an id for t and adds a node with default data at pos.
func (s *Store) CreateNode(t NodeType, pos Position) (Node, error) {
	if _, err := ParseNodeType(string(t)); err != nil {
		return Node{}, err
	}
	var n Node
	err := s.update(func(cur Snapshot) (Snapshot, error) {
		id := s.ids.Next(t)
		n = Node{ID: id, Type: t, Position: pos, Data: DefaultData(id, t)}
		if indexOf(cur.Nodes, id) >= 0 {
			return cur, fmt.Errorf("%w: %s", ErrDuplicateNode, id)
		}
		cur.Nodes = appendCopy(cur.Nodes, n)
		return cur, nil
	})
	if err != nil {
		return Node{}, err
	}
	return n, nil
}

// Drop handles a palette drag payload released at pos.
func (s *Store) Drop(payload []byte, pos Position) (Node, error) {
	t, err := ParseDragPayload(payload)
	if err != nil {
		return Node{}, err
	}
	return s.CreateNode(t, pos)
}

// ApplyNodeChanges applies a batch of canvas changes to the nodes.
// The whole batch is rejected, leaving the store untouched, when
// CheckNodeChanges fails.
func (s *Store) ApplyNodeChanges(changes []NodeChange) (Snapshot, error) {
	return s.updateSnapshot(func(cur Snapshot) (Snapshot, error) {
		if err := CheckNodeChanges(changes, cur.Nodes); err != nil {
			return cur, err
		}
		cur.Nodes = ApplyNodeChanges(changes, cur.Nodes)
		return cur, nil
	})
}

// ApplyEdgeChanges applies a batch of canvas changes to the edges.
// The whole batch is rejected when CheckEdgeChanges fails.
func (s *Store) ApplyEdgeChanges(changes []EdgeChange) (Snapshot, error) {
	return s.updateSnapshot(func(cur Snapshot) (Snapshot, error) {
		if err := CheckEdgeChanges(changes, cur.Nodes, cur.Edges); err != nil {
			return cur, err
		}
		cur.Edges = ApplyEdgeChanges(changes, cur.Edges)
		return cur, nil
	})
}

// Connect appends a decorated edge for c. Both endpoints must exist.
// Identical connections are not merged and cycles are not checked here.
func (s *Store) Connect(c Connection) (Edge, error) {
	e := Edge{
		ID:           "e-" + uuid.NewString(),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
		Type:         EdgeType,
		Animated:     true,
		MarkerEnd:    &ArrowSpec{Type: MarkerType, Width: 20, Height: 20},
	}
	err := s.update(func(cur Snapshot) (Snapshot, error) {
		for _, id := range []string{c.Source, c.Target} {
			if indexOf(cur.Nodes, id) < 0 {
				return cur, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
			}
		}
		cur.Edges = appendCopy(cur.Edges, e)
		return cur, nil
	})
	if err != nil {
		return Edge{}, err
	}
	return e, nil
}

// UpdateNodeField replaces one field of a node's data. The node is replaced
// by a new value; its id, type and position are kept.
func (s *Store) UpdateNodeField(nodeID, field string, value any) error {
	return s.update(func(cur Snapshot) (Snapshot, error) {
		i := indexOf(cur.Nodes, nodeID)
		if i < 0 {
			return cur, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
		}
		data, err := withField(cur.Nodes[i].Data, field, value)
		if err != nil {
			return cur, err
		}
		nodes := make([]Node, len(cur.Nodes))
		copy(nodes, cur.Nodes)
		nodes[i].Data = data
		cur.Nodes = nodes
		return cur, nil
	})
}

// Clear removes every node and edge and resets the id counters.
func (s *Store) Clear() {
	_ = s.update(func(Snapshot) (Snapshot, error) {
		s.ids.Reset()
		return Snapshot{Nodes: []Node{}, Edges: []Edge{}}, nil
	})
}

func (s *Store) update(fn func(Snapshot) (Snapshot, error)) error {
	_, err := s.updateSnapshot(fn)
	return err
}

// updateSnapshot runs fn under the write lock, publishes its result with
// the next version and notifies subscribers after the lock is released.
func (s *Store) updateSnapshot(fn func(Snapshot) (Snapshot, error)) (Snapshot, error) {
	s.mu.Lock()
	next, err := fn(s.cur)
	if err != nil {
		cur := s.cur
		s.mu.Unlock()
		return cur, err
	}
	next.Version = s.cur.Version + 1
	s.cur = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	s.notify(subs, next)
	return next, nil
}

// notify delivers snap unless a newer snapshot has already gone out.
func (s *Store) notify(subs []func(Snapshot), snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version
	for _, sub := range subs {
		sub(snap)
	}
}

func indexOf(nodes []Node, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// appendCopy appends to a new backing array so published slices stay untouched.
func appendCopy[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func exampleSnapshot() Snapshot {
	return Snapshot{
		Nodes: []Node{
			{ID: "input-1", Type: TypeInput, Position: Position{X: 100, Y: 150}, Data: InputData{Label: "User Input"}},
			{ID: "llm-1", Type: TypeLLM, Position: Position{X: 400, Y: 100}, Data: LLMData{Label: "AI Processor", Model: "gpt-4", Temperature: 0.7}},
			{ID: "output-1", Type: TypeOutput, Position: Position{X: 750, Y: 150}, Data: OutputData{Label: "Response", Format: FormatText}},
		},
		Edges: []Edge{
			{ID: "e-input-1-llm-1", Source: "input-1", Target: "llm-1", Animated: true},
			{ID: "e-llm-1-output-1", Source: "llm-1", Target: "output-1", Animated: true},
		},
	}
}
