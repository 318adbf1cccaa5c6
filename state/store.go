// Package state persists publish/subscribe settings per node address.
//
// The provisioner module exposes no query commands for these settings, so
// this store is the only record of what was configured locally. It is a
// passive cache for read-back convenience, not part of the protocol
// engine: the module firmware remains authoritative.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// DefaultPath is used when no state file path is configured.
const DefaultPath = ".mesh_state.json"

// Publish is a model publication setting.
type Publish struct {
	ElementIndex int    `json:"element_idx"`
	ModelID      string `json:"model_id"`
	Address      string `json:"publish_addr"`
	AppKeyIndex  int    `json:"app_key_idx"`
}

// Subscription is a model group subscription.
type Subscription struct {
	ElementIndex int    `json:"element_idx"`
	ModelID      string `json:"model_id"`
	GroupAddress string `json:"group_addr"`
}

// NodeConfig holds the recorded settings for one node address.
type NodeConfig struct {
	Publish       *Publish       `json:"publish,omitempty"`
	Subscriptions []Subscription `json:"subscriptions"`
}

type document struct {
	Nodes map[string]*NodeConfig `json:"nodes"`
}

// Store is a JSON-file-backed store keyed by node address. Loading is
// lazy (load-on-miss) and every mutation is written through immediately.
// A corrupted or missing file is treated as empty.
type Store struct {
	path string

	mu     sync.Mutex
	loaded bool
	doc    document
}

// NewStore creates a store backed by the given file path. An empty path
// selects DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path, doc: document{Nodes: map[string]*NodeConfig{}}}
}

// load reads the backing file once. Callers must hold mu.
func (s *Store) load() {
	if s.loaded {
		return
	}
	s.loaded = true

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		// Corrupted file; start fresh.
		return
	}
	if doc.Nodes == nil {
		doc.Nodes = map[string]*NodeConfig{}
	}
	s.doc = doc
}

// save writes the document back. Callers must hold mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file %s: %w", s.path, err)
	}
	return nil
}

// node returns the config for addr, creating it if needed. Callers must
// hold mu.
func (s *Store) node(addr string) *NodeConfig {
	node, ok := s.doc.Nodes[addr]
	if !ok {
		node = &NodeConfig{Subscriptions: []Subscription{}}
		s.doc.Nodes[addr] = node
	}
	return node
}

// SetPublish records the publish setting for a node address.
func (s *Store) SetPublish(addr string, pub Publish) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	s.node(addr).Publish = &pub
	return s.save()
}

// ClearPublish removes the recorded publish setting for a node address.
func (s *Store) ClearPublish(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	s.node(addr).Publish = nil
	return s.save()
}

// AddSubscription records a subscription for a node address. Duplicate
// records are ignored.
func (s *Store) AddSubscription(addr string, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	node := s.node(addr)
	for _, existing := range node.Subscriptions {
		if existing == sub {
			return nil
		}
	}
	node.Subscriptions = append(node.Subscriptions, sub)
	return s.save()
}

// RemoveSubscription removes a recorded subscription for a node address.
func (s *Store) RemoveSubscription(addr string, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	node := s.node(addr)
	kept := node.Subscriptions[:0]
	for _, existing := range node.Subscriptions {
		if existing != sub {
			kept = append(kept, existing)
		}
	}
	node.Subscriptions = kept
	return s.save()
}

// Node returns a copy of the recorded settings for a node address.
func (s *Store) Node(addr string) (NodeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	node, ok := s.doc.Nodes[addr]
	if !ok {
		return NodeConfig{Subscriptions: []Subscription{}}, nil
	}

	out := NodeConfig{Subscriptions: append([]Subscription{}, node.Subscriptions...)}
	if node.Publish != nil {
		pub := *node.Publish
		out.Publish = &pub
	}
	return out, nil
}

// ClearNode removes every recorded setting for a node address.
func (s *Store) ClearNode(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.load()
	delete(s.doc.Nodes, addr)
	return s.save()
}
