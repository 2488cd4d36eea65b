package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Memory is an in-process document tree with the same path semantics as
// Firebase. It backs tests and local runs without a database URL.
type Memory struct {
	mu   sync.RWMutex
	root map[string]interface{}
}

func NewMemory() *Memory {
	return &Memory{root: map[string]interface{}{}}
}

func segments(path string) []string {
	p := Join(path)
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// normalize turns any value into the generic form encoding/json decodes to.
func normalize(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Memory) lookup(path string) (interface{}, bool) {
	var node interface{} = m.root
	for _, seg := range segments(path) {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// parent returns the object holding the last segment, creating missing levels.
func (m *Memory) parent(segs []string) map[string]interface{} {
	node := m.root
	for _, seg := range segs[:len(segs)-1] {
		next, ok := node[seg].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			node[seg] = next
		}
		node = next
	}
	return node
}

func (m *Memory) Get(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.lookup(path)
	if !ok || node == nil {
		return nil, nil
	}
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("memory get %s: %w", path, err)
	}
	return raw, nil
}

func (m *Memory) Set(_ context.Context, path string, data interface{}) error {
	value, err := normalize(data)
	if err != nil {
		return fmt.Errorf("memory set %s: %w", path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	segs := segments(path)
	if len(segs) == 0 {
		obj, ok := value.(map[string]interface{})
		if !ok && value != nil {
			return fmt.Errorf("memory set: root must be an object")
		}
		if obj == nil {
			obj = map[string]interface{}{}
		}
		m.root = obj
		return nil
	}
	parent := m.parent(segs)
	if value == nil {
		delete(parent, segs[len(segs)-1])
		return nil
	}
	parent[segs[len(segs)-1]] = value
	return nil
}

func (m *Memory) Update(_ context.Context, path string, data interface{}) error {
	value, err := normalize(data)
	if err != nil {
		return fmt.Errorf("memory update %s: %w", path, err)
	}
	fields, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("memory update %s: payload must be an object", path)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	target := m.root
	if segs := segments(path); len(segs) > 0 {
		parent := m.parent(segs)
		last := segs[len(segs)-1]
		obj, ok := parent[last].(map[string]interface{})
		if !ok {
			obj = map[string]interface{}{}
			parent[last] = obj
		}
		target = obj
	}
	for k, v := range fields {
		if v == nil {
			delete(target, k)
			continue
		}
		target[k] = v
	}
	return nil
}
