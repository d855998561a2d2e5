package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileStore keeps groups in a local JSON document, either an array of groups or an
// object keyed by group name (the layout of a classifier export). Updates rewrite
// the whole file atomically in the layout it was read in.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) ListGroups(ctx context.Context) ([]*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, _, err := s.load()
	return groups, err
}

// UpdateGroup replaces the stored group with the same id.
func (s *FileStore) UpdateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, keyed, err := s.load()
	if err != nil {
		return err
	}

	found := false
	for i, existing := range groups {
		if existing.ID == g.ID {
			groups[i] = g
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("group %q (id %s) not found in %s", g.Name, g.ID, s.path)
	}

	return s.save(groups, keyed)
}

func (s *FileStore) load() ([]*Group, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read groups file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var byName map[string]*Group
		if err := json.Unmarshal(trimmed, &byName); err != nil {
			return nil, true, fmt.Errorf("failed to parse groups file: %w", err)
		}
		groups := make([]*Group, 0, len(byName))
		for _, g := range byName {
			groups = append(groups, g)
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
		return groups, true, nil
	}

	var groups []*Group
	if err := json.Unmarshal(trimmed, &groups); err != nil {
		return nil, false, fmt.Errorf("failed to parse groups file: %w", err)
	}
	return groups, false, nil
}

func (s *FileStore) save(groups []*Group, keyed bool) error {
	var doc interface{} = groups
	if keyed {
		byName := make(map[string]*Group, len(groups))
		for _, g := range groups {
			byName[g.Name] = g
		}
		doc = byName
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode groups: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".groups-*.json")
	if err != nil {
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write groups file: %w", err)
	}
	return nil
}
