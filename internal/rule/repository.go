// Copyright (c) 2026 Novelforge. All rights reserved.

package rule

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Repository yields the set of loaded rules. internal/source depends
// only on this interface, never on a concrete loader, so the rule
// provider stays swappable (spec.md treats rule loading as an opaque
// "rule provider" yielding parsed rule records).
type Repository interface {
	// All returns every loaded rule, enabled or not.
	All() []Rule
	// ByID returns the rule with the given id, or false if unknown.
	ByID(id int) (Rule, bool)
}

// DirectoryRepository loads every "*.json" rule file from a directory at
// construction time. Rules are immutable and shared read-only afterward;
// there is no hot-reload.
type DirectoryRepository struct {
	mu    sync.RWMutex
	byID  map[int]Rule
	order []int
}

// NewDirectoryRepository reads every "*.json" file in dir, skipping
// filenames containing "template" or "unavailable" (spec.md §6), and
// normalizes each file's rule array. A file that fails to normalize
// aborts the load entirely — a partially loaded rule set is worse than
// a startup failure.
func NewDirectoryRepository(dir string) (*DirectoryRepository, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("rule: read dir %q: %w", dir, err)
	}

	repo := &DirectoryRepository{byID: make(map[int]Rule)}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		lower := strings.ToLower(e.Name())
		if strings.Contains(lower, "template") || strings.Contains(lower, "unavailable") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rule: read %q: %w", path, err)
		}
		rules, err := ParseFile(data)
		if err != nil {
			return nil, fmt.Errorf("rule: parse %q: %w", path, err)
		}
		for _, r := range rules {
			if _, exists := repo.byID[r.ID]; exists {
				return nil, fmt.Errorf("rule: duplicate id %d in %q", r.ID, path)
			}
			repo.byID[r.ID] = r
			repo.order = append(repo.order, r.ID)
		}
	}

	return repo, nil
}

// All implements [Repository].
func (repo *DirectoryRepository) All() []Rule {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	rules := make([]Rule, 0, len(repo.order))
	for _, id := range repo.order {
		rules = append(rules, repo.byID[id])
	}
	return rules
}

// ByID implements [Repository].
func (repo *DirectoryRepository) ByID(id int) (Rule, bool) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()

	r, ok := repo.byID[id]
	return r, ok
}

// StaticRepository is an in-memory [Repository] backed by a fixed slice,
// used in tests and anywhere rules are supplied programmatically rather
// than from disk.
type StaticRepository struct {
	byID map[int]Rule
	list []Rule
}

// NewStaticRepository builds a [Repository] from an in-memory rule slice.
func NewStaticRepository(rules []Rule) *StaticRepository {
	repo := &StaticRepository{byID: make(map[int]Rule, len(rules)), list: rules}
	for _, r := range rules {
		repo.byID[r.ID] = r
	}
	return repo
}

// All implements [Repository].
func (repo *StaticRepository) All() []Rule { return repo.list }

// ByID implements [Repository].
func (repo *StaticRepository) ByID(id int) (Rule, bool) {
	r, ok := repo.byID[id]
	return r, ok
}
