// Package repository holds the generic in-memory collections the library
// service is built on, plus their whole-file JSON load/save.
package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"biblioteca/internal/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Repository is a keyed collection of entities. It keeps insertion order so
// GetAll is stable between calls; callers that need a specific order sort.
type Repository[T core.Entity] struct {
	mu    sync.RWMutex
	name  string
	order []string
	items map[string]T
}

func New[T core.Entity](name string) *Repository[T] {
	return &Repository[T]{name: name, items: make(map[string]T)}
}

// Name identifies the collection in logs and file names.
func (r *Repository[T]) Name() string { return r.name }

// GetAll returns a snapshot of every entity.
func (r *Repository[T]) GetAll() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.items[id])
	}
	return out
}

// GetByID returns the entity stored under id.
func (r *Repository[T]) GetByID(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok
}

// Filter returns the entities matching keep, in insertion order.
func (r *Repository[T]) Filter(keep func(T) bool) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for _, id := range r.order {
		if v := r.items[id]; keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Add stores entity under its id. The id is not generated here. It reports
// false, changing nothing, when the id is already present; Update is the only
// way to replace a stored entity.
func (r *Repository[T]) Add(entity T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[entity.EntityID()]; ok {
		return false
	}
	r.put(entity)
	return true
}

// Update replaces the entity with the same id. It reports false, changing
// nothing, when no such entity exists.
func (r *Repository[T]) Update(entity T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := entity.EntityID()
	if _, ok := r.items[id]; !ok {
		return false
	}
	r.items[id] = entity
	return true
}

// Delete removes the entity with id; it reports false if there was none.
func (r *Repository[T]) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return false
	}
	delete(r.items, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// ReplaceAll drops the current contents and stores entities instead.
func (r *Repository[T]) ReplaceAll(entities []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string]T, len(entities))
	r.order = make([]string, 0, len(entities))
	for _, e := range entities {
		r.put(e)
	}
}

func (r *Repository[T]) put(entity T) {
	id := entity.EntityID()
	if _, ok := r.items[id]; !ok {
		r.order = append(r.order, id)
	}
	r.items[id] = entity
}

// LoadFromFile replaces the collection with the JSON array stored at path.
// A missing file or a JSON null leaves the collection as it is and is not an
// error. A file that cannot be read or decoded, or that holds a record failing
// validation, also leaves it untouched and returns the error.
func (r *Repository[T]) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var list *[]T
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if list == nil {
		return nil
	}
	if err := prepare(*list); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	r.ReplaceAll(*list)
	return nil
}

// Entities may opt into cleanup and checks on load.
type (
	normalizer interface{ Normalize() }
	validator  interface{ Validate() error }
)

func prepare[T core.Entity](list []T) error {
	for i := range list {
		if n, ok := any(&list[i]).(normalizer); ok {
			n.Normalize()
		}
		if v, ok := any(list[i]).(validator); ok {
			if err := v.Validate(); err != nil {
				return fmt.Errorf("record %d (id %q): %w", i, list[i].EntityID(), err)
			}
		}
	}
	return nil
}

// SaveToFile writes the whole collection to path as an indented JSON array.
// The write goes through a temporary file in the same directory so a failed
// save never truncates the previous file.
func (r *Repository[T]) SaveToFile(path string) error {
	data, err := json.MarshalIndent(r.GetAll(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", r.name, err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
