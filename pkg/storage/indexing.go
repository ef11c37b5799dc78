package storage

import (
	"sort"
)

// Index is an in-memory inverted index over reference names and labels.
// It is rebuilt from the stored metadata on open.
type Index struct {
	refs map[string]Meta
	// label name -> label value -> reference names
	labelIndex map[string]map[string]map[string]struct{}
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		refs:       make(map[string]Meta),
		labelIndex: make(map[string]map[string]map[string]struct{}),
	}
}

// Add indexes a reference, replacing its previous labels.
func (idx *Index) Add(meta Meta) {
	idx.Remove(meta.Name)
	idx.refs[meta.Name] = meta

	for name, value := range meta.Labels {
		values := idx.labelIndex[name]
		if values == nil {
			values = make(map[string]map[string]struct{})
			idx.labelIndex[name] = values
		}
		if values[value] == nil {
			values[value] = make(map[string]struct{})
		}
		values[value][meta.Name] = struct{}{}
	}
}

// Remove drops a reference from the index.
func (idx *Index) Remove(name string) {
	meta, ok := idx.refs[name]
	if !ok {
		return
	}
	delete(idx.refs, name)

	for label, value := range meta.Labels {
		refs := idx.labelIndex[label][value]
		delete(refs, name)
		if len(refs) == 0 {
			delete(idx.labelIndex[label], value)
		}
		if len(idx.labelIndex[label]) == 0 {
			delete(idx.labelIndex, label)
		}
	}
}

// Get returns the metadata of a reference.
func (idx *Index) Get(name string) (Meta, bool) {
	meta, ok := idx.refs[name]
	return meta, ok
}

// Find returns the names of references carrying every selector label, in
// no particular order. No selectors match everything.
func (idx *Index) Find(selectors map[string]string) []string {
	if len(selectors) == 0 {
		result := make([]string, 0, len(idx.refs))
		for name := range idx.refs {
			result = append(result, name)
		}
		return result
	}

	var result []string
	first := true

	for label, value := range selectors {
		refs, ok := idx.labelIndex[label][value]
		if !ok {
			return nil
		}

		names := make([]string, 0, len(refs))
		for name := range refs {
			names = append(names, name)
		}

		if first {
			result = names
			first = false
		} else {
			result = intersect(result, names)
		}

		if len(result) == 0 {
			return nil
		}
	}

	return result
}

// Len returns the number of indexed references
func (idx *Index) Len() int {
	return len(idx.refs)
}

// intersect finds common elements in two slices
func intersect(a, b []string) []string {
	sort.Strings(a)
	sort.Strings(b)

	result := make([]string, 0)
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}
