package annotation

import (
	"fmt"
	"strconv"
)

// Class is one entry of the dataset class mapping.
type Class struct {
	ID   int
	Name string
}

// ClassNames is the dataset class mapping. It keeps the insertion order of the
// source object and indexes entries by id.
type ClassNames struct {
	entries []Class
	byID    map[int]int
}

// NewClassNames builds a ClassNames from ordered entries. Duplicate or
// negative ids are rejected.
func NewClassNames(entries ...Class) (ClassNames, error) {
	var names ClassNames
	for _, entry := range entries {
		if err := names.Add(entry.ID, entry.Name); err != nil {
			return ClassNames{}, err
		}
	}
	return names, nil
}

// Add appends a class. The id must be non-negative and not already present.
func (c *ClassNames) Add(id int, name string) error {
	if id < 0 {
		return fmt.Errorf("class id %d is negative", id)
	}
	if c.byID == nil {
		c.byID = make(map[int]int)
	}
	if _, exists := c.byID[id]; exists {
		return fmt.Errorf("class id %d is duplicated", id)
	}
	c.byID[id] = len(c.entries)
	c.entries = append(c.entries, Class{ID: id, Name: name})
	return nil
}

// Len reports the number of declared classes.
func (c ClassNames) Len() int { return len(c.entries) }

// Has reports whether id is declared.
func (c ClassNames) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// Name returns the label for id.
func (c ClassNames) Name(id int) (string, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return "", false
	}
	return c.entries[idx].Name, true
}

// NameOrPlaceholder returns the label for id or "class_<id>".
func (c ClassNames) NameOrPlaceholder(id int) string {
	if name, ok := c.Name(id); ok && name != "" {
		return name
	}
	return "class_" + strconv.Itoa(id)
}

// Entries returns the classes in insertion order.
func (c ClassNames) Entries() []Class {
	out := make([]Class, len(c.entries))
	copy(out, c.entries)
	return out
}

// MaxID returns the largest declared id, or -1 when empty.
func (c ClassNames) MaxID() int {
	maxID := -1
	for _, entry := range c.entries {
		if entry.ID > maxID {
			maxID = entry.ID
		}
	}
	return maxID
}

// Dense returns names indexed by id for 0..MaxID. Ids missing from the
// mapping are filled with "class_<id>" so that list position equals class id.
func (c ClassNames) Dense() []string {
	maxID := c.MaxID()
	if maxID < 0 {
		return nil
	}
	out := make([]string, maxID+1)
	for i := range out {
		out[i] = c.NameOrPlaceholder(i)
	}
	return out
}
