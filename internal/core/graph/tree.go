// Package graph materializes the resolved relationship graph into a
// cycle-safe forest.
package graph

import (
	"fmt"
	"strings"
)

// Record is the subset of a valid schema row the materializer reads.
type Record struct {
	SchemaID      int64
	IDString      string
	Version       string
	Title         string
	Subtitle      string
	Subschema     []int64
	ChildSchema   []int64
	InheritSchema []int64
}

// Node is one expanded schema in the forest.
type Node struct {
	SchemaID   int64   `json:"schema_id"`
	IDString   string  `json:"id"`
	Version    string  `json:"version"`
	Title      string  `json:"title"`
	Subschemas []*Node `json:"subschemas,omitempty"`
	Children   []*Node `json:"children,omitempty"`
	Inherited  []*Node `json:"inherited,omitempty"`
}

// Diagnostic explains why a schema was excluded from the forest.
type Diagnostic struct {
	SchemaID int64  `json:"schema_id"`
	IDString string `json:"id"`
	Message  string `json:"message"`
}

// Tree is the result of BuildTree.
type Tree struct {
	Forest      []*Node      `json:"forest"`
	Blacklist   []int64      `json:"blacklist"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// CombinedTitle joins title and subtitle for display.
func CombinedTitle(title, subtitle string) string {
	if subtitle == "" {
		return title
	}
	return title + " - " + subtitle
}

type builder struct {
	records     map[int64]Record
	blacklisted map[int64]bool
	tree        Tree
}

// BuildTree expands roots into a forest. A cycle is only detected along the
// active expansion path: every schema on the loop is blacklisted once and left
// out of the forest, while a schema reached through independent branches
// appears under each of them. Unknown ids are skipped.
func BuildTree(records map[int64]Record, roots []int64) Tree {
	b := &builder{
		records:     records,
		blacklisted: make(map[int64]bool),
		tree:        Tree{Forest: []*Node{}, Blacklist: []int64{}, Diagnostics: []Diagnostic{}},
	}
	for _, id := range roots {
		if n := b.expand(id, nil); n != nil {
			b.tree.Forest = append(b.tree.Forest, n)
		}
	}
	return b.tree
}

func (b *builder) expand(id int64, path []int64) *Node {
	if b.blacklisted[id] {
		return nil
	}
	rec, ok := b.records[id]
	if !ok {
		return nil
	}

	for i, onPath := range path {
		if onPath == id {
			b.markCycle(append(path[i:len(path):len(path)], id))
			return nil
		}
	}

	next := make([]int64, len(path), len(path)+1)
	copy(next, path)
	next = append(next, id)

	subs := b.expandAll(rec.Subschema, next)
	children := b.expandAll(rec.ChildSchema, next)
	inherited := b.expandAll(rec.InheritSchema, next)

	// A descendant may have closed a loop through this schema.
	if b.blacklisted[id] {
		return nil
	}

	return &Node{
		SchemaID:   rec.SchemaID,
		IDString:   rec.IDString,
		Version:    rec.Version,
		Title:      CombinedTitle(rec.Title, rec.Subtitle),
		Subschemas: subs,
		Children:   children,
		Inherited:  inherited,
	}
}

func (b *builder) expandAll(ids []int64, path []int64) []*Node {
	var nodes []*Node
	for _, id := range ids {
		if n := b.expand(id, path); n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// markCycle blacklists every member of loop, whose first and last entries are
// the same schema.
func (b *builder) markCycle(loop []int64) {
	names := make([]string, len(loop))
	for i, id := range loop {
		names[i] = b.name(id)
	}
	chain := strings.Join(names, " -> ")

	for _, id := range loop[:len(loop)-1] {
		if b.blacklisted[id] {
			continue
		}
		b.blacklisted[id] = true
		b.tree.Blacklist = append(b.tree.Blacklist, id)
		b.tree.Diagnostics = append(b.tree.Diagnostics, Diagnostic{
			SchemaID: id,
			IDString: b.records[id].IDString,
			Message:  fmt.Sprintf("schema %s is part of a relationship cycle: %s", b.name(id), chain),
		})
	}
}

func (b *builder) name(id int64) string {
	if rec, ok := b.records[id]; ok && rec.IDString != "" {
		return rec.IDString
	}
	return fmt.Sprintf("#%d", id)
}

// Edge names how a node hangs off its parent. Forest roots have EdgeNone.
type Edge string

const (
	EdgeNone      Edge = ""
	EdgeSubschema Edge = "sub"
	EdgeChild     Edge = "child"
	EdgeInherited Edge = "inherit"
)

// Walk visits every node of the forest depth-first: subschemas, then
// children, then inherited nodes.
func (t Tree) Walk(fn func(n *Node, edge Edge, depth int)) {
	var visit func(nodes []*Node, edge Edge, depth int)
	visit = func(nodes []*Node, edge Edge, depth int) {
		for _, n := range nodes {
			fn(n, edge, depth)
			visit(n.Subschemas, EdgeSubschema, depth+1)
			visit(n.Children, EdgeChild, depth+1)
			visit(n.Inherited, EdgeInherited, depth+1)
		}
	}
	visit(t.Forest, EdgeNone, 0)
}
