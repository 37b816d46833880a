package io

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/noirforge/pkg/core/dag"
)

type graph struct {
	Meta  dag.Metadata `json:"meta,omitempty"`
	Nodes []node       `json:"nodes"`
	Edges []edge       `json:"edges"`
}

type node struct {
	ID   string       `json:"id"`
	Row  *int         `json:"row,omitempty"`
	Meta dag.Metadata `json:"meta,omitempty"`
}

type edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// WriteJSON encodes g as indented JSON to w. Nodes and edges keep their
// insertion order, so the output is deterministic for a given resolution.
func WriteJSON(g *dag.DAG, w io.Writer) error {
	out := graph{
		Meta:  g.Meta(),
		Nodes: make([]node, 0, g.NodeCount()),
		Edges: make([]edge, 0, g.EdgeCount()),
	}

	for _, n := range g.Nodes() {
		nd := node{ID: n.ID, Meta: n.Meta}
		if n.Row != 0 {
			row := n.Row
			nd.Row = &row
		}
		out.Nodes = append(out.Nodes, nd)
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edge{From: e.From, To: e.To})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a graph written by [WriteJSON]. ReadJSON does not close r.
func ReadJSON(r io.Reader) (*dag.DAG, error) {
	var data graph
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	g := dag.New(data.Meta)
	for _, n := range data.Nodes {
		nd := dag.Node{ID: n.ID, Meta: n.Meta}
		if n.Row != nil {
			nd.Row = *n.Row
		}
		if err := g.AddNode(nd); err != nil {
			return nil, fmt.Errorf("node %s: %w", n.ID, err)
		}
	}
	for _, e := range data.Edges {
		if err := g.AddEdge(dag.Edge{From: e.From, To: e.To}); err != nil {
			return nil, fmt.Errorf("edge %s->%s: %w", e.From, e.To, err)
		}
	}
	return g, nil
}
