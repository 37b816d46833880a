// Package dag provides the directed graph used to export resolved package
// graphs.
//
// # Overview
//
// Each resolved package is a node; each declared dependency is an edge from
// the declaring package to the package that satisfied it. The root project is
// a node too, so the graph has a single source for a well-formed project.
//
// Nodes and edges keep insertion order. The dependency manager inserts in
// resolution order, which makes exported DOT output stable across runs.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	_ = g.AddNode(dag.Node{ID: "app"})
//	_ = g.AddNode(dag.Node{ID: "ec"})
//	_ = g.AddEdge(dag.Edge{From: "app", To: "ec"})
//	g.AssignRows()
//
// # Cycles
//
// Dependency declarations may form cycles (the manager's registry guard keeps
// resolution finite). The graph stores them as given; [DAG.Validate] returns
// [ErrGraphHasCycle] when one exists.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use.
package dag
