// Package io provides JSON import and export for resolved dependency graphs.
//
// # JSON Format
//
// The format has two required top-level arrays and an optional graph-level
// meta object:
//
//	{
//	  "meta": {"root": "token"},
//	  "nodes": [
//	    {"id": "token", "meta": {"kind": "contract", "root": "/src/token"}},
//	    {"id": "ec", "row": 1, "meta": {"kind": "lib", "source": "git=https://github.com/noir-lang/ec tag=v0.1.0"}}
//	  ],
//	  "edges": [
//	    {"from": "token", "to": "ec"}
//	  ]
//	}
//
// # Node Fields
//
// Required:
//   - id: the dependency name, or the project name for the root
//
// Optional:
//   - row: depth below the root (0 is omitted)
//   - meta: "kind" (package type), "root" (package directory) and, for
//     resolved dependencies, "source" (the declaration that won)
//
// [ReadJSON] rejects duplicate node IDs and edges that reference unknown
// nodes. Errors name the node or edge that caused them.
package io
