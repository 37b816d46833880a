// Package nodelink renders resolved package graphs as node-and-edge diagrams
// using Graphviz.
//
// Packages are boxes and each declared dependency is an arrow from the
// declaring package to the package that satisfied it:
//
//	g := manager.Graph()
//	dot := nodelink.ToDOT(g, nodelink.Options{Root: "my_contract"})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT text is useful on its own (pipe it into `dot -Tpng`); [RenderSVG]
// runs the layout in-process through the WebAssembly build of Graphviz.
//
// Non-library nodes other than the root are drawn dashed, which makes a
// misdeclared dependency easy to spot before resolution rejects it.
package nodelink
