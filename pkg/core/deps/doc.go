// Package deps models Noir packages and resolves their dependency graphs.
//
// # Packages
//
// A [Package] is a directory with a Nargo.toml manifest and a src/
// directory. The manifest declares a name, a [Kind] (bin, lib or contract)
// and a table of dependencies, each either a local path or a git repository
// pinned to a tag:
//
//	[package]
//	name = "token"
//	type = "contract"
//
//	[dependencies]
//	math = { path = "../math" }
//	aztec = { git = "https://github.com/AztecProtocol/aztec-packages", tag = "v0.1.0", directory = "yarn-project/aztec-nr/aztec" }
//
// # Resolvers
//
// A [Resolver] turns one declaration into a [Package], or declines with
// [ErrNotApplicable] so the next resolver in the chain can try.
// [LocalResolver] handles path declarations; the remote subpackage handles
// git declarations.
//
// # Manager
//
// [Manager.ResolveAll] walks the graph depth-first in manifest order and
// flattens it by name: the first package resolved under a name wins and later
// declarations of that name are skipped. Every resolved package must be a
// library. After resolution the manager answers the queries the compiler
// needs:
//
//   - [Manager.EntrypointDependencies]: names the project declares directly
//   - [Manager.LibraryDependencies]: each library's own dependency names
//   - [Manager.ResolveSourcePath]: maps "<name>/<file>" module ids to files
package deps
