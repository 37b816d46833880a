// Package compiler drives a compiler backend over a resolved project.
//
// # Overview
//
// An [Orchestrator] takes a project directory through the whole build:
//
//  1. Load the root package and check its kind
//  2. Resolve every dependency with a deps.Manager
//  3. Install a [SourceResolver] on the backend that serves module ids from
//     resolved packages (or the raw path as a fallback)
//  4. Call [Backend.Compile] with the entry file and the dependency graph
//
// The compiler engine itself is behind the [Backend] interface. The nargo
// subpackage runs the nargo executable; embedding programs can register
// in-process engines in a [Registry].
//
// # Failure handling
//
// Resolution failures are returned unchanged. Compile failures are not: the
// backend's [Diagnostics] are logged and the orchestrator returns an empty
// result slice with a nil error. Callers test len(results) == 0.
//
// # Usage
//
//	o, err := compiler.NewOrchestrator(nargo.New())
//	if err != nil {
//	    return err
//	}
//	results, err := o.CompileContractProject(ctx, "/abs/path/to/project")
//	if err != nil {
//	    return err // resolution failure
//	}
//	if len(results) == 0 {
//	    return errors.New("compilation failed")
//	}
package compiler
