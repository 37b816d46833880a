package compiler

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Artifact is the output of a compilation: either a contract or a program.
// Exactly one field is set.
type Artifact struct {
	Contract *ContractArtifact `json:"contract,omitempty"`
	Program  *ProgramArtifact  `json:"program,omitempty"`
}

// Name returns the contract name, or "main" for programs.
func (a *Artifact) Name() string {
	if a.Contract != nil && a.Contract.Name != "" {
		return a.Contract.Name
	}
	return "main"
}

// MarshalJSON writes the contract or program document directly, without
// the wrapping object.
func (a *Artifact) MarshalJSON() ([]byte, error) {
	switch {
	case a.Contract != nil:
		return json.Marshal(a.Contract)
	case a.Program != nil:
		return json.Marshal(a.Program)
	}
	return []byte("null"), nil
}

// ContractArtifact is a compiled contract. ABI bodies are kept opaque.
type ContractArtifact struct {
	Name      string             `json:"name"`
	Functions []ContractFunction `json:"functions"`
}

// ContractFunction is one entry point of a contract.
type ContractFunction struct {
	Name         string          `json:"name"`
	FunctionType string          `json:"function_type,omitempty"`
	IsInternal   bool            `json:"is_internal,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ProgramArtifact is a compiled binary.
type ProgramArtifact struct {
	ABI      json.RawMessage `json:"abi"`
	Bytecode string          `json:"bytecode"`
}

// Span is a byte range in a source file.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Diagnostic is a single compiler message.
type Diagnostic struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Span    Span   `json:"span"`
	Kind    string `json:"kind,omitempty"`

	// Line and Column are 1-based when the backend reports positions as
	// lines instead of byte spans.
	Line   int `json:"line,omitempty"`
	Column int `json:"column,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Kind != "" {
		b.WriteString(d.Kind + ": ")
	}
	b.WriteString(d.Message)
	if d.File != "" {
		b.WriteString(" (" + d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", d.Line, d.Column)
		}
		b.WriteString(")")
	}
	return b.String()
}

// Diagnostics is the error a [Backend] returns when compilation fails.
type Diagnostics struct {
	Message     string       `json:"message"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

func (d *Diagnostics) Error() string {
	if len(d.Diagnostics) == 0 {
		return d.Message
	}
	return fmt.Sprintf("%s (%d diagnostics)", d.Message, len(d.Diagnostics))
}
