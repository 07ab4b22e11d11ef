// Package lang implements the three compilation stages of the action model
// language: parse (HCL source into per-file units), link (cross-reference
// resolution over one or more units), and build (lowering the linked scope
// into the runtime model). Each stage records its findings in the shared
// diagnostics collector; the loader gates stage progression on severity.
package lang

import (
	"github.com/hashicorp/hcl/v2"

	"github.com/vk/actionrungo/internal/schema"
)

// Source describes where the model text comes from. Exactly one of Path or
// Inline is set: Path points at an .hcl file or a directory walked for .hcl
// files, Inline holds the text directly.
type Source struct {
	Path   string
	Inline string
}

// Unit is one parsed source file: the raw HCL file, its decoded block
// structure, and the exec statement bodies extracted in source order.
type Unit struct {
	Filename string
	File     *hcl.File
	Root     *schema.Root
	Exec     map[*schema.Action][]schema.Stmt
}

// Scope is the linked symbol scope over all parsed units.
type Scope struct {
	Components map[string]*schema.Component
	Functions  map[string]*schema.Function

	// CompOrder and FuncOrder preserve declaration order across units so
	// the build stage is deterministic.
	CompOrder []*schema.Component
	FuncOrder []*schema.Function

	// Exec carries the per-action statement bodies through to build.
	Exec map[*schema.Action][]schema.Stmt
}

// Stages is the concrete pipeline implementation handed to the loader.
type Stages struct{}
