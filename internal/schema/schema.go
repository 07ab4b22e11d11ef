// Package schema defines the raw HCL block structures of the action model
// language, decoded via gohcl before any cross-reference resolution happens.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// Root represents the top-level content of one source file.
type Root struct {
	Components []*Component `hcl:"component,block"`
	Functions  []*Function  `hcl:"function,block"`
	Remain     hcl.Body     `hcl:",remain"`
}

// Component is a `component` block: a named container of sub-component
// instances and actions.
type Component struct {
	Name      string      `hcl:"name,label"`
	Doc       string      `hcl:"doc,optional"`
	Instances []*Instance `hcl:"instance,block"`
	Actions   []*Action   `hcl:"action,block"`
}

// Instance is an `instance` block: a named sub-component whose type is a
// reference to another component, resolved during linking.
type Instance struct {
	Name string `hcl:"name,label"`
	Type string `hcl:"type"`
}

// Action is an `action` block. Its exec body is kept opaque here; statements
// are extracted in source order by the parse stage.
type Action struct {
	Name string     `hcl:"name,label"`
	Doc  string     `hcl:"doc,optional"`
	Exec *ExecBlock `hcl:"exec,block"`
}

// ExecBlock defers decoding of the statement body.
type ExecBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Function is a `function` block declaring a host-implemented function:
// the engine calls it, the host supplies the behavior.
type Function struct {
	Name   string   `hcl:"name,label"`
	Doc    string   `hcl:"doc,optional"`
	Params []*Param `hcl:"param,block"`
	Result *Result  `hcl:"result,block"`
}

// Param declares one typed function parameter. Type is an HCL type
// expression (number, string, bool, list(number), ...).
type Param struct {
	Name string         `hcl:"name,label"`
	Type hcl.Expression `hcl:"type"`
}

// Result declares an integer function result. A function without a result
// block completes with void.
type Result struct {
	Signed bool `hcl:"signed,optional"`
	Width  int  `hcl:"width,optional"`
}

// Stmt is one statement of an exec body, in source order.
type Stmt interface {
	// DefRange is the source location of the statement's block header.
	DefRange() hcl.Range
}

// MessageStmt is a `message { text = ... }` statement: the evaluated text is
// forwarded to the host as a fire-and-forget message.
type MessageStmt struct {
	Text     hcl.Expression
	SrcRange hcl.Range
}

func (s *MessageStmt) DefRange() hcl.Range { return s.SrcRange }

// CallStmt is a `call "name" { args = [...] }` statement invoking a declared
// function through the call bridge.
type CallStmt struct {
	Func     string
	Args     hcl.Expression
	SrcRange hcl.Range
}

func (s *CallStmt) DefRange() hcl.Range { return s.SrcRange }

// RepeatStmt is a `repeat { count = N ... }` statement running its nested
// statements count times.
type RepeatStmt struct {
	Count    hcl.Expression
	Body     []Stmt
	SrcRange hcl.Range
}

func (s *RepeatStmt) DefRange() hcl.Range { return s.SrcRange }
