// Package model holds the linked, semantically built representation of an
// action model: component types, action types, and the declarations of
// host-implemented functions. A Model is produced in one piece by the build
// stage and is read-only afterwards; no partially-linked state ever leaves
// the loader.
package model

import (
	"github.com/zclconf/go-cty/cty"
)

// Model is the root of the built type graph.
type Model struct {
	// Components maps component name to its type.
	Components map[string]*ComponentType
	// Actions maps the qualified "component.action" name to the action type.
	Actions map[string]*ActionType
	// Functions maps function name to its declaration.
	Functions map[string]*FunctionType

	// FunctionList preserves declaration order for hosts that enumerate
	// functions to assign call ids.
	FunctionList []*FunctionType

	// bareActions indexes actions by bare name where that name is unique
	// across components.
	bareActions map[string]*ActionType
}

// New returns an empty model ready for the build stage to populate.
func New() *Model {
	return &Model{
		Components:  make(map[string]*ComponentType),
		Actions:     make(map[string]*ActionType),
		Functions:   make(map[string]*FunctionType),
		bareActions: make(map[string]*ActionType),
	}
}

// AddAction registers an action under its qualified name and, when
// unambiguous, under its bare name as well.
func (m *Model) AddAction(a *ActionType) {
	m.Actions[a.QualifiedName] = a
	if _, clash := m.bareActions[a.Name]; clash {
		// Ambiguous bare name: only qualified lookup works.
		m.bareActions[a.Name] = nil
		return
	}
	m.bareActions[a.Name] = a
}

// FindComponentType returns the named component type, or nil when absent.
func (m *Model) FindComponentType(name string) *ComponentType {
	return m.Components[name]
}

// FindActionType resolves either a qualified "component.action" name or a
// bare action name that is unique across the model. Returns nil when absent
// or ambiguous.
func (m *Model) FindActionType(name string) *ActionType {
	if a, ok := m.Actions[name]; ok {
		return a
	}
	return m.bareActions[name]
}

// FindFunctionType returns the named function declaration, or nil.
func (m *Model) FindFunctionType(name string) *FunctionType {
	return m.Functions[name]
}

// ComponentType is a linked component definition.
type ComponentType struct {
	Name      string
	Doc       string
	Instances []*Instance
	Actions   []*ActionType
}

// Instance is a named sub-component field with its resolved type.
type Instance struct {
	Name string
	Type *ComponentType
}

// ActionType is a linked action definition with its compiled exec body.
type ActionType struct {
	Name          string
	QualifiedName string
	Doc           string
	Component     *ComponentType
	Body          []Stmt
}

// FunctionType declares a host-implemented function.
type FunctionType struct {
	Name   string
	Doc    string
	Params []*Param
	// Result is nil for void functions.
	Result *ResultType
}

// Param is one typed function parameter.
type Param struct {
	Name string
	Type cty.Type
}

// ResultType describes an integer function result.
type ResultType struct {
	Signed bool
	Width  int
}

// Stmt is one compiled statement of an action body.
type Stmt interface {
	isStmt()
}

// MessageStmt forwards a constant message to the host.
type MessageStmt struct {
	Text string
}

func (*MessageStmt) isStmt() {}

// CallStmt invokes a host-implemented function with pre-evaluated arguments,
// already converted to the declared parameter types.
type CallStmt struct {
	Function *FunctionType
	Args     []cty.Value
}

func (*CallStmt) isStmt() {}

// RepeatStmt runs its body Count times.
type RepeatStmt struct {
	Count int
	Body  []Stmt
}

func (*RepeatStmt) isStmt() {}
