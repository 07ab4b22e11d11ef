package lang

import (
	"context"

	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/diag"
	"github.com/vk/actionrungo/internal/schema"
)

// Link merges one or more parsed units into a single symbol scope and
// resolves every cross-reference: instance types, call targets, and
// component containment cycles. Unresolved references are Error
// diagnostics; a declared function no call ever names is a Warning.
func (Stages) Link(ctx context.Context, units []*Unit, d *diag.Collector) (*Scope, error) {
	logger := ctxlog.FromContext(ctx)

	scope := &Scope{
		Components: make(map[string]*schema.Component),
		Functions:  make(map[string]*schema.Function),
		Exec:       make(map[*schema.Action][]schema.Stmt),
	}

	// Symbol collection across all units; first declaration wins, later
	// duplicates are errors.
	for _, u := range units {
		for _, comp := range u.Root.Components {
			if _, exists := scope.Components[comp.Name]; exists {
				d.Recordf(diag.Error, "duplicate component %q", comp.Name)
				continue
			}
			scope.Components[comp.Name] = comp
			scope.CompOrder = append(scope.CompOrder, comp)

			seen := make(map[string]struct{})
			for _, act := range comp.Actions {
				if _, dup := seen[act.Name]; dup {
					d.Recordf(diag.Error, "duplicate action %q in component %q", act.Name, comp.Name)
					continue
				}
				seen[act.Name] = struct{}{}
			}
		}
		for _, fn := range u.Root.Functions {
			if _, exists := scope.Functions[fn.Name]; exists {
				d.Recordf(diag.Error, "duplicate function %q", fn.Name)
				continue
			}
			scope.Functions[fn.Name] = fn
			scope.FuncOrder = append(scope.FuncOrder, fn)
		}
		for act, stmts := range u.Exec {
			scope.Exec[act] = stmts
		}
	}

	called := make(map[string]struct{})
	for _, comp := range scope.CompOrder {
		for _, inst := range comp.Instances {
			if _, ok := scope.Components[inst.Type]; !ok {
				d.Recordf(diag.Error, "component %q: instance %q references undefined component type %q",
					comp.Name, inst.Name, inst.Type)
			}
		}
		for _, act := range comp.Actions {
			resolveCalls(scope, comp, act, scope.Exec[act], called, d)
		}
	}

	for _, comp := range scope.CompOrder {
		checkContainmentCycle(scope, comp, nil, d)
	}

	for _, fn := range scope.FuncOrder {
		if _, ok := called[fn.Name]; !ok {
			d.Recordf(diag.Warning, "function %q is declared but never called", fn.Name)
		}
	}

	d.Recordf(diag.Info, "linked %d component(s), %d function(s)",
		len(scope.CompOrder), len(scope.FuncOrder))
	logger.Debug("Link stage finished.", "components", len(scope.CompOrder), "functions", len(scope.FuncOrder))
	return scope, nil
}

func resolveCalls(scope *Scope, comp *schema.Component, act *schema.Action, stmts []schema.Stmt, called map[string]struct{}, d *diag.Collector) {
	for _, st := range stmts {
		switch s := st.(type) {
		case *schema.CallStmt:
			if _, ok := scope.Functions[s.Func]; !ok {
				rng := s.DefRange()
				d.Add(&diag.Diagnostic{
					Severity: diag.Error,
					Summary:  "call to undefined function \"" + s.Func + "\"",
					Detail:   "in action " + comp.Name + "." + act.Name,
					Subject:  &rng,
				})
				continue
			}
			called[s.Func] = struct{}{}
		case *schema.RepeatStmt:
			resolveCalls(scope, comp, act, s.Body, called, d)
		}
	}
}

// checkContainmentCycle walks instance edges from comp, reporting a cycle
// when a component transitively contains itself.
func checkContainmentCycle(scope *Scope, comp *schema.Component, path []string, d *diag.Collector) {
	for _, name := range path {
		if name == comp.Name {
			d.Recordf(diag.Error, "component %q contains itself through its instances", comp.Name)
			return
		}
	}
	path = append(path, comp.Name)
	for _, inst := range comp.Instances {
		if sub, ok := scope.Components[inst.Type]; ok {
			checkContainmentCycle(scope, sub, path, d)
		}
	}
}
