package lang

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/diag"
	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
	"github.com/vk/actionrungo/internal/schema"
)

// defaultResultWidth applies when a result block leaves width unset.
const defaultResultWidth = 32

// Build lowers the linked scope into the runtime model: function
// declarations first, then component and action types with their compiled
// statement bodies. Argument values are evaluated here and converted to the
// declared parameter types; mismatches are Error diagnostics. The returned
// model is only attached to the context by the loader when the stage gate
// passes.
func (Stages) Build(ctx context.Context, rc *runtime.Context, scope *Scope, d *diag.Collector) (*model.Model, error) {
	logger := ctxlog.FromContext(ctx)
	m := model.New()

	for _, fn := range scope.FuncOrder {
		m.Functions[fn.Name] = buildFunction(fn, d)
		m.FunctionList = append(m.FunctionList, m.Functions[fn.Name])
	}

	// Components exist before instances are linked so forward references
	// work regardless of declaration order.
	for _, comp := range scope.CompOrder {
		m.Components[comp.Name] = &model.ComponentType{Name: comp.Name, Doc: comp.Doc}
	}
	for _, comp := range scope.CompOrder {
		ct := m.Components[comp.Name]
		for _, inst := range comp.Instances {
			sub, ok := m.Components[inst.Type]
			if !ok {
				// Already an Error from the link stage; nothing to lower.
				continue
			}
			ct.Instances = append(ct.Instances, &model.Instance{Name: inst.Name, Type: sub})
		}
		for _, act := range comp.Actions {
			at := &model.ActionType{
				Name:          act.Name,
				QualifiedName: comp.Name + "." + act.Name,
				Doc:           act.Doc,
				Component:     ct,
				Body:          buildStmts(rc, m, scope.Exec[act], d),
			}
			ct.Actions = append(ct.Actions, at)
			m.AddAction(at)
		}
	}

	logger.Debug("Build stage finished.", "components", len(m.Components), "actions", len(m.Actions), "functions", len(m.FunctionList))
	return m, nil
}

func buildFunction(fn *schema.Function, d *diag.Collector) *model.FunctionType {
	ft := &model.FunctionType{Name: fn.Name, Doc: fn.Doc}
	for _, p := range fn.Params {
		ty, diags := typeexpr.TypeConstraint(p.Type)
		d.Append(diags)
		if diags.HasErrors() {
			ty = cty.DynamicPseudoType
		}
		ft.Params = append(ft.Params, &model.Param{Name: p.Name, Type: ty})
	}
	if fn.Result != nil {
		width := fn.Result.Width
		if width == 0 {
			width = defaultResultWidth
		}
		if width < 1 || width > 64 {
			d.Recordf(diag.Error, "function %q: result width %d out of range 1..64", fn.Name, width)
			width = defaultResultWidth
		}
		ft.Result = &model.ResultType{Signed: fn.Result.Signed, Width: width}
	}
	return ft
}

func buildStmts(rc *runtime.Context, m *model.Model, stmts []schema.Stmt, d *diag.Collector) []model.Stmt {
	var out []model.Stmt
	for _, st := range stmts {
		switch s := st.(type) {
		case *schema.MessageStmt:
			text, ok := evalString(rc, s.Text, s.DefRange(), d)
			if !ok {
				continue
			}
			out = append(out, &model.MessageStmt{Text: text})
		case *schema.CallStmt:
			fn := m.Functions[s.Func]
			if fn == nil {
				continue
			}
			args, ok := buildCallArgs(rc, fn, s, d)
			if !ok {
				continue
			}
			out = append(out, &model.CallStmt{Function: fn, Args: args})
		case *schema.RepeatStmt:
			count, ok := evalCount(rc, s.Count, s.DefRange(), d)
			if !ok {
				continue
			}
			out = append(out, &model.RepeatStmt{
				Count: count,
				Body:  buildStmts(rc, m, s.Body, d),
			})
		}
	}
	return out
}

func buildCallArgs(rc *runtime.Context, fn *model.FunctionType, s *schema.CallStmt, d *diag.Collector) ([]cty.Value, bool) {
	var given []cty.Value
	if s.Args != nil {
		v, diags := s.Args.Value(rc.EvalContext())
		d.Append(diags)
		if diags.HasErrors() {
			return nil, false
		}
		if !v.Type().IsTupleType() && !v.Type().IsListType() {
			errAt(d, s.DefRange(), fmt.Sprintf("call %q: args must be a list, got %s", fn.Name, v.Type().FriendlyName()))
			return nil, false
		}
		given = v.AsValueSlice()
	}

	if len(given) != len(fn.Params) {
		errAt(d, s.DefRange(), fmt.Sprintf("function %q expects %d argument(s), got %d", fn.Name, len(fn.Params), len(given)))
		return nil, false
	}

	args := make([]cty.Value, len(given))
	ok := true
	for i, raw := range given {
		conv, err := convert.Convert(raw, fn.Params[i].Type)
		if err != nil {
			errAt(d, s.DefRange(), fmt.Sprintf("function %q: argument %q: %s", fn.Name, fn.Params[i].Name, err))
			ok = false
			continue
		}
		args[i] = conv
	}
	return args, ok
}

func evalString(rc *runtime.Context, expr hcl.Expression, rng hcl.Range, d *diag.Collector) (string, bool) {
	v, diags := expr.Value(rc.EvalContext())
	d.Append(diags)
	if diags.HasErrors() {
		return "", false
	}
	conv, err := convert.Convert(v, cty.String)
	if err != nil {
		errAt(d, rng, fmt.Sprintf("message text must be a string: %s", err))
		return "", false
	}
	if conv.IsNull() {
		errAt(d, rng, "message text must not be null")
		return "", false
	}
	return conv.AsString(), true
}

func evalCount(rc *runtime.Context, expr hcl.Expression, rng hcl.Range, d *diag.Collector) (int, bool) {
	if expr == nil {
		return 0, false
	}
	v, diags := expr.Value(rc.EvalContext())
	d.Append(diags)
	if diags.HasErrors() {
		return 0, false
	}
	conv, err := convert.Convert(v, cty.Number)
	if err != nil || conv.IsNull() {
		errAt(d, rng, "repeat count must be a number")
		return 0, false
	}
	n, acc := conv.AsBigFloat().Int64()
	if acc != big.Exact {
		errAt(d, rng, fmt.Sprintf("repeat count must be a whole number, got %s", conv.AsBigFloat().Text('g', -1)))
		return 0, false
	}
	if n < 0 {
		errAt(d, rng, fmt.Sprintf("repeat count must not be negative, got %d", n))
		return 0, false
	}
	return int(n), true
}

func errAt(d *diag.Collector, rng hcl.Range, summary string) {
	d.Add(&diag.Diagnostic{Severity: diag.Error, Summary: summary, Subject: &rng})
}
