package lang

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/diag"
	"github.com/vk/actionrungo/internal/schema"
)

// inlineFilename names inline sources in diagnostics.
const inlineFilename = "<inline>"

// Parse reads the configured source into per-file units. Syntax and block
// structure problems become diagnostics; a source that cannot be opened at
// all is a fatal condition reported through the error return.
func (Stages) Parse(ctx context.Context, src *Source, d *diag.Collector) ([]*Unit, error) {
	logger := ctxlog.FromContext(ctx)
	parser := hclparse.NewParser()

	var units []*Unit
	if src.Inline != "" {
		file, diags := parser.ParseHCL([]byte(src.Inline), inlineFilename)
		d.Append(diags)
		units = append(units, decodeUnit(inlineFilename, file, d))
	} else {
		files, err := findSourceFiles(src.Path)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			d.Recordf(diag.Error, "no .hcl source files found under %s", src.Path)
			return nil, nil
		}
		for _, name := range files {
			file, diags := parser.ParseHCLFile(name)
			d.Append(diags)
			units = append(units, decodeUnit(name, file, d))
		}
	}

	logger.Debug("Parse stage finished.", "units", len(units), "diagnostics", d.Len())
	return units, nil
}

// decodeUnit decodes the top-level blocks of one parsed file and extracts
// exec statement bodies. A file that failed to parse yields an empty unit.
func decodeUnit(filename string, file *hcl.File, d *diag.Collector) *Unit {
	u := &Unit{
		Filename: filename,
		File:     file,
		Root:     &schema.Root{},
		Exec:     make(map[*schema.Action][]schema.Stmt),
	}
	if file == nil || file.Body == nil {
		return u
	}

	d.Append(gohcl.DecodeBody(file.Body, nil, u.Root))

	for _, comp := range u.Root.Components {
		for _, act := range comp.Actions {
			if act.Exec == nil {
				continue
			}
			u.Exec[act] = parseStmtBody(act.Exec.Body, d)
		}
	}
	return u
}

var stmtBlockHeaders = []hcl.BlockHeaderSchema{
	{Type: "message"},
	{Type: "call", LabelNames: []string{"name"}},
	{Type: "repeat"},
}

var execBodySchema = &hcl.BodySchema{Blocks: stmtBlockHeaders}

var repeatBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "count", Required: true}},
	Blocks:     stmtBlockHeaders,
}

var messageBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "text", Required: true}},
}

var callBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{{Name: "args"}},
}

// parseStmtBody extracts the statements of an exec body in source order.
func parseStmtBody(body hcl.Body, d *diag.Collector) []schema.Stmt {
	content, diags := body.Content(execBodySchema)
	d.Append(diags)
	return parseStmtBlocks(content.Blocks, d)
}

func parseStmtBlocks(blocks hcl.Blocks, d *diag.Collector) []schema.Stmt {
	var stmts []schema.Stmt
	for _, blk := range blocks {
		switch blk.Type {
		case "message":
			content, diags := blk.Body.Content(messageBodySchema)
			d.Append(diags)
			if attr, ok := content.Attributes["text"]; ok {
				stmts = append(stmts, &schema.MessageStmt{
					Text:     attr.Expr,
					SrcRange: blk.DefRange,
				})
			}
		case "call":
			content, diags := blk.Body.Content(callBodySchema)
			d.Append(diags)
			call := &schema.CallStmt{Func: blk.Labels[0], SrcRange: blk.DefRange}
			if attr, ok := content.Attributes["args"]; ok {
				call.Args = attr.Expr
			}
			stmts = append(stmts, call)
		case "repeat":
			content, diags := blk.Body.Content(repeatBodySchema)
			d.Append(diags)
			rep := &schema.RepeatStmt{SrcRange: blk.DefRange}
			if attr, ok := content.Attributes["count"]; ok {
				rep.Count = attr.Expr
			}
			rep.Body = parseStmtBlocks(content.Blocks, d)
			stmts = append(stmts, rep)
		}
	}
	return stmts
}

// findSourceFiles resolves a source path to a flat, ordered list of .hcl
// files. A missing or unreadable path is a fatal condition.
func findSourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(p) == ".hcl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return files, nil
}
