// SPDX-License-Identifier: MPL-2.0

package transpile

import (
	"errors"
	"reflect"
	"slices"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
	"github.com/evanw/esbuild/pkg/api"
)

// ImportFunc is the identifier dynamic import() calls are rewritten to.
const ImportFunc = "__import"

const (
	importKeyword = "import"

	// Units run as function bodies, so top-level return is legal. The async
	// wrapper keeps await from being read as an identifier.
	bodyHeader = "(async function () {\n"
	bodyFooter = "\n})"
)

var nodeType = reflect.TypeFor[ast.Node]()

// Normalize converts JavaScript in any module format into a CommonJS body:
// ES module syntax becomes module.exports/require, static imports become
// require(specifier) and dynamic import(specifier) becomes
// __import(specifier). Plain scripts pass through apart from the rewrite.
func Normalize(source, filename, target string) (string, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return "", err
	}

	result := api.Transform(source, api.TransformOptions{
		Loader:     api.LoaderJS,
		Target:     t,
		Format:     api.FormatCommonJS,
		Sourcefile: filename,
		LogLevel:   api.LogLevelSilent,
		Supported:  map[string]bool{"dynamic-import": true},
	})
	if len(result.Errors) > 0 {
		return "", newTranspileError(filename, result.Errors)
	}
	return rewriteDynamicImports(string(result.Code)), nil
}

// rewriteDynamicImports renames every import() call expression in code to
// ImportFunc. The runtime parser rejects the import keyword in expression
// position, so each parse error pointing at an "import(" is a call site;
// string literals, comments and member names never reach that path.
// Rewriting stops at the first error that is not an import call and leaves
// it for the compiler to report.
func rewriteDynamicImports(code string) string {
	for range strings.Count(code, importKeyword) {
		_, err := parseBody(code)
		if err == nil {
			return code
		}
		off, ok := importCallOffset(code, err)
		if !ok {
			return code
		}
		code = code[:off] + ImportFunc + code[off+len(importKeyword):]
	}
	return code
}

// importCallOffset maps the first parse error back to a byte offset in code
// when it sits on an import keyword followed by an opening parenthesis.
func importCallOffset(code string, err error) (int, bool) {
	var list parser.ErrorList
	if !errors.As(err, &list) || len(list) == 0 {
		return 0, false
	}
	pos := list[0].Position

	src := bodyHeader + code + bodyFooter
	f := file.NewFile("", src, 1)
	for i := strings.Index(src, importKeyword); i >= 0; {
		at := f.Position(i)
		if at.Line == pos.Line && at.Column == pos.Column {
			rest := strings.TrimLeft(src[i+len(importKeyword):], " \t\r\n")
			if !strings.HasPrefix(rest, "(") {
				return 0, false
			}
			return i - len(bodyHeader), true
		}
		next := strings.Index(src[i+1:], importKeyword)
		if next < 0 {
			break
		}
		i += next + 1
	}
	return 0, false
}

func parseBody(code string) (*ast.Program, error) {
	return parser.ParseFile(nil, "", bodyHeader+code+bodyFooter, 0, parser.WithDisableSourceMaps)
}

// ParseRequires returns the distinct specifiers passed as string literals to
// require() calls in code, in order of first appearance. Code that does not
// parse yields no specifiers; compiling it reports the error.
func ParseRequires(code string) []string {
	prog, err := parseBody(code)
	if err != nil {
		return nil
	}

	var specs []string
	walkNodes(reflect.ValueOf(prog), map[uintptr]bool{}, func(n ast.Node) {
		call, ok := n.(*ast.CallExpression)
		if !ok || len(call.ArgumentList) != 1 {
			return
		}
		callee, ok := call.Callee.(*ast.Identifier)
		if !ok || callee.Name.String() != "require" {
			return
		}
		lit, ok := call.ArgumentList[0].(*ast.StringLiteral)
		if !ok {
			return
		}
		if spec := lit.Value.String(); !slices.Contains(specs, spec) {
			specs = append(specs, spec)
		}
	})
	return specs
}

// walkNodes visits every AST node reachable from v in source order. The
// ast package ships no visitor, so the tree is traversed through its
// exported fields.
func walkNodes(v reflect.Value, seen map[uintptr]bool, visit func(ast.Node)) {
	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			walkNodes(v.Elem(), seen, visit)
		}
	case reflect.Pointer:
		if v.IsNil() || seen[v.Pointer()] {
			return
		}
		seen[v.Pointer()] = true
		if v.Type().Implements(nodeType) {
			visit(v.Interface().(ast.Node))
		}
		walkNodes(v.Elem(), seen, visit)
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if t.Field(i).IsExported() {
				walkNodes(v.Field(i), seen, visit)
			}
		}
	case reflect.Slice:
		for i := range v.Len() {
			walkNodes(v.Index(i), seen, visit)
		}
	}
}
