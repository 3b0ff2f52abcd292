// SPDX-License-Identifier: MPL-2.0

package transpile

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithCancel(t.Context())
}

func TestNormalize_ESModuleToCommonJS(t *testing.T) {
	t.Parallel()

	src := `import { helper } from "./helper.js";
export const name = "a";
export default async function (ctx) {
  const b = await import("./b.mjs");
  return helper(b.default);
}
`
	out, err := Normalize(src, "/hooks/client/a.mjs", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(out, "export ") {
		t.Errorf("ES module syntax left in output:\n%s", out)
	}
	if !strings.Contains(out, "module.exports") {
		t.Errorf("expected module.exports in output:\n%s", out)
	}
	if !strings.Contains(out, `__import("./b.mjs")`) {
		t.Errorf("dynamic import not rewritten:\n%s", out)
	}
	if got := ParseRequires(out); !slices.Equal(got, []string{"./helper.js"}) {
		t.Errorf("ParseRequires = %v, want [./helper.js]", got)
	}
}

func TestNormalize_CommonJSPassesThrough(t *testing.T) {
	t.Parallel()

	src := `const util = require("./util");
module.exports = { default: function (ctx) { return util.x } };
`
	out, err := Normalize(src, "a.js", "es2017")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `require("./util")`) {
		t.Errorf("require call should survive:\n%s", out)
	}
	if !strings.Contains(out, "module.exports") {
		t.Errorf("module.exports should survive:\n%s", out)
	}
}

func TestNormalize_SyntaxError(t *testing.T) {
	t.Parallel()
	_, err := Normalize("export default {", "bad.js", "")
	if !errors.Is(err, ErrTranspile) {
		t.Fatalf("expected ErrTranspile, got %v", err)
	}
}

func TestRewriteDynamicImports(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"call", `import("./a")`, `__import("./a")`},
		{"spaced call", `x = import ("./a")`, `x = __import ("./a")`},
		{"several calls", `await Promise.all([import("a"), import("b")])`, `await Promise.all([__import("a"), __import("b")])`},
		{"member name", `loader.import("./a")`, `loader.import("./a")`},
		{"identifier suffix", `reimport("./a")`, `reimport("./a")`},
		{"dollar prefix", `$import("./a")`, `$import("./a")`},
		{"string literal", `return "call import(x) later";`, `return "call import(x) later";`},
		{"template literal", "return `see import(x)`;", "return `see import(x)`;"},
		{"comment", "// import(\"./a\")\nreturn 1;", "// import(\"./a\")\nreturn 1;"},
		{
			"call next to literal",
			`const m = await import("./b.js"); return "import(" + m.x;`,
			`const m = await __import("./b.js"); return "import(" + m.x;`,
		},
		{
			"multi-line",
			"const a = 1;\n  const b = await import(\n    \"./b.js\");\nreturn 'import(' + b;",
			"const a = 1;\n  const b = await __import(\n    \"./b.js\");\nreturn 'import(' + b;",
		},
		{"unrelated syntax error", `return import(; )`, `return __import(; )`},
		{"broken source", `return (;`, `return (;`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := rewriteDynamicImports(tt.in); got != tt.want {
				t.Errorf("rewriteDynamicImports(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_ImportTextInStringsIsKept(t *testing.T) {
	t.Parallel()

	src := `export default async function (ctx) {
  const b = await import("./b.js");
  return "call import(x) later " + b.default;
}
`
	out, err := Normalize(src, "hint.mjs", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"call import(x) later "`) {
		t.Errorf("string literal was rewritten:\n%s", out)
	}
	if !strings.Contains(out, `__import("./b.js")`) {
		t.Errorf("dynamic import not rewritten:\n%s", out)
	}
}

func TestParseRequires(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code string
		want []string
	}{
		{
			name: "literal specifiers",
			code: `var a = require("./a"); var b = require('@relay/hook-runtime');
var again = require( "./a" ); var dyn = require(name);`,
			want: []string{"./a", "@relay/hook-runtime"},
		},
		{
			name: "text inside strings",
			code: `return "use require('./missing.js') in CommonJS";`,
		},
		{
			name: "text inside comments",
			code: "// require('./commented.js')\nreturn require(\"./real.js\");",
			want: []string{"./real.js"},
		},
		{
			name: "guarded require",
			code: `var opt; try { opt = require('./optional.js') } catch (e) {} return opt;`,
			want: []string{"./optional.js"},
		},
		{
			name: "member call",
			code: `return loader.require("./x.js");`,
		},
		{
			name: "nested functions",
			code: `module.exports.default = function () { return function () { return require("./deep.js") } };`,
			want: []string{"./deep.js"},
		},
		{
			name: "unparsable",
			code: `require("./a.js"); return (;`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseRequires(tt.code); !slices.Equal(got, tt.want) {
				t.Errorf("ParseRequires = %v, want %v", got, tt.want)
			}
		})
	}
}
