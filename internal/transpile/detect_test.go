// SPDX-License-Identifier: MPL-2.0

package transpile

import "testing"

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   string
		filename string
		want     bool
	}{
		{"tsx extension", "export default 1", "a.tsx", true},
		{"ts extension", "export default 1", "a.ts", true},
		{"jsx extension", "export default 1", "a.JSX", true},
		{"plain js", "export default function (ctx) { return 42 }", "a.js", false},
		{"plain mjs with comparison", "export default (a, b) => a < b ? a : b", "a.mjs", false},
		{"jsx return", "export default () => { return <div/> }", "a.js", true},
		{"jsx arrow", "export default (ctx) => <Layout title=\"x\">hi</Layout>", "a.mjs", true},
		{"jsx fragment", "const x = cond && <>ok</>", "a.js", true},
		{"jsx pragma", "/** @jsx h */\nexport default 1", "a.js", true},
		{"ts pragma", "// @ts-check\nexport default 1", "a.js", true},
		{"ts interface", "interface Foo { a: number }\nexport default 1", "a.js", true},
		{"ts type alias", "export type Id = string\nexport default 1", "a.js", true},
		{"ts import type", "import type { X } from './x'\nexport default 1", "a.js", true},
		{"ts return annotation", "export default function f(): string { return '' }", "a.js", true},
		{"ts param annotation", "export default function f(id: string) { return id }", "a.js", true},
		{"ts as const", "const modes = ['a', 'b'] as const", "a.js", true},
		{"extensionless plain", "module.exports = { default: () => 1 }", "/hooks/lib/util", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tt.source, tt.filename); got != tt.want {
				t.Errorf("Detect(%q, %q) = %v, want %v", tt.source, tt.filename, got, tt.want)
			}
		})
	}
}
