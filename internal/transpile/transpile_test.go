// SPDX-License-Identifier: MPL-2.0

package transpile

import (
	"errors"
	"strings"
	"testing"
)

func newAdapter(t *testing.T) *ESBuild {
	t.Helper()
	a, err := NewESBuild(Options{})
	if err != nil {
		t.Fatalf("NewESBuild: %v", err)
	}
	return a
}

func TestESBuild_JSX(t *testing.T) {
	t.Parallel()
	a := newAdapter(t)

	src := `export default function Hook(ctx) { return <div class="x"><>{ctx.params.id}</></div> }`
	out, err := a.Transpile(t.Context(), src, "/hooks/client/get-client.jsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `h("div"`) {
		t.Errorf("expected h(\"div\" ...) in output:\n%s", out)
	}
	if !strings.Contains(out, "Fragment") {
		t.Errorf("expected Fragment in output:\n%s", out)
	}
	if !strings.Contains(out, "export default") {
		t.Errorf("adapter must keep ES module syntax:\n%s", out)
	}
}

func TestESBuild_TypeScript(t *testing.T) {
	t.Parallel()
	a := newAdapter(t)

	src := "interface Props { id: string }\nexport default function (p: Props): string { return p.id }\n"
	out, err := a.Transpile(t.Context(), src, "/hooks/client/a.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "interface") || strings.Contains(out, ": string") {
		t.Errorf("types should be stripped:\n%s", out)
	}
}

func TestESBuild_CustomFactory(t *testing.T) {
	t.Parallel()
	a, err := NewESBuild(Options{JSXFactory: "React.createElement", JSXFragment: "React.Fragment"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := a.Transpile(t.Context(), `export default () => <></>`, "x.jsx")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "React.createElement(React.Fragment") {
		t.Errorf("custom factory not applied:\n%s", out)
	}
}

func TestESBuild_Idempotent(t *testing.T) {
	t.Parallel()
	a := newAdapter(t)
	src := `const x = <span>hi</span>; export default () => x`

	first, err := a.Transpile(t.Context(), src, "x.jsx")
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Transpile(t.Context(), src, "x.jsx")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("outputs differ:\n%s\n---\n%s", first, second)
	}
}

func TestESBuild_SyntaxError(t *testing.T) {
	t.Parallel()
	a := newAdapter(t)

	_, err := a.Transpile(t.Context(), "export default function( {", "/hooks/client/broken.tsx")
	var te *TranspileError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TranspileError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrTranspile) {
		t.Error("TranspileError should unwrap to ErrTranspile")
	}
	if te.Filename != "/hooks/client/broken.tsx" {
		t.Errorf("Filename = %q", te.Filename)
	}
	if len(te.Messages) == 0 || !strings.Contains(te.Messages[0], "line 1") {
		t.Errorf("expected a located message, got %v", te.Messages)
	}
}

func TestESBuild_CanceledContext(t *testing.T) {
	t.Parallel()
	a := newAdapter(t)
	ctx, cancel := contextWithCancel(t)
	cancel()
	if _, err := a.Transpile(ctx, "let a = 1", "a.ts"); err == nil {
		t.Error("expected an error for a canceled context")
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "es2015", "ES2020", "esnext"} {
		if _, err := ParseTarget(name); err != nil {
			t.Errorf("ParseTarget(%q): %v", name, err)
		}
	}
	if _, err := ParseTarget("es3"); !errors.Is(err, ErrUnknownTarget) {
		t.Errorf("expected ErrUnknownTarget, got %v", err)
	}
	if _, err := NewESBuild(Options{Target: "es3"}); err == nil {
		t.Error("NewESBuild should reject an unknown target")
	}
}
