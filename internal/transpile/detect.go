// SPDX-License-Identifier: MPL-2.0

package transpile

import (
	"path"
	"regexp"
	"strings"
)

var (
	// Pragmas that only make sense for JSX or TypeScript sources.
	pragmaPattern = regexp.MustCompile(`(?m)(/\*\*?\s*@jsx(Frag|ImportSource|Runtime)?\s)|(^\s*//\s*@ts-(check|nocheck|ignore|expect-error))|(^\s*///\s*<reference\s)`)

	// An opening tag in expression position: after return, (, =, :, ?, &&, ||, comma or =>.
	jsxTagPattern = regexp.MustCompile(`(?m)(return|[(=:?,]|&&|\|\||=>)\s*<(>|[A-Za-z][\w.:-]*(\s|/?>))`)

	// Fragment open or close, and self-closing component tags.
	jsxFragmentPattern = regexp.MustCompile(`<>|</>|<[A-Z][\w.]*\s*/>`)

	typeScriptPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(export\s+)?(interface|enum)\s+[A-Za-z_$][\w$]*`),
		regexp.MustCompile(`(?m)^\s*(export\s+)?type\s+[A-Za-z_$][\w$]*(<[^>]*>)?\s*=`),
		regexp.MustCompile(`(?m)^\s*import\s+type\s`),
		regexp.MustCompile(`\)\s*:\s*(string|number|boolean|void|any|unknown|never|Promise<)`),
		regexp.MustCompile(`[(,]\s*[A-Za-z_$][\w$]*\??\s*:\s*(string|number|boolean|any|unknown|[A-Z][\w$]*(<[^>]*>)?(\[\])?)\s*[,)=]`),
		regexp.MustCompile(`\bas\s+(const|string|number|boolean|any|unknown)\b`),
	}

	transpiledExts = map[string]bool{
		".ts":  true,
		".tsx": true,
		".mts": true,
		".cts": true,
		".jsx": true,
	}
)

// Detect reports whether source looks like TypeScript or JSX and therefore
// needs the Adapter before it can run. The extension decides when it is
// conclusive; otherwise pragma comments, JSX-like tags and TypeScript-only
// constructs are sniffed.
func Detect(source, filename string) bool {
	if transpiledExts[strings.ToLower(path.Ext(filename))] {
		return true
	}
	if pragmaPattern.MatchString(source) {
		return true
	}
	if looksJSX(source) {
		return true
	}
	return looksTypeScript(source)
}

func looksJSX(source string) bool {
	return jsxFragmentPattern.MatchString(source) || jsxTagPattern.MatchString(source)
}

func looksTypeScript(source string) bool {
	for _, p := range typeScriptPatterns {
		if p.MatchString(source) {
			return true
		}
	}
	return false
}
