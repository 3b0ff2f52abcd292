// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	HookFetchFailedId Id = iota + 1
	HTMLResponseId
	TranspileFailedId
	ModuleExecutionFailedId
	ContractViolationId
	ImportCycleId
	ModuleNotPrefetchedId
	ResolutionDegradedId
	ExecutorUnavailableId
	ConfigLoadFailedId
	DevPeerStartFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// Title returns the first Markdown heading of the issue.
func (i *Issue) Title() string {
	for line := range strings.Lines(string(i.mdMsg)) {
		if title, ok := strings.CutPrefix(strings.TrimSpace(line), "# "); ok {
			return title
		}
	}
	return ""
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	hookFetchFailedIssue = &Issue{
		id: HookFetchFailedId,
		mdMsg: `
# Failed to fetch hook!

The peer did not return the module source.

## Common causes:
- The hook path does not exist on the peer (HTTP 404)
- The peer is not running or not reachable from this host
- The branch selected with --branch does not contain the hook

## Things you can try:
- Check the resolved URL:
~~~
$ relayhook resolve /hooks/client/get-client.jsx
~~~

- Serve a local directory as a peer while developing:
~~~
$ relayhook serve ./peer --addr 127.0.0.1:8700
~~~`,
	}

	htmlResponseIssue = &Issue{
		id: HTMLResponseId,
		mdMsg: `
# The peer answered with an HTML page!

Module sources must be served as JavaScript. An HTML response usually means a
single page application fallback answered for a path that does not exist.

## Things you can try:
- Verify the hook path and its extension
- Configure the peer to return 404 for missing modules instead of index.html`,
	}

	transpileFailedIssue = &Issue{
		id: TranspileFailedId,
		mdMsg: `
# Failed to transpile hook!

The module looked like JSX or TypeScript but could not be transformed.

## Things you can try:
- Check the line and column in the error message above
- Run the transform on its own to see the full output:
~~~
$ relayhook transpile ./hooks/client/get-client.jsx
~~~

- Continue with the raw source when the module is valid JavaScript:
~~~
$ relayhook run /hooks/client/get-client.jsx --lenient-transpile
~~~`,
	}

	moduleExecutionFailedIssue = &Issue{
		id: ModuleExecutionFailedId,
		mdMsg: `
# Module execution failed!

The hook or one of its imports threw while it was evaluated or called.

## Things you can try:
- Read the source excerpt and stack shown above
- Run with --verbose to see the full error chain`,
	}

	contractViolationIssue = &Issue{
		id: ContractViolationId,
		mdMsg: `
# Hook has no default export function!

A hook module must export a function as its default export.

## Example:
~~~jsx
export default function GetClient(ctx) {
  return <div>{ctx.params.name}</div>;
}
~~~`,
	}

	importCycleIssue = &Issue{
		id: ImportCycleId,
		mdMsg: `
# Import cycle detected!

Two or more modules import each other statically, so none of them can finish
loading first.

## Things you can try:
- Move the shared code into a third module
- Replace one of the static imports with a dynamic import():
~~~js
const { helper } = await import("./helper.js");
~~~`,
	}

	moduleNotPrefetchedIssue = &Issue{
		id: ModuleNotPrefetchedId,
		mdMsg: `
# require() of a module that was not loaded ahead!

Static imports and require() calls must use string literals so the module can
be fetched before the importer runs.

## Things you can try:
- Use import() for computed specifiers:
~~~js
const mod = await import("./locales/" + lang + ".js");
~~~`,
	}

	resolutionDegradedIssue = &Issue{
		id: ResolutionDegradedId,
		mdMsg: `
# Specifier resolved with a fallback!

A relative specifier was imported from a module without a usable path, so it
was resolved against the default base directory.

## Things you can try:
- Import from an absolute path such as /hooks/shared/util.js
- Set the default base in the configuration:
~~~cue
resolve: default_base: "/hooks/client"
~~~`,
	}

	executorUnavailableIssue = &Issue{
		id: ExecutorUnavailableId,
		mdMsg: `
# Executor not available!

The configured module executor could not be created for this engine.

## Things you can try:
- List the configured executor:
~~~
$ relayhook config show
~~~

- Use the function executor, which is always available:
~~~cue
executor: "function"
~~~`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or failed schema validation.

## Things you can try:
- Show where the configuration is read from:
~~~
$ relayhook config path
~~~

- Write a fresh default file:
~~~
$ relayhook config init
~~~`,
	}

	devPeerStartFailedIssue = &Issue{
		id: DevPeerStartFailedId,
		mdMsg: `
# Failed to start the development peer!

## Common causes:
- The address is already in use
- The served directory does not exist

## Things you can try:
- Pick another address:
~~~
$ relayhook serve ./peer --addr 127.0.0.1:0
~~~`,
	}

	issues = map[Id]*Issue{
		hookFetchFailedIssue.Id():       hookFetchFailedIssue,
		htmlResponseIssue.Id():          htmlResponseIssue,
		transpileFailedIssue.Id():       transpileFailedIssue,
		moduleExecutionFailedIssue.Id(): moduleExecutionFailedIssue,
		contractViolationIssue.Id():     contractViolationIssue,
		importCycleIssue.Id():           importCycleIssue,
		moduleNotPrefetchedIssue.Id():   moduleNotPrefetchedIssue,
		resolutionDegradedIssue.Id():    resolutionDegradedIssue,
		executorUnavailableIssue.Id():   executorUnavailableIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		devPeerStartFailedIssue.Id():    devPeerStartFailedIssue,
	}
)

// Values returns every issue ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}

// names are the stable slugs used on the command line.
var names = map[string]Id{
	"hook-fetch-failed":       HookFetchFailedId,
	"html-response":           HTMLResponseId,
	"transpile-failed":        TranspileFailedId,
	"module-execution-failed": ModuleExecutionFailedId,
	"contract-violation":      ContractViolationId,
	"import-cycle":            ImportCycleId,
	"module-not-prefetched":   ModuleNotPrefetchedId,
	"resolution-degraded":     ResolutionDegradedId,
	"executor-unavailable":    ExecutorUnavailableId,
	"config-load-failed":      ConfigLoadFailedId,
	"dev-peer-start-failed":   DevPeerStartFailedId,
}

// Name returns the slug of the issue.
func (i *Issue) Name() string {
	for name, id := range names {
		if id == i.id {
			return name
		}
	}
	return ""
}

// Lookup finds an issue by slug or numeric id.
func Lookup(nameOrID string) *Issue {
	nameOrID = strings.ToLower(strings.TrimSpace(nameOrID))
	if id, ok := names[nameOrID]; ok {
		return issues[id]
	}
	if n, err := strconv.Atoi(nameOrID); err == nil {
		return issues[Id(n)]
	}
	return nil
}
