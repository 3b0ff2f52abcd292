// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/invowk/relayhook/internal/hookctx"
	"github.com/invowk/relayhook/internal/loader"
)

// timeline collects diagnostics events of one session.
type timeline struct {
	mu     sync.Mutex
	events []loader.Event
}

func (t *timeline) record(ev loader.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, ev)
}

// take returns the events recorded so far and starts a new timeline.
func (t *timeline) take() []loader.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.events
	t.events = nil
	return out
}

// renderTimeline renders events as a table, one row per event.
func renderTimeline(events []loader.Event) string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		step := ev.Step
		if ev.Kind == loader.KindPhase {
			step = "enter"
		}
		module := ev.Key.Path
		if ev.Key.IsZero() {
			module = "-"
		}
		rows = append(rows, []string{string(ev.Phase), module, step, formatDetails(ev)})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtitleStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		}).
		Headers("PHASE", "MODULE", "STEP", "DETAILS").
		Rows(rows...).
		String()
}

// formatDetails renders event details as sorted key=value pairs.
func formatDetails(ev loader.Event) string {
	parts := make([]string, 0, len(ev.Details)+1)
	for _, k := range slices.Sorted(maps.Keys(ev.Details)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ev.Details[k]))
	}
	if ev.Err != nil {
		parts = append(parts, "err="+ev.Err.Error())
	}
	return strings.Join(parts, " ")
}

// renderValue renders a hook result. Elements become a tree; other values are
// printed as indented JSON when they are structured.
func renderValue(v any) string {
	switch v := v.(type) {
	case nil:
		return SubtitleStyle.Render("(no result)")
	case *hookctx.Element:
		return elementTree(v).String()
	case string:
		return v
	case []any, map[string]any:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}

func elementTree(el *hookctx.Element) *tree.Tree {
	t := tree.Root(elementLabel(el)).
		EnumeratorStyle(SubtitleStyle).
		Enumerator(tree.RoundedEnumerator)
	for _, child := range el.Children {
		switch c := child.(type) {
		case *hookctx.Element:
			t.Child(elementTree(c))
		case nil:
		default:
			t.Child(fmt.Sprint(c))
		}
	}
	return t
}

func elementLabel(el *hookctx.Element) string {
	label := elementStyle.Render(el.Type)
	if len(el.Props) == 0 {
		return label
	}
	props := make([]string, 0, len(el.Props))
	for _, k := range slices.Sorted(maps.Keys(el.Props)) {
		props = append(props, fmt.Sprintf("%s=%q", k, fmt.Sprint(el.Props[k])))
	}
	return label + " " + propStyle.Render(strings.Join(props, " "))
}
