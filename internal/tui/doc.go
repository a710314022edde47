// Package tui implements an operator dashboard using bubbletea's Elm
// architecture.
//
// It shows live broker queue depth, broker health, and in-flight jobs by
// polling the Task Broker and Progress Store on an interval. It is launched
// via `offlinerctl tui` and is ops tooling, not the end-user front-end.
//
// The (view) [Model] implements bubbletea's standard Init/Update/View
// pattern, receiving a snapshot via the Msg union type on each poll tick.
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package tui
