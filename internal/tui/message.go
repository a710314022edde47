package tui

import tea "github.com/charmbracelet/bubbletea"

// MsgKind enumerates the message types the dashboard handles, beyond the
// bare Snapshot values a poll tick produces directly.
type MsgKind int

// Msg is the Elm-style message union for everything that isn't a Snapshot.
type Msg struct {
	kind MsgKind
	data any
}

var _ tea.Msg = Msg{}

const (
	MsgCancelled MsgKind = iota
)

func cancelledMsg(requestID string, err error) Msg {
	return Msg{kind: MsgCancelled, data: struct {
		requestID string
		err       error
	}{requestID, err}}
}
