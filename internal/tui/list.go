package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = jobItem{}

// jobItem wraps JobView to implement list.Item.
type jobItem struct {
	view JobView
}

func (i jobItem) FilterValue() string { return i.view.Job.RequestID }

func (i jobItem) Title() string {
	input := i.view.Job.RawInput
	if input == "" && len(i.view.Job.Targets) > 0 {
		input = i.view.Job.Targets[0].Title
	}
	return fmt.Sprintf("%s  %s", i.view.Job.RequestID, input)
}

func (i jobItem) Description() string {
	rec := i.view.Record
	status := string(rec.Phase)
	if rec.Status != "" {
		status = fmt.Sprintf("%s: %s", status, rec.Status)
	}
	return fmt.Sprintf("%d%%  %d/%d items  %s", rec.Percent, rec.CompletedItems, rec.TotalItems, status)
}
