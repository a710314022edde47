package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fvitu/offliner/internal/progress"
	"github.com/fvitu/offliner/internal/queue"
)

// ViewState represents the current dashboard view.
type ViewState int

const (
	JobListView ViewState = iota
	DetailView
)

// Model is the dashboard's bubbletea Model.
type Model struct {
	ctx     context.Context
	view    ViewState
	backend queue.Backend
	store   progress.Store

	width, height int

	jobList  list.Model
	jobs     []JobView
	queueLen int64
	health   queue.HealthStatus

	selected *JobView
	err      error

	help help.Model
	keys keyMap
}

// NewModel creates a dashboard Model polling backend and store.
func NewModel(ctx context.Context, backend queue.Backend, store progress.Store) *Model {
	jobList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	jobList.Title = "In-flight jobs"

	return &Model{
		ctx:     ctx,
		view:    JobListView,
		backend: backend,
		store:   store,
		jobList: jobList,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init kicks off the first poll; every subsequent poll is scheduled by
// handleSnapshot once the previous one lands, so polls never pile up behind
// a slow broker.
func (m *Model) Init() tea.Cmd {
	return m.pollOnce()
}

func (m *Model) pollOnce() tea.Cmd {
	return func() tea.Msg {
		return poll(m.ctx, m.backend, m.store)
	}
}

func (m *Model) scheduleNextPoll() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg {
		return poll(m.ctx, m.backend, m.store)
	})
}

// Update handles incoming messages and updates dashboard state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case Snapshot:
		return m.handleSnapshot(msg)
	}

	if appMsg, ok := msg.(Msg); ok && appMsg.kind == MsgCancelled {
		data := appMsg.data.(struct {
			requestID string
			err       error
		})
		m.err = data.err
		return m, m.pollOnce()
	}

	var cmd tea.Cmd
	m.jobList, cmd = m.jobList.Update(msg)
	return m, cmd
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.jobList.SetSize(msg.Width-4, msg.Height-10)
	return m, nil
}

func (m *Model) handleSnapshot(s Snapshot) (tea.Model, tea.Cmd) {
	if s.Err != nil {
		m.err = s.Err
	} else {
		m.err = nil
		m.queueLen = s.QueueLength
		m.health = s.Health
		m.jobs = s.Jobs

		items := make([]list.Item, len(s.Jobs))
		for i, v := range s.Jobs {
			items[i] = jobItem{view: v}
		}
		m.jobList.SetItems(items)
	}
	return m, m.scheduleNextPoll()
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.view {
	case DetailView:
		return m.handleDetailKeys(msg)
	default:
		return m.handleListKeys(msg)
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			v := item.view
			m.selected = &v
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			return m, m.requestCancel(item.view.Job.RequestID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobList, cmd = m.jobList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = JobListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.cancel):
		if m.selected != nil {
			return m, m.requestCancel(m.selected.Job.RequestID)
		}
	}
	return m, nil
}

func (m *Model) requestCancel(requestID string) tea.Cmd {
	return func() tea.Msg {
		err := m.store.RequestCancel(m.ctx, requestID)
		return cancelledMsg(requestID, err)
	}
}

// View renders the dashboard based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case DetailView:
		return m.renderDetail()
	default:
		return m.renderList()
	}
}

func (m *Model) renderList() string {
	status := styles.ok.Render("● broker healthy")
	if !m.health.Healthy {
		detail := m.health.Detail
		if detail == "" {
			detail = "unreachable"
		}
		status = styles.err.Render(fmt.Sprintf("● broker down: %s", detail))
	}

	header := fmt.Sprintf("%s    queue depth: %d", status, m.queueLen)
	if m.err != nil {
		header = fmt.Sprintf("%s\n%s", header, styles.warn.Render(m.err.Error()))
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n\n%s\n\n%s", header, m.jobList.View(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		m.view = JobListView
		return m.renderList()
	}

	job := m.selected.Job
	rec := m.selected.Record

	title := styles.title.Render(fmt.Sprintf("Job %s", job.RequestID))
	body := fmt.Sprintf(
		"input:     %s\nplaylist:  %v\nphase:     %s\nstatus:    %s\ndetail:    %s\nprogress:  %d%% (%d/%d items)\nspeed:     %s\neta:       %s\nfile:      %s\ncancelled: %v",
		job.RawInput, job.PlaylistMode, rec.Phase, rec.Status, rec.Detail,
		rec.Percent, rec.CompletedItems, rec.TotalItems, rec.Speed, rec.ETA,
		rec.FilePath, rec.CancelRequested,
	)

	helpKeys := []key.Binding{m.keys.cancel, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, helpView)
}
