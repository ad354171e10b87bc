package tui

import (
	"context"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"diaglog/src/contracts"
	"diaglog/src/ranking"
)

// Status is the loading state of the main model.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

// ReportMsg delivers a finished analysis to the model.
type ReportMsg struct {
	Report *contracts.Report
	Err    error
}

// MainModel is the Bubble Tea model of the report viewer: a ranked bucket
// list on the left and the selected bucket's detail on the right.
type MainModel struct {
	report         *contracts.Report
	items          []Item
	listView       View
	detailViewport viewport.Model
	header         Header
	progress       ProgressModel
	styles         *StyleConfig
	status         Status
	err            error

	width         int
	height        int
	ready         bool
	detailFocused bool
	searchMode    bool
	searchQuery   string
}

// NewMainModel creates a model that waits for a ReportMsg.
func NewMainModel(source string) MainModel {
	styles := DefaultStyles()
	return MainModel{
		listView:       NewView(styles),
		detailViewport: viewport.New(0, 0),
		header:         NewHeaderWithStyles("Analyzing "+source, nil, styles),
		progress:       NewProgressModel(),
		styles:         styles,
		status:         StatusLoading,
	}
}

// NewReportModel creates a model showing report.
func NewReportModel(report *contracts.Report) MainModel {
	m := NewMainModel(report.Source)
	m.setReport(report)
	return m
}

// BuildItems ranks and tiers the report's buckets into list items.
func BuildItems(report *contracts.Report) []Item {
	ranked := ranking.TierBuckets(report.Buckets, report.Conclusion).FlattenByTier()
	items := make([]Item, len(ranked))
	for i, rb := range ranked {
		items[i] = Item{Bucket: rb.Bucket, Tier: rb.Tier, Rank: rb.Rank}
	}
	return items
}

// SessionStatus is the one-line session summary shown in the header.
func SessionStatus(r *contracts.Report) string {
	status := fmt.Sprintf("%s · %s · %s risk · %d buckets",
		r.Source, r.Metadata.Outcome, r.Conclusion.RiskLevel, len(r.Buckets))
	if r.Metadata.VIN != "" {
		status += " · " + r.Metadata.VIN
	}
	if r.Partial {
		status += " · PARTIAL"
	}
	return status
}

func (m *MainModel) setReport(report *contracts.Report) {
	m.report = report
	m.items = BuildItems(report)
	m.status = StatusReady

	seen := make(map[string]bool)
	var kinds []string
	for _, it := range m.items {
		if k := string(it.Bucket.Kind); !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	sort.Strings(kinds)
	m.header.SetStatus(SessionStatus(report), kinds)
	m.applyFilter()
}

// Init initializes the model. Required by tea.Model interface.
func (m MainModel) Init() tea.Cmd {
	if m.status == StatusLoading {
		return SpinnerTick()
	}
	return nil
}

// Update handles messages and updates the model state.
func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeComponents()
		return m, nil

	case ProgressMsg, SpinnerTickMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd

	case ReportMsg:
		if msg.Report == nil {
			m.status = StatusError
			m.err = msg.Err
			return m, nil
		}
		m.setReport(msg.Report)
		if m.ready {
			m.resizeComponents()
		}
		return m, nil

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}
		if m.detailFocused {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m MainModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searchMode = false
		m.searchQuery = ""
	case tea.KeyEnter:
		m.searchMode = false
	case tea.KeyBackspace:
		if r := []rune(m.searchQuery); len(r) > 0 {
			m.searchQuery = string(r[:len(r)-1])
		}
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyRunes, tea.KeySpace:
		m.searchQuery += string(msg.Runes)
	default:
		return m, nil
	}
	m.header.SetSearch(m.searchQuery, m.searchMode)
	m.applyFilter()
	return m, nil
}

func (m MainModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "enter":
		m.detailFocused = false
		return m, nil
	}
	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m MainModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searchMode = true
		m.header.SetSearch(m.searchQuery, true)
		return m, nil
	case "enter":
		if _, ok := m.listView.GetSelectedItem(); ok {
			m.detailFocused = true
		}
		return m, nil
	case "tab":
		m.header.CycleFilter()
		m.applyFilter()
		return m, nil
	case "0", "1", "2", "3":
		m.header.SetTierFilter(int(msg.String()[0] - '0'))
		m.applyFilter()
		return m, nil
	}

	before, _ := m.listView.GetSelectedItem()
	var cmd tea.Cmd
	m.listView, cmd = m.listView.Update(msg)
	if after, ok := m.listView.GetSelectedItem(); ok && after.Bucket.ID != before.Bucket.ID {
		m.updateDetailContent(after)
	}
	return m, cmd
}

// Run shows report in a full-screen viewer until the user quits.
func Run(report *contracts.Report) error {
	_, err := tea.NewProgram(NewReportModel(report), tea.WithAltScreen()).Run()
	return err
}

// RunAnalysis shows the loading screen while analyze runs, then the report.
// The analysis is cancelled when the user quits early.
func RunAnalysis(ctx context.Context, source string, analyze func(context.Context) (*contracts.Report, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewMainModel(source), tea.WithAltScreen(), tea.WithContext(ctx))
	go func() {
		p.Send(ProgressMsg{Stage: "Analyzing " + source})
		report, err := analyze(ctx)
		p.Send(ProgressMsg{Stage: "complete"})
		p.Send(ReportMsg{Report: report, Err: err})
	}()

	_, err := p.Run()
	return err
}
