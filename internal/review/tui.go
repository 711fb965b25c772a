// Package review is the operator's moderation surface: a terminal browser
// over recently persisted postings with activate/deactivate and retract
// actions.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/getjobwire/jobwire/internal/model"
)

// Retractor deletes an already-published channel message.
type Retractor interface {
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// Lines per posting in the list view (title + subtitle + blank separator).
const postingItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	inactiveTagStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("203"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))
)

// activeToggledMsg is sent when an async activate/deactivate completes.
type activeToggledMsg struct {
	id     int64
	active bool
	err    error
}

// retractedMsg is sent when an async message retraction completes.
type retractedMsg struct {
	id  int64
	err error
}

type reviewModel struct {
	postings []model.JobPosting
	cursor   int
	width    int
	height   int
	ready    bool

	view           viewState
	listViewport   viewport.Model
	detailViewport viewport.Model
	actionError    string

	jobs         model.JobStore
	retractor    Retractor
	publicChatID int64
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case activeToggledMsg:
		if msg.err != nil {
			m.actionError = fmt.Sprintf("toggle failed: %v", msg.err)
		} else {
			m.actionError = ""
			m.setActiveInList(msg.id, msg.active)
		}
		m.refreshContent()
		return m, nil

	case retractedMsg:
		if msg.err != nil {
			m.actionError = fmt.Sprintf("retract failed: %v", msg.err)
		} else {
			m.actionError = ""
			m.setActiveInList(msg.id, false)
		}
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
		m.refreshContent()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.refreshContent()
		return m, nil
	case "a":
		return m, m.toggleActiveCmd()
	case "enter":
		return m.openDetailView()
	}

	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	case "a":
		return m, m.toggleActiveCmd()
	case "x":
		return m, m.retractCmd()
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) toggleActiveCmd() tea.Cmd {
	if len(m.postings) == 0 {
		return nil
	}
	p := m.postings[m.cursor]
	jobs := m.jobs
	active := !p.IsActive
	return func() tea.Msg {
		err := jobs.SetActive(context.Background(), p.ID, active)
		return activeToggledMsg{id: p.ID, active: active, err: err}
	}
}

// retractCmd deletes the posting's channel message and deactivates it.
// Postings that never made it to the channel are only deactivated.
func (m reviewModel) retractCmd() tea.Cmd {
	if len(m.postings) == 0 {
		return nil
	}
	p := m.postings[m.cursor]
	jobs := m.jobs
	retractor := m.retractor
	chatID := m.publicChatID
	return func() tea.Msg {
		ctx := context.Background()
		if p.TelegramMessageID != nil && retractor != nil {
			if err := retractor.DeleteMessage(ctx, chatID, *p.TelegramMessageID); err != nil {
				return retractedMsg{id: p.ID, err: err}
			}
		}
		err := jobs.SetActive(ctx, p.ID, false)
		return retractedMsg{id: p.ID, err: err}
	}
}

func (m *reviewModel) setActiveInList(id int64, active bool) {
	for i := range m.postings {
		if m.postings[i].ID == id {
			m.postings[i].IsActive = active
			break
		}
	}
}

func (m *reviewModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.postings)-1, 0))
	m.ensureCursorVisible()
}

func (m *reviewModel) ensureCursorVisible() {
	cursorTop := m.cursor * postingItemHeight
	cursorBottom := cursorTop + postingItemHeight - 1

	if cursorTop < m.listViewport.YOffset {
		m.listViewport.SetYOffset(cursorTop)
	} else if cursorBottom >= m.listViewport.YOffset+m.listViewport.Height {
		m.listViewport.SetYOffset(cursorBottom - m.listViewport.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	if len(m.postings) == 0 {
		return m, nil
	}
	m.view = viewDetail
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) recalcLayout() {
	// Header (1) + border top/bottom (2) + status bar (1).
	height := max(m.height-4, 5)
	width := max(m.width-2, 20)

	if !m.ready {
		m.listViewport = viewport.New(width, height)
		m.ready = true
	} else {
		m.listViewport.Width = width
		m.listViewport.Height = height
	}
	m.refreshContent()
}

func (m *reviewModel) refreshContent() {
	m.listViewport.SetContent(renderPostings(m.postings, m.cursor))
	if m.view == viewDetail {
		m.detailViewport.SetContent(m.renderDetail())
	}
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m reviewModel) viewList() string {
	header := headerStyle.Render(fmt.Sprintf(" Recent Postings (%d)", len(m.postings)))
	pane := borderStyle.Width(m.listViewport.Width).Render(m.listViewport.View())

	statusText := " ↑/↓ cursor  Enter detail  a toggle active  q quit"
	if m.actionError != "" {
		statusText = " " + errorStyle.Render(m.actionError)
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + pane + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Posting Details")
	content := borderStyle.Width(m.width - 2).Render(m.detailViewport.View())

	statusText := " a toggle active  x retract  esc back  ↑/↓ scroll  q quit"
	if m.actionError != "" {
		statusText = " " + errorStyle.Render(m.actionError)
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	if len(m.postings) == 0 {
		return "No postings."
	}
	p := m.postings[m.cursor]
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Title", p.Title)
	addField("Company", p.Company)
	addField("Location", p.Location)
	addField("Salary", p.Salary)
	addField("Apply URL", p.ApplyURL)
	addField("Batch", strings.Join(p.Batch, ", "))
	addField("Tags", strings.Join(p.Tags, ", "))
	addField("Job Type", p.JobType)
	addField("Role Type", p.RoleType)
	addField("Active", fmt.Sprintf("%v", p.IsActive))
	addField("Views", fmt.Sprintf("%d", p.Views))
	addField("Clicks", fmt.Sprintf("%d", p.Clicks))
	addField("Reports", fmt.Sprintf("%d", p.ReportCount))
	if p.TelegramMessageID != nil {
		addField("Message ID", fmt.Sprintf("%d", *p.TelegramMessageID))
	}

	if p.Description != "" {
		b.WriteByte('\n')
		b.WriteString(p.Description)
		b.WriteByte('\n')
	}

	return b.String()
}

func renderPostings(postings []model.JobPosting, cursor int) string {
	if len(postings) == 0 {
		return "No postings yet."
	}

	var b strings.Builder
	for i, p := range postings {
		title := p.Title
		if !p.IsActive {
			title += inactiveTagStyle.Render("  [inactive]")
		}
		subtitle := fmt.Sprintf("  %s · %s · %s", p.Company, p.Location, p.CreatedAt.Format("Jan 2 15:04"))

		if i == cursor {
			b.WriteString(selectedTitleStyle.Render("▸ " + title))
			b.WriteByte('\n')
			b.WriteString(selectedSubtitleStyle.Render(subtitle))
		} else {
			b.WriteString(titleStyle.Render("  " + title))
			b.WriteByte('\n')
			b.WriteString(subtitleStyle.Render(subtitle))
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run loads recent postings and starts the browser.
func Run(ctx context.Context, jobs model.JobStore, retractor Retractor, publicChatID int64, limit int) error {
	postings, err := jobs.ListRecent(ctx, limit)
	if err != nil {
		return fmt.Errorf("load postings: %w", err)
	}

	m := reviewModel{
		postings:     postings,
		jobs:         jobs,
		retractor:    retractor,
		publicChatID: publicChatID,
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("review ui: %w", err)
	}
	return nil
}
