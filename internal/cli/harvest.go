// Package cli contains the interactive terminal UI for harvest runs.
package cli

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/scrape"
	"github.com/inovacc/redditharvest/internal/store"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// HarvestModel represents the state of the harvest TUI
type HarvestModel struct {
	plan      *scrape.Plan
	harvester *scrape.Harvester
	db        store.Store

	summaries []model.RunSummary

	// Progress tracking
	total     int
	current   int
	succeeded int
	failed    int
	posts     int
	comments  int
	images    int

	// Active operations (one per worker)
	active map[string]activeHarvest
	mu     sync.Mutex

	// Recent completed subreddits
	activity []activityItem

	// UI components
	spinner  spinner.Model
	progress progress.Model

	// State
	done bool
	err  error

	// Channels for worker coordination
	workQueue chan string
	events    chan tea.Msg
	cancel    context.CancelFunc
	ctx       context.Context
}

type activeHarvest struct {
	subreddit string
	lastTitle string
	posts     int
	startTime time.Time
}

type activityItem struct {
	subreddit string
	status    string // "success" or "error"
	posts     int
	comments  int
	images    int
	message   string
	duration  time.Duration
}

// Message types
type harvestStartMsg struct {
	subreddit string
}

type harvestPostMsg struct {
	event scrape.Event
}

type harvestResultMsg struct {
	summary model.RunSummary
}

type harvestDoneMsg struct{}

// NewHarvestModel creates a new harvest TUI model
func NewHarvestModel(ctx context.Context, plan *scrape.Plan, harvester *scrape.Harvester, db store.Store) *HarvestModel {
	ctx, cancel := context.WithCancel(ctx)

	m := &HarvestModel{
		plan:      plan,
		harvester: harvester,
		db:        db,
		total:     len(plan.Subreddits),
		workQueue: make(chan string, len(plan.Subreddits)),
		events:    make(chan tea.Msg, len(plan.Subreddits)*4),
		active:    make(map[string]activeHarvest),
		activity:  make([]activityItem, 0, 10),
		summaries: make([]model.RunSummary, 0, len(plan.Subreddits)),
		ctx:       ctx,
		cancel:    cancel,
	}

	harvester.OnEvent = func(ev scrape.Event) {
		select {
		case m.events <- harvestPostMsg{event: ev}:
		default:
			// Never block a worker on a slow terminal.
		}
	}

	m.spinner = spinner.New()
	m.spinner.Spinner = spinner.Dot
	m.spinner.Style = spinnerStyle

	m.progress = progress.New(progress.WithDefaultGradient())

	return m
}

// Summaries returns the per-subreddit results collected so far.
func (m *HarvestModel) Summaries() []model.RunSummary {
	return m.summaries
}

// Err returns the cancellation error, if the run was aborted.
func (m *HarvestModel) Err() error {
	return m.err
}

func (m *HarvestModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startWorkers(),
		m.queueWork(),
		m.waitForEvent(),
	)
}

func (m *HarvestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.err = context.Canceled

			return m, tea.Quit
		}

	case harvestStartMsg:
		m.mu.Lock()
		m.active[msg.subreddit] = activeHarvest{
			subreddit: msg.subreddit,
			startTime: time.Now(),
		}
		m.mu.Unlock()

		return m, m.waitForEvent()

	case harvestPostMsg:
		m.mu.Lock()

		if op, ok := m.active[msg.event.Subreddit]; ok {
			op.lastTitle = msg.event.Title
			op.posts = msg.event.Current
			m.active[msg.event.Subreddit] = op
		}

		m.mu.Unlock()

		return m, m.waitForEvent()

	case harvestResultMsg:
		m.mu.Lock()
		delete(m.active, msg.summary.Subreddit)
		m.mu.Unlock()

		m.summaries = append(m.summaries, msg.summary)
		m.current++

		if msg.summary.Err == "" {
			m.succeeded++
			m.posts += msg.summary.Posts
			m.comments += msg.summary.Comments
			m.images += msg.summary.Images
		} else {
			m.failed++
		}

		m.addActivity(msg.summary)

		if m.current >= m.total {
			m.done = true

			return m, tea.Quit
		}

		return m, m.waitForEvent()

	case harvestDoneMsg:
		m.done = true

		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd

		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m *HarvestModel) View() string {
	if m.done {
		return m.renderComplete()
	}

	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(boldStyle.Render("Harvesting subreddits"))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d total)", m.total)))
	b.WriteString("\n\n")

	b.WriteString(boldStyle.Render("Status:"))
	b.WriteString("\n")
	b.WriteString(successStyle.Render(fmt.Sprintf("  Done:     %d\n", m.succeeded)))
	b.WriteString(errorStyle.Render(fmt.Sprintf("  Failed:   %d\n", m.failed)))
	b.WriteString(infoStyle.Render(fmt.Sprintf("  Posts:    %d\n", m.posts)))
	b.WriteString(infoStyle.Render(fmt.Sprintf("  Comments: %d\n", m.comments)))
	b.WriteString(warningStyle.Render(fmt.Sprintf("  Images:   %d\n", m.images)))
	b.WriteString("\n")

	pct := float64(m.current) / float64(m.total)
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" %d/%d\n\n", m.current, m.total)))

	m.mu.Lock()

	if len(m.active) > 0 {
		b.WriteString(boldStyle.Render(fmt.Sprintf("Currently harvesting (%d):", len(m.active))))
		b.WriteString("\n")

		for _, op := range m.active {
			line := fmt.Sprintf("  [%s] r/%s", m.spinner.View(), op.subreddit)
			if op.lastTitle != "" {
				title := op.lastTitle
				if len(title) > 50 {
					title = title[:47] + "..."
				}

				line += fmt.Sprintf(" - post %d: %s", op.posts, title)
			}

			b.WriteString(infoStyle.Render(line))
			b.WriteString("\n")
		}

		b.WriteString("\n")
	}

	m.mu.Unlock()

	if len(m.activity) > 0 {
		b.WriteString(boldStyle.Render("Recent activity:"))
		b.WriteString("\n")

		start := max(len(m.activity)-5, 0)

		for _, item := range m.activity[start:] {
			if item.status == "success" {
				b.WriteString(successStyle.Render(fmt.Sprintf("  [OK] r/%s", item.subreddit)))
				b.WriteString(dimStyle.Render(fmt.Sprintf(" - %d posts, %d comments, %d images (%s)\n",
					item.posts, item.comments, item.images, item.duration.Round(time.Second))))

				continue
			}

			message := item.message
			if len(message) > 60 {
				message = message[:57] + "..."
			}

			b.WriteString(errorStyle.Render(fmt.Sprintf("  [FAIL] r/%s", item.subreddit)))
			b.WriteString(dimStyle.Render(fmt.Sprintf(" - %s\n", message)))
		}

		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("Press 'q' to cancel"))
	b.WriteString("\n")

	return b.String()
}

func (m *HarvestModel) renderComplete() string {
	var b strings.Builder

	b.WriteString("\n")

	if m.failed == 0 {
		b.WriteString(successStyle.Render("Harvest complete!"))
	} else {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Harvest finished with %d failed subreddit(s)", m.failed)))
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d posts, %d comments, %d images across %d subreddit(s)\n",
		m.posts, m.comments, m.images, m.succeeded)))
	b.WriteString("\n")

	return b.String()
}

func (m *HarvestModel) addActivity(summary model.RunSummary) {
	item := activityItem{
		subreddit: summary.Subreddit,
		posts:     summary.Posts,
		comments:  summary.Comments,
		images:    summary.Images,
		duration:  summary.Duration,
	}

	if summary.Err == "" {
		item.status = "success"
	} else {
		item.status = "error"
		item.message = summary.Err
	}

	m.activity = append(m.activity, item)
}

// Worker goroutines
func (m *HarvestModel) startWorkers() tea.Cmd {
	return func() tea.Msg {
		var wg sync.WaitGroup

		parallel := m.plan.Parallel
		if parallel <= 0 {
			parallel = 1
		}

		for i := 0; i < parallel; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case sub, ok := <-m.workQueue:
						if !ok {
							return
						}

						m.events <- harvestStartMsg{subreddit: sub}
						m.events <- harvestResultMsg{summary: m.harvestOne(sub)}
					case <-m.ctx.Done():
						return
					}
				}
			}()
		}

		go func() {
			wg.Wait()
			close(m.events)
		}()

		return nil
	}
}

func (m *HarvestModel) queueWork() tea.Cmd {
	return func() tea.Msg {
		for _, sub := range m.plan.Subreddits {
			m.workQueue <- sub
		}

		close(m.workQueue)

		return nil
	}
}

func (m *HarvestModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.events
		if !ok {
			return harvestDoneMsg{}
		}

		return msg
	}
}

func (m *HarvestModel) harvestOne(sub string) model.RunSummary {
	summary := model.RunSummary{
		Subreddit: sub,
		StartedAt: time.Now(),
	}

	res, err := m.harvester.HarvestSubreddit(m.ctx, sub)
	if err != nil {
		summary.Err = err.Error()
		summary.Duration = time.Since(summary.StartedAt)
	} else {
		summary.Posts = res.Posts
		summary.Comments = res.Comments
		summary.Images = res.Images
		summary.Skipped = res.Skipped
		summary.Duration = res.Duration
	}

	if m.db != nil {
		_ = m.db.SaveRun(&summary)

		if summary.Err == "" {
			_ = m.db.TouchTarget(sub, summary.StartedAt)
		}
	}

	return summary
}
