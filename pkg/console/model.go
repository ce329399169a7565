// Package console is an interactive terminal front end for the engine.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rhuss/lokal/pkg/api"
	"github.com/rhuss/lokal/pkg/engine"
	"github.com/rhuss/lokal/pkg/retrieval"
)

// Processor is the console-facing subset of the engine.
type Processor interface {
	Process(ctx context.Context, req *api.Request) *api.Response
}

// modes are the request kinds the console cycles through with Tab.
var modes = []api.Kind{api.KindEnhanced, api.KindRAGQuery, api.KindGenerate}

// responseMsg carries a finished request back into the update loop.
type responseMsg struct {
	query string
	resp  *api.Response
}

// Model is the Bubble Tea model for the console.
type Model struct {
	ctx       context.Context
	engine    Processor
	input     textinput.Model
	viewport  viewport.Model
	mode      int
	summary   string
	status    string
	busy      bool
	ready     bool
	lastQuery string
	answer    string
	sources   []retrieval.Source
	cursor    int
}

// New creates a console model. ctx bounds every request the console sends.
func New(ctx context.Context, p Processor, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		engine:   p,
		input:    ti,
		viewport: viewport.New(0, 0),
		summary:  summary,
		status:   "Ready. Tab switches mode, Ctrl+C quits.",
	}
}

// Run starts the console on the terminal and blocks until the user quits
// or ctx is cancelled.
func Run(ctx context.Context, p Processor, summary string) error {
	_, err := tea.NewProgram(New(ctx, p, summary), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Mode returns the request kind Enter currently sends.
func (m Model) Mode() api.Kind { return modes[m.mode] }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and response events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case responseMsg:
		m.busy = false
		m.apply(msg)
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "tab":
			m.mode = (m.mode + 1) % len(modes)
			m.status = fmt.Sprintf("Mode: %s", m.Mode())
			return m, nil
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Running %s...", m.Mode())
			m.input.SetValue("")
			return m, m.send(q)
		case "down":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor + 1) % len(m.sources)
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case "up":
			if len(m.sources) > 0 {
				m.cursor = (m.cursor - 1 + len(m.sources)) % len(m.sources)
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send runs the query off the update loop.
func (m Model) send(query string) tea.Cmd {
	req := &api.Request{Kind: m.Mode(), Prompt: query}
	if req.Kind == api.KindEnhanced {
		req.Parameters = map[string]any{"use_rag": true}
	}
	return func() tea.Msg {
		return responseMsg{query: query, resp: m.engine.Process(m.ctx, req)}
	}
}

func (m *Model) apply(msg responseMsg) {
	m.lastQuery = msg.query
	m.answer, m.sources, m.cursor = "", nil, 0

	resp := msg.resp
	if !resp.Success {
		m.status = "Error: " + resp.Error.Error()
		return
	}
	m.status = fmt.Sprintf("%s for %q in %.2fs", m.Mode(), msg.query, resp.ProcessingTime.Seconds())

	switch r := resp.Result.(type) {
	case *engine.Generation:
		m.answer = r.Text
	case *retrieval.Answer:
		m.answer = r.Answer
		m.sources = r.Sources
	case *engine.EnhancedResult:
		m.answer = r.FinalResult
		if s, ok := r.CombinedMetadata["sources"].([]retrieval.Source); ok {
			m.sources = s
		}
	default:
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			m.answer = fmt.Sprint(r)
		} else {
			m.answer = string(b)
		}
	}
}

// View renders the layout and the current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("lokal console") +
		"  " + modeStyle.Render(string(m.Mode()))
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResult() string {
	if m.answer == "" && len(m.sources) == 0 {
		return "No results yet."
	}
	var b strings.Builder
	b.WriteString(m.answer)
	if len(m.sources) > 0 {
		s := m.sources[m.cursor]
		fmt.Fprintf(&b, "\n\nSource %d/%d  %s  score=%.3f\n\n", m.cursor+1, len(m.sources), s.ID, s.Score)
		b.WriteString(highlightBestSentence(s.Content, m.lastQuery))
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	modeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	wordRe         = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasizes the sentence sharing the most words
// with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := tokenSet(query)
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := overlap(qTokens, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == best && len(qTokens) > 0 {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func overlap(query map[string]struct{}, sentence string) int {
	seen := make(map[string]struct{})
	score := 0
	for _, t := range wordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
