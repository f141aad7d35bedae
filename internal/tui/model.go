package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"multirag/internal/domain"
)

// QAPort is the TUI-facing subset of the QA service.
type QAPort interface {
	Ask(ctx context.Context, req domain.QARequest) (domain.QAResult, error)
}

type answerMsg struct {
	question string
	result   domain.QAResult
	err      error
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service   QAPort
	path      string
	languages []string
	inLang    int
	outLang   int
	timeout   time.Duration

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	busy     bool

	result    *domain.QAResult
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a TUI asking questions about the document at path.
// languages is the selectable language list; English is preselected when present.
func New(service QAPort, path string, languages []string, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := Model{
		service:   service,
		path:      path,
		languages: languages,
		timeout:   timeout,
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		status:    "Tab: question language  Shift+Tab: answer language  Up/Down: sources",
	}
	for i, l := range languages {
		if l == domain.PivotLanguage {
			m.inLang, m.outLang = i, i
		}
	}
	return m
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) ask(q string) tea.Cmd {
	req := domain.QARequest{
		Path:           m.path,
		Question:       q,
		InputLanguage:  m.languages[m.inLang],
		OutputLanguage: m.languages[m.outLang],
	}
	service, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		res, err := service.Ask(ctx, req)
		return answerMsg{question: q, result: res, err: err}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2                                    // header + languages
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case answerMsg:
		m.busy = false
		m.lastQuery = msg.result.EnglishQuestion
		if m.lastQuery == "" {
			m.lastQuery = msg.question
		}
		if msg.err != nil {
			m.status = "Error: " + userMessage(msg.err)
			m.result = nil
		} else {
			res := msg.result
			m.result = &res
			m.cursor = 0
			m.status = fmt.Sprintf("Answered %q", msg.question)
		}
		m.viewport.SetContent(m.renderResult())
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.busy {
				m.busy = true
				m.status = "Thinking..."
				return m, tea.Batch(m.spinner.Tick, m.ask(q))
			}
		case "tab":
			if len(m.languages) > 0 {
				m.inLang = (m.inLang + 1) % len(m.languages)
			}
			return m, nil
		case "shift+tab":
			if len(m.languages) > 0 {
				m.outLang = (m.outLang + 1) % len(m.languages)
			}
			return m, nil
		case "down":
			if n := m.sources(); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		case "up":
			if n := m.sources(); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) sources() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Sources)
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Multilingual RAG  " + m.path)
	langs := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.languageLine())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + langs + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) languageLine() string {
	if len(m.languages) == 0 {
		return ""
	}
	return fmt.Sprintf("question: %s  answer: %s", m.languages[m.inLang], m.languages[m.outLang])
}

func (m Model) renderResult() string {
	if m.result == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(answerStyle.Render(m.result.Answer))
	if len(m.result.Sources) == 0 {
		return b.String()
	}
	r := m.result.Sources[m.cursor]
	fmt.Fprintf(&b, "\n\nSource %d/%d  score=%.3f", m.cursor+1, len(m.result.Sources), r.Score)
	if sp := r.Chunk.Span; sp != nil && sp.StartPage > 0 {
		if sp.StartPage == sp.EndPage {
			fmt.Fprintf(&b, "  page %d", sp.StartPage)
		} else {
			fmt.Fprintf(&b, "  pages %d-%d", sp.StartPage, sp.EndPage)
		}
	}
	b.WriteString("\n\n")
	b.WriteString(highlightBestSentence(r.Chunk.Text, m.lastQuery))
	return b.String()
}

func userMessage(err error) string {
	if f, ok := domain.AsFailure(err); ok {
		return f.UserMessage()
	}
	return err.Error()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Bold(true)
	unicodeWordRe  = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}]+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
