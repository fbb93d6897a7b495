package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/opendelta/opendelta/internal/config"
	"github.com/opendelta/opendelta/internal/llm"
	"github.com/opendelta/opendelta/internal/session"
	"github.com/opendelta/opendelta/internal/stream"
)

// streamEventMsg delivers one decoded event into the update loop.
type streamEventMsg struct {
	// Event is the decoded stream event.
	Event stream.Event
}

// streamDoneMsg signals that the streaming request finished.
type streamDoneMsg struct {
	// Err is the transport error, if the request failed.
	Err error
}

// tuiMessage is a rendered chat entry.
type tuiMessage struct {
	// Role is user, assistant, or system.
	Role string
	// Content is the message text.
	Content string
}

// tuiModel is the bubbletea model for interactive sessions.
type tuiModel struct {
	// opts carries the CLI flags.
	opts *options
	// client talks to the gateway.
	client *llm.Client
	// store persists transcripts when saving is enabled.
	store *session.Store
	// sessionID identifies the transcript.
	sessionID string
	// model is the resolved model id.
	model string
	// history is the conversation sent upstream.
	history []llm.Message
	// chatMessages are the finished entries shown in the answer pane.
	chatMessages []tuiMessage
	// answerView shows the conversation and the in-flight answer.
	answerView viewport.Model
	// reasoningView shows reasoning text for the current turn.
	reasoningView viewport.Model
	// input is the prompt entry field.
	input textarea.Model
	// markdownRenderer renders finished assistant turns.
	markdownRenderer *glamour.TermRenderer
	// inputHistory stores previously submitted prompts.
	inputHistory []string
	// historyIndex tracks the history navigation position.
	historyIndex int
	// historyDraft preserves unsent input while navigating history.
	historyDraft string
	// width and height are the current terminal dimensions.
	width  int
	height int
	// statusText is the transient footer message.
	statusText string
	// activePane names the focused pane.
	activePane string
	// showReasoning toggles the reasoning pane.
	showReasoning bool
	// answerAutoScroll keeps the answer pane pinned to the bottom.
	answerAutoScroll bool
	// reasoningAutoScroll keeps the reasoning pane pinned to the bottom.
	reasoningAutoScroll bool
	// running indicates an in-flight request.
	running bool
	// answerBuffer accumulates streamed answer text.
	answerBuffer strings.Builder
	// reasoningBuffer accumulates streamed reasoning text.
	reasoningBuffer strings.Builder
	// lastUsage is the usage reported by the most recent completion.
	lastUsage stream.Usage
	// streamCh delivers stream messages into the update loop.
	streamCh chan tea.Msg
	// cancel cancels the current request when present.
	cancel context.CancelFunc
	// quitting indicates a user-requested exit.
	quitting bool
}

// runInteractiveTUI starts the full-screen terminal UI for interactive sessions.
func runInteractiveTUI(opts *options, cfg *config.Config, client *llm.Client) error {
	if !term.IsTerminal(0) || !term.IsTerminal(1) {
		return errors.New("interactive mode requires a TTY")
	}
	var store *session.Store
	if opts.Save {
		var err error
		store, err = session.NewStore()
		if err != nil {
			return err
		}
	}
	modelState := newTUIModel(opts, cfg, client, store)
	program := tea.NewProgram(modelState, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// newTUIModel constructs the initial TUI model state.
func newTUIModel(opts *options, cfg *config.Config, client *llm.Client, store *session.Store) *tuiModel {
	input := textarea.New()
	input.Placeholder = "Type a message..."
	input.Focus()
	input.CharLimit = 0
	input.Prompt = "> "
	input.SetHeight(3)
	input.SetWidth(20)

	answerView := viewport.New(20, 10)
	reasoningView := viewport.New(20, 10)
	reasoningView.SetContent("No reasoning yet.")

	var renderer *glamour.TermRenderer
	if glam, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
		renderer = glam
	}

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	var history []llm.Message
	if opts.SystemPrompt != "" {
		history = append(history, llm.Message{Role: "system", Content: opts.SystemPrompt})
	}

	modelState := &tuiModel{
		opts:                opts,
		client:              client,
		store:               store,
		sessionID:           sessionID,
		model:               cfg.ResolveModel(opts.Model),
		history:             history,
		answerView:          answerView,
		reasoningView:       reasoningView,
		input:               input,
		markdownRenderer:    renderer,
		statusText:          "Enter: send | Alt+Enter: newline | Ctrl+R: reasoning | Tab: panes | Ctrl+C: cancel | Ctrl+Q: quit",
		activePane:          "input",
		answerAutoScroll:    true,
		reasoningAutoScroll: true,
	}
	modelState.historyIndex = len(modelState.inputHistory)
	return modelState
}

// Init starts the blinking cursor for the input field.
func (m *tuiModel) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles UI events and streaming updates.
func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applyWindowSize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case streamEventMsg:
		m.applyEvent(typed.Event)
		return m, m.listenStream()
	case streamDoneMsg:
		m.finishStream(typed.Err)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the full UI layout.
func (m *tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}
	header := m.renderHeader()
	body := m.renderBody()
	input := m.renderInput()
	status := m.renderStatus()
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, status)
}

// handleKey routes keyboard input and command submission.
func (m *tuiModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "ctrl+c":
		if m.running {
			m.cancelRun("Cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit
	case "ctrl+q":
		m.quitting = true
		return m, tea.Quit
	case "ctrl+r":
		m.toggleReasoning()
		return m, nil
	case "tab":
		m.cyclePane(1)
		return m, nil
	case "shift+tab":
		m.cyclePane(-1)
		return m, nil
	case "esc":
		m.setActivePane("input")
		return m, nil
	case "pgup":
		m.scrollActivePane(-10)
		return m, nil
	case "pgdown":
		m.scrollActivePane(10)
		return m, nil
	case "home":
		m.gotoActivePaneTop()
		return m, nil
	case "end":
		m.gotoActivePaneBottom()
		return m, nil
	case "ctrl+p":
		if m.activePane == "input" {
			m.cycleInputHistory(-1)
			return m, nil
		}
	case "ctrl+n":
		if m.activePane == "input" {
			m.cycleInputHistory(1)
			return m, nil
		}
	}

	if key.Type == tea.KeyEnter {
		if key.Alt {
			m.input.InsertString("\n")
			return m, nil
		}
		return m.submitInput()
	}

	if key.String() == "ctrl+j" {
		m.input.InsertString("\n")
		return m, nil
	}

	if m.activePane != "input" {
		switch key.String() {
		case "up", "left":
			m.scrollActivePane(-1)
			return m, nil
		case "down", "right":
			m.scrollActivePane(1)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

// submitInput sends the current input as a new user message.
func (m *tuiModel) submitInput() (tea.Model, tea.Cmd) {
	if m.running {
		m.statusText = "Wait for the current response or cancel with Ctrl+C."
		return m, nil
	}
	value := strings.TrimSpace(m.input.Value())
	if value == "" {
		return m, nil
	}
	m.input.SetValue("")
	m.statusText = "Thinking..."
	m.appendInputHistory(value)

	m.chatMessages = append(m.chatMessages, tuiMessage{Role: "user", Content: value})
	m.history = append(m.history, llm.Message{Role: "user", Content: value})
	m.running = true
	m.answerBuffer.Reset()
	m.reasoningBuffer.Reset()
	m.reasoningView.SetContent("No reasoning yet.")
	m.refreshAnswer()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.streamCh = make(chan tea.Msg, 128)

	cmd := m.startStream(ctx)
	return m, tea.Batch(cmd, m.listenStream())
}

// startStream launches the request and feeds decoded events into the channel.
func (m *tuiModel) startStream(ctx context.Context) tea.Cmd {
	req := &llm.ChatRequest{
		Model:     m.model,
		Messages:  append([]llm.Message(nil), m.history...),
		MaxTokens: m.opts.MaxTokens,
	}
	client := m.client
	streamCh := m.streamCh

	return func() tea.Msg {
		err := client.ChatStream(ctx, req, func(event stream.Event) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case streamCh <- streamEventMsg{Event: event}:
				return nil
			}
		})
		streamCh <- streamDoneMsg{Err: err}
		close(streamCh)
		return nil
	}
}

// listenStream waits for the next streaming message.
func (m *tuiModel) listenStream() tea.Cmd {
	if m.streamCh == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-m.streamCh
		if !ok {
			return nil
		}
		return msg
	}
}

// applyEvent folds one decoded event into the UI state.
func (m *tuiModel) applyEvent(event stream.Event) {
	switch typed := event.(type) {
	case stream.TextDelta:
		m.answerBuffer.WriteString(typed.Text)
		m.refreshAnswer()
	case stream.ReasoningDelta:
		m.reasoningBuffer.WriteString(typed.Text)
		if !m.showReasoning {
			m.toggleReasoning()
		}
		m.refreshReasoning()
	case stream.ToolCallDelta:
		if typed.Name != "" {
			m.statusText = fmt.Sprintf("Tool call: %s", typed.Name)
		}
	case stream.Completion:
		m.finishTurn(typed)
	case stream.StreamError:
		m.statusText = fmt.Sprintf("Stream error: %s", typed.Message)
	}
}

// finishTurn records the completed assistant turn.
func (m *tuiModel) finishTurn(completion stream.Completion) {
	answer := m.answerBuffer.String()
	m.chatMessages = append(m.chatMessages, tuiMessage{Role: "assistant", Content: answer})
	m.history = append(m.history, llm.Message{Role: "assistant", Content: answer})
	if completion.HasUsage {
		m.lastUsage = completion.Usage
	}
	for _, call := range completion.ToolCalls {
		summary := fmt.Sprintf("requested tool %s(%s)", call.Name, string(call.Arguments))
		if call.Err != "" {
			summary = fmt.Sprintf("requested tool %s: %s", call.Name, call.Err)
		}
		m.chatMessages = append(m.chatMessages, tuiMessage{Role: "system", Content: summary})
	}
	m.statusText = ""
	if m.store != nil {
		m.persistTurn(completion)
	}
	m.answerBuffer.Reset()
	m.refreshAnswer()
}

// finishStream handles the end of the streaming request.
func (m *tuiModel) finishStream(err error) {
	m.running = false
	m.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		m.statusText = formatRequestError(err).Error()
	}
	m.answerBuffer.Reset()
	m.refreshAnswer()
}

// cancelRun cancels an in-flight request and updates status.
func (m *tuiModel) cancelRun(reason string) {
	if m.cancel != nil {
		m.cancel()
	}
	m.statusText = reason
}

// persistTurn appends the finished turn to the session transcript.
func (m *tuiModel) persistTurn(completion stream.Completion) {
	userText := ""
	if len(m.history) >= 2 {
		userText = m.history[len(m.history)-2].Content
	}
	records := []any{
		transcriptMessage{Type: "message", Role: "user", Text: userText},
		transcriptMessage{
			Type:      "message",
			Role:      "assistant",
			Text:      m.answerBuffer.String(),
			Reasoning: m.reasoningBuffer.String(),
		},
	}
	record := transcriptCompletion{
		Type:         "completion",
		FinishReason: completion.FinishReason,
		ToolCalls:    completion.ToolCalls,
	}
	if completion.HasUsage {
		usage := completion.Usage
		record.Usage = &usage
	}
	records = append(records, record)
	for _, entry := range records {
		if err := m.store.Append(m.sessionID, entry); err != nil {
			m.statusText = err.Error()
			return
		}
	}
}

// appendInputHistory records an input line for history navigation.
func (m *tuiModel) appendInputHistory(value string) {
	if value == "" {
		return
	}
	m.inputHistory = append(m.inputHistory, value)
	if len(m.inputHistory) > 200 {
		m.inputHistory = m.inputHistory[len(m.inputHistory)-200:]
	}
	m.historyIndex = len(m.inputHistory)
	m.historyDraft = ""
}

// cycleInputHistory moves the input buffer through stored history entries.
func (m *tuiModel) cycleInputHistory(delta int) {
	if len(m.inputHistory) == 0 {
		return
	}
	if m.historyIndex == len(m.inputHistory) {
		m.historyDraft = m.input.Value()
	}
	next := m.historyIndex + delta
	if next < 0 {
		next = 0
	}
	if next > len(m.inputHistory) {
		next = len(m.inputHistory)
	}
	m.historyIndex = next
	if m.historyIndex == len(m.inputHistory) {
		m.input.SetValue(m.historyDraft)
		return
	}
	m.input.SetValue(m.inputHistory[m.historyIndex])
}

// toggleReasoning shows or hides the reasoning pane.
func (m *tuiModel) toggleReasoning() {
	m.showReasoning = !m.showReasoning
	if !m.showReasoning && m.activePane == "reasoning" {
		m.setActivePane("input")
	}
	m.applyWindowSize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
}

// refreshAnswer rebuilds the answer viewport content.
func (m *tuiModel) refreshAnswer() {
	var builder strings.Builder
	for _, msg := range m.chatMessages {
		builder.WriteString(m.renderMessage(msg, false))
		builder.WriteString("\n\n")
	}
	if m.running {
		streamText := m.answerBuffer.String()
		if streamText != "" {
			builder.WriteString(m.renderMessage(tuiMessage{Role: "assistant", Content: streamText}, true))
			builder.WriteString("\n\n")
		}
	}
	m.answerView.SetContent(builder.String())
	if m.answerAutoScroll {
		m.answerView.GotoBottom()
	}
}

// refreshReasoning rebuilds the reasoning viewport content.
func (m *tuiModel) refreshReasoning() {
	text := m.reasoningBuffer.String()
	if text == "" {
		m.reasoningView.SetContent("No reasoning yet.")
		return
	}
	m.reasoningView.SetContent(reasoningStyle.Render(text))
	if m.reasoningAutoScroll {
		m.reasoningView.GotoBottom()
	}
}

// applyWindowSize recalculates the layout for a new window size.
func (m *tuiModel) applyWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height()
	bodyHeight := m.height - headerHeight - statusHeight - inputHeight
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	answerWidth := m.width
	reasoningWidth := 0
	if m.showReasoning {
		reasoningWidth = maxInt(24, m.width/3)
		if reasoningWidth > 70 {
			reasoningWidth = 70
		}
		answerWidth = m.width - reasoningWidth - 3
		if answerWidth < 20 {
			answerWidth = 20
			reasoningWidth = maxInt(20, m.width-answerWidth-3)
		}
	}

	m.answerView.Width = answerWidth - 2
	m.answerView.Height = bodyHeight - 2
	m.reasoningView.Width = maxInt(reasoningWidth-2, 1)
	m.reasoningView.Height = bodyHeight - 2
	m.input.SetWidth(m.width - 2)

	m.refreshAnswer()
	m.refreshReasoning()
}

// renderHeader builds the top status line.
func (m *tuiModel) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true)
	header := fmt.Sprintf("OpenDelta | session %s | model %s", m.sessionID, m.model)
	if m.running {
		header = header + " | streaming"
	}
	return style.Render(padRight(header, m.width))
}

// renderBody composes the answer pane and the optional reasoning pane.
func (m *tuiModel) renderBody() string {
	answer := m.renderPane("Answer", m.answerView.View(), m.answerView.Width+2)
	if !m.showReasoning {
		return answer
	}
	reasoning := m.renderPane("Reasoning", m.reasoningView.View(), m.reasoningView.Width+2)
	return lipgloss.JoinHorizontal(lipgloss.Top, answer, reasoning)
}

// setActivePane updates focus and input state for the requested pane.
func (m *tuiModel) setActivePane(pane string) {
	switch pane {
	case "answer", "reasoning":
		m.activePane = pane
		m.input.Blur()
	default:
		m.activePane = "input"
		m.input.Focus()
	}
}

// cyclePane moves focus between input, answer, and reasoning.
func (m *tuiModel) cyclePane(delta int) {
	order := []string{"input", "answer"}
	if m.showReasoning {
		order = append(order, "reasoning")
	}
	index := 0
	for i, name := range order {
		if name == m.activePane {
			index = i
			break
		}
	}
	next := (index + delta) % len(order)
	if next < 0 {
		next += len(order)
	}
	m.setActivePane(order[next])
}

// scrollActivePane scrolls the currently focused pane.
func (m *tuiModel) scrollActivePane(delta int) {
	switch m.activePane {
	case "reasoning":
		m.reasoningAutoScroll = false
		if delta > 0 {
			m.reasoningView.LineDown(delta)
		} else {
			m.reasoningView.LineUp(-delta)
		}
	case "answer":
		m.answerAutoScroll = false
		if delta > 0 {
			m.answerView.LineDown(delta)
		} else {
			m.answerView.LineUp(-delta)
		}
	}
}

// gotoActivePaneTop moves the active pane to the top.
func (m *tuiModel) gotoActivePaneTop() {
	switch m.activePane {
	case "reasoning":
		m.reasoningView.GotoTop()
		m.reasoningAutoScroll = false
	case "answer":
		m.answerView.GotoTop()
		m.answerAutoScroll = false
	}
}

// gotoActivePaneBottom moves the active pane to the bottom.
func (m *tuiModel) gotoActivePaneBottom() {
	switch m.activePane {
	case "reasoning":
		m.reasoningView.GotoBottom()
		m.reasoningAutoScroll = true
	case "answer":
		m.answerView.GotoBottom()
		m.answerAutoScroll = true
	}
}

// renderInput returns the input box rendering.
func (m *tuiModel) renderInput() string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	return style.Render(m.input.View())
}

// renderStatus returns the bottom status line.
func (m *tuiModel) renderStatus() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	text := m.statusText
	if text == "" {
		text = "Ready"
	}
	info := m.renderStatusInfo()
	if info != "" {
		text = fmt.Sprintf("%s | %s", text, info)
	}
	return style.Render(padRight(text, m.width))
}

// renderStatusInfo assembles auxiliary status information.
func (m *tuiModel) renderStatusInfo() string {
	parts := []string{fmt.Sprintf("focus:%s", m.activePane)}
	if m.showReasoning {
		parts = append(parts, "reasoning:on")
	} else {
		parts = append(parts, "reasoning:off")
	}
	if m.lastUsage.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("tokens:%d", m.lastUsage.TotalTokens))
	}
	return strings.Join(parts, " ")
}

// renderPane formats a bordered pane with a title.
func (m *tuiModel) renderPane(title string, content string, width int) string {
	style := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	header := fmt.Sprintf("[%s]", title)
	pane := lipgloss.JoinVertical(lipgloss.Left, header, content)
	return style.Width(width).Render(pane)
}

// renderMessage formats a chat message for display.
func (m *tuiModel) renderMessage(message tuiMessage, streaming bool) string {
	label := strings.ToUpper(message.Role)
	content := message.Content
	style := lipgloss.NewStyle()
	switch message.Role {
	case "user":
		style = style.Foreground(lipgloss.Color("39")).Bold(true)
		label = "YOU"
	case "assistant":
		style = style.Foreground(lipgloss.Color("10")).Bold(true)
		label = "ASSISTANT"
	case "system":
		style = style.Foreground(lipgloss.Color("3"))
		label = "SYSTEM"
	}
	if !streaming && message.Role == "assistant" {
		content = m.renderFinished(content)
	}
	return fmt.Sprintf("%s\n%s", style.Render(label+":"), content)
}

// renderFinished converts markdown into terminal output when possible.
func (m *tuiModel) renderFinished(content string) string {
	if m.markdownRenderer == nil {
		return content
	}
	rendered, err := m.markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// padRight pads a line with spaces to the requested width.
func padRight(text string, width int) string {
	if len(text) >= width {
		return text
	}
	return text + strings.Repeat(" ", width-len(text))
}

// maxInt returns the larger of two ints.
func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}
