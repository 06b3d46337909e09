// Package console is the terminal front end of the interaction controller.
//
// [View] prints the transcript as it grows: user lines, assistant replies
// word by word as the reveal advances, status changes and the API key setup
// panel. [Loop] reads commands from stdin and forwards them to the
// controller.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/voicebot/internal/persona"
	"github.com/MrWong99/voicebot/internal/voice"
)

// ── Styles ──────────────────────────────────────────────────────────────────

type styles struct {
	title     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	text      lipgloss.Style
	info      lipgloss.Style
	success   lipgloss.Style
	failure   lipgloss.Style
	hint      lipgloss.Style
	panel     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("#c4b5fd")),
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("#94a3b8")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#bae6fd")),
		text:      r.NewStyle().Foreground(lipgloss.Color("#d4d4d8")),
		info:      r.NewStyle().Foreground(lipgloss.Color("#fde68a")),
		success:   r.NewStyle().Foreground(lipgloss.Color("#bbf7d0")),
		failure:   r.NewStyle().Foreground(lipgloss.Color("#fca5a5")),
		hint:      r.NewStyle().Foreground(lipgloss.Color("#71717a")).Italic(true),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#fca5a5")).
			Padding(0, 1),
	}
}

// Speaker labels.
const (
	UserLabel      = "You"
	AssistantLabel = "Claude"
)

// ── View ────────────────────────────────────────────────────────────────────

// View renders controller snapshots to a terminal. It remembers what it
// already printed and only writes the difference.
type View struct {
	mu sync.Mutex
	w  io.Writer
	st styles

	printed int // messages whose label was written
	words   int // words written of the last message while open
	open    bool
	broken  bool // a status line interrupted the open message
	status  voice.Status
	setup   bool
}

var _ voice.View = (*View)(nil)

// New returns a View writing to w. Colours are used only when w is a
// terminal.
func New(w io.Writer) *View {
	return &View{w: w, st: newStyles(lipgloss.NewRenderer(w))}
}

// Render implements voice.View.
func (v *View) Render(s voice.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, m := range s.Messages {
		switch {
		case i < v.printed-1:
		case i == v.printed-1:
			if v.open {
				v.continueMessage(m)
			}
		default:
			v.startMessage(m)
		}
	}

	if s.Status != v.status {
		v.status = s.Status
		if s.Status.Visible() {
			v.breakLine()
			v.println(v.statusStyle(s.Status.Kind).Render(s.Status.Text))
		}
	}

	if s.SetupOpen && !v.setup {
		v.breakLine()
		v.println(v.st.panel.Render(setupText))
	}
	v.setup = s.SetupOpen
}

func (v *View) startMessage(m voice.Message) {
	v.closeOpen()
	v.printed++
	if m.Role == voice.RoleUser {
		v.println(v.st.user.Render(UserLabel+":") + " " + v.st.text.Render(m.Text))
		return
	}
	fmt.Fprint(v.w, v.st.assistant.Render(AssistantLabel+":"))
	v.open, v.words, v.broken = true, 0, false
	v.continueMessage(m)
}

// continueMessage writes the words of m revealed since the last render and
// ends the line once the message is complete.
func (v *View) continueMessage(m voice.Message) {
	words := strings.Fields(m.Shown)
	if len(words) > v.words {
		if v.broken {
			fmt.Fprint(v.w, strings.Repeat(" ", len(AssistantLabel)+1))
			v.broken = false
		}
		fmt.Fprint(v.w, " "+v.st.text.Render(strings.Join(words[v.words:], " ")))
		v.words = len(words)
	}
	if m.Shown == m.Text {
		v.closeOpen()
	}
}

func (v *View) closeOpen() {
	if v.open && !v.broken {
		fmt.Fprintln(v.w)
	}
	v.open, v.broken = false, false
}

// breakLine ends a partially written reply so a full line can follow. The
// reply continues on an indented line.
func (v *View) breakLine() {
	if v.open && !v.broken {
		fmt.Fprintln(v.w)
		v.broken = true
	}
}

func (v *View) println(s string) { fmt.Fprintln(v.w, s) }

func (v *View) statusStyle(k voice.StatusKind) lipgloss.Style {
	switch k {
	case voice.StatusSuccess:
		return v.st.success
	case voice.StatusError:
		return v.st.failure
	default:
		return v.st.info
	}
}

// Banner prints the title and the command help.
func (v *View) Banner(subtitle string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.println(v.st.title.Render("Claude Voice Bot"))
	if subtitle != "" {
		v.println(v.st.hint.Render(subtitle))
	}
	v.printHelp()
}

// Help prints the command reference.
func (v *View) Help() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.breakLine()
	v.printHelp()
}

// Notice prints a one-off hint line.
func (v *View) Notice(text string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.breakLine()
	v.println(v.st.hint.Render(text))
}

func (v *View) printHelp() {
	var b strings.Builder
	b.WriteString("Type a message and press Enter, or use a command:\n")
	b.WriteString("  /v          start or stop voice input\n")
	for i, q := range persona.QuickQuestions {
		fmt.Fprintf(&b, "  /%d          %s\n", i+1, q)
	}
	b.WriteString("  /s          stop speaking\n")
	b.WriteString("  /key <key>  save your Groq API key\n")
	b.WriteString("  /help       show this help\n")
	b.WriteString("  /q          quit")
	v.println(v.st.hint.Render(b.String()))
}

const setupText = `API key required
Get a free key at https://console.groq.com/keys
then enter it with: /key gsk_...`
