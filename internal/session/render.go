package session

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"worldbuilder-agent/internal/domain"
	"worldbuilder-agent/internal/usecase"
)

const ruleWidth = 70

// Renderer formats session output. Colors are dropped automatically when the
// writer is not a terminal.
type Renderer struct {
	w       io.Writer
	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	errText lipgloss.Style
}

func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w: w,
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51")).
			Border(lipgloss.DoubleBorder(), true, false).
			Width(ruleWidth),
		label:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("244")),
		errText: r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

func (r *Renderer) Banner() {
	fmt.Fprintln(r.w, r.title.Render("WORLDBUILDER: multi-capability world-building router"))
	fmt.Fprintln(r.w, "Requests are analysed and routed to a specialised world-building capability.")
	fmt.Fprintln(r.w, "Each answer shows the selected capability and the routing logic behind it.")
	fmt.Fprintln(r.w, r.muted.Render("Type 'quit' or 'exit' (or an empty line) to end the session."))
	fmt.Fprintln(r.w, strings.Repeat("=", ruleWidth))
}

// Turn prints one routed request.
func (r *Renderer) Turn(input string, out usecase.RouteOutput) {
	fmt.Fprintf(r.w, "\n%s %s\n", r.label.Render("YOUR INPUT:"), input)
	fmt.Fprintln(r.w, strings.Repeat("-", 20))
	fmt.Fprintf(r.w, "%s %s\n", r.label.Render("SELECTED CAPABILITY:"), HumanizeName(out.SelectedCapability))
	fmt.Fprintf(r.w, "%s %s\n", r.label.Render("ROUTING LOGIC:"), out.Rationale)
	if out.Source == domain.SourceFallback {
		fmt.Fprintln(r.w, r.muted.Render("(keyword fallback)"))
	}
	fmt.Fprintln(r.w, strings.Repeat("-", 50))
	fmt.Fprintln(r.w, r.label.Render("RESPONSE:"))
	fmt.Fprintln(r.w, out.Response)
	fmt.Fprintln(r.w, strings.Repeat("=", ruleWidth))
}

func (r *Renderer) Error(err error) {
	fmt.Fprintf(r.w, "\n%s\n", r.errText.Render("Error processing request: "+describe(err)))
	fmt.Fprintln(r.w, "Please try again with a different request.")
}

func (r *Renderer) Capabilities(caps []domain.Capability, defaultName string) {
	for _, c := range caps {
		name := HumanizeName(c.Name)
		if c.Name == defaultName {
			name += r.muted.Render(" (default)")
		}
		fmt.Fprintf(r.w, "%s\n  %s\n", r.label.Render(name), c.Description)
	}
}

func (r *Renderer) Line(s string) {
	fmt.Fprintln(r.w, s)
}

func describe(err error) string {
	switch usecase.CodeOf(err) {
	case usecase.ErrorInvalidInput:
		return "the request was rejected (" + reasonOf(err) + ")"
	case usecase.ErrorRateLimited:
		return "the language model is rate limiting requests"
	case usecase.ErrorOracleUnavailable:
		return "the routing model is unavailable"
	case usecase.ErrorUpstream:
		return "the capability failed to answer"
	default:
		return err.Error()
	}
}

func reasonOf(err error) string {
	var ue *usecase.Error
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return "invalid input"
}

// HumanizeName turns a capability identifier into a display name:
// "EconomicsAgent" -> "Economics Agent", "trade_guild" -> "Trade Guild".
func HumanizeName(name string) string {
	var b strings.Builder
	prevLower, startWord := false, true
	for _, r := range strings.TrimSpace(name) {
		if r == '_' || r == '-' || r == ' ' {
			prevLower, startWord = false, true
			continue
		}
		if unicode.IsUpper(r) && prevLower {
			startWord = true
		}
		if startWord {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			r = unicode.ToUpper(r)
			startWord = false
		}
		b.WriteRune(r)
		prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
	}
	return b.String()
}
