package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"golang.org/x/time/rate"

	"github.com/hupe1980/jarvis/core"
	"github.com/hupe1980/jarvis/model"
)

const art = `
  ██████║ █████╗ ██████╗ ██╗   ██╗██╗███████╗
     ██║ ██╔══██╗██╔══██╗██║   ██║██║██╔════╝
     ██║ ███████║██████╔╝██║   ██║██║███████╗
     ██║ ██╔══██║██╔══██╗╚██╗ ██╔╝██║╚════██║
 ██║ ██║ ██║  ██║██║  ██║ ╚████╔╝ ██║███████║
   ██║   ╚═╝  ╚═╝╚═╝  ╚═╝  ╚═══╝  ╚═╝╚══════╝
`

const separator = "=============================="

// lineReader is the subset of *liner.State the console needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
	PromptWithSuggestion(prompt, text string, pos int) (string, error)
	AppendHistory(item string)
	ReadHistory(r io.Reader) (int, error)
	WriteHistory(w io.Writer) (int, error)
	Close() error
}

// Options configures a Console.
type Options struct {
	// Out receives all rendered output. Defaults to os.Stdout.
	Out io.Writer
	// HistoryFile persists input history between runs. Empty disables it.
	HistoryFile string
	// EchoDelay paces reply output per character. Zero prints fragments
	// as they arrive.
	EchoDelay time.Duration
	// NoColor disables styling.
	NoColor bool
}

type styles struct {
	prompt  lipgloss.Style
	speaker lipgloss.Style
	banner  lipgloss.Style
	online  lipgloss.Style
	header  lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	ok      lipgloss.Style
}

func newStyles(out io.Writer, noColor bool) styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain}
	}

	r := lipgloss.NewRenderer(out)

	return styles{
		prompt:  r.NewStyle().Foreground(lipgloss.Color("6")),
		speaker: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		banner:  r.NewStyle().Foreground(lipgloss.Color("4")).Bold(true),
		online:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		header:  r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		err:     r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		ok:      r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	}
}

// Console is the terminal presenter of a chat session. Line editing and
// history come from liner: Ctrl+C and Ctrl+D end the session, Ctrl+L
// clears the screen.
type Console struct {
	line        lineReader
	out         io.Writer
	historyFile string
	styles      styles
	limiter     *rate.Limiter
}

// New creates a Console bound to the controlling terminal.
func New(optFns ...func(o *Options)) *Console {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)

	return newConsole(st, optFns...)
}

func newConsole(line lineReader, optFns ...func(o *Options)) *Console {
	opts := Options{
		Out:       os.Stdout,
		EchoDelay: 5 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Console{
		line:        line,
		out:         opts.Out,
		historyFile: opts.HistoryFile,
		styles:      newStyles(opts.Out, opts.NoColor),
	}

	if opts.EchoDelay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.EchoDelay), 1)
	}

	c.loadHistory()

	return c
}

func (c *Console) loadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

func (c *Console) saveHistory() error {
	if c.historyFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = c.line.WriteHistory(f)
	return err
}

// Close saves the history and restores the terminal.
func (c *Console) Close() error {
	return errors.Join(c.saveHistory(), c.line.Close())
}

// ReadLine prompts for the next user line. Ctrl+C and Ctrl+D are reported
// as core.ErrInterrupted.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	input, err := c.line.Prompt(c.styles.prompt.Render("You:") + " ")
	if err != nil {
		return "", promptErr(err)
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// BeginReply prints the speaker label.
func (c *Console) BeginReply(label string) {
	fmt.Fprint(c.out, c.styles.speaker.Render(label+":")+" ")
}

// Emit echoes a fragment. Failures are printed at once in the error style;
// regular text is paced character by character when an echo delay is set.
func (c *Console) Emit(ctx context.Context, f model.Fragment) error {
	if f.Failed {
		_, err := fmt.Fprint(c.out, c.styles.err.Render(f.Text))
		return err
	}

	if c.limiter == nil {
		_, err := io.WriteString(c.out, f.Text)
		return err
	}

	for _, r := range f.Text {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := io.WriteString(c.out, string(r)); err != nil {
			return err
		}
	}

	return nil
}

// EndReply terminates the reply with a blank line.
func (c *Console) EndReply() {
	fmt.Fprint(c.out, "\n\n")
}

// Warn prints a recoverable notice.
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, c.styles.warn.Render("⚠️  "+msg))
}

// Fail prints a turn failure.
func (c *Console) Fail(err error) {
	fmt.Fprintln(c.out, c.styles.err.Render("Error: "+err.Error()))
}

// Banner prints the startup art, the chosen provider and the override
// shortcuts available for this session.
func (c *Console) Banner(provider core.ProviderID, shortcuts []string) {
	fmt.Fprintln(c.out, c.styles.banner.Render(art))
	fmt.Fprintln(c.out, separator)
	fmt.Fprintln(c.out, c.styles.online.Render("🟥 Jarvis online. Provider: "+strings.ToUpper(string(provider))))
	fmt.Fprintln(c.out, separator)

	if len(shortcuts) == 0 {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.styles.header.Render("Available shortcuts:"))
	for _, s := range shortcuts {
		fmt.Fprintf(c.out, "  • %s\n", s)
	}
	fmt.Fprintln(c.out)
}

// Goodbye prints the shutdown message.
func (c *Console) Goodbye() {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, c.styles.warn.Render("Jarvis shutting down. Have a great day!"))
}
