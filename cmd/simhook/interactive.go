package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"
	"golang.org/x/term"

	"github.com/wippyai/simhook/errors"
	"github.com/wippyai/simhook/hook"
	"github.com/wippyai/simhook/sim"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	consoleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D3D3D3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// opInfo is one facade operation offered by the console.
type opInfo struct {
	name       string
	resultType string
	params     []paramInfo
	call       func(ctx context.Context, h *hook.Hook, args []any) (string, error)
}

type paramInfo struct {
	name    string
	witType wit.Type
	def     string
}

func (p paramInfo) typeStr() string { return witTypeStr(p.witType) }

func f64(name, def string) paramInfo  { return paramInfo{name: name, witType: wit.F64{}, def: def} }
func s64(name, def string) paramInfo  { return paramInfo{name: name, witType: wit.S64{}, def: def} }
func flag(name, def string) paramInfo { return paramInfo{name: name, witType: wit.Bool{}, def: def} }
func str(name, def string) paramInfo  { return paramInfo{name: name, witType: wit.String{}, def: def} }

// sentinel reports a facade sentinel together with the error behind it.
func sentinel(h *hook.Hook, text string) (string, error) {
	if err := h.LastError(); err != nil {
		return text, err
	}
	return text, nil
}

func motionArg(v any) (sim.MotionType, error) {
	mt, err := sim.ParseMotionType(v.(string))
	if err != nil {
		return "", errors.MalformedInput("%v", err)
	}
	return mt, nil
}

func consoleOps() []opInfo {
	def := sim.CreepingLineRequest()
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	return []opInfo{
		{
			name:       "version_name",
			resultType: "string",
			call: func(ctx context.Context, h *hook.Hook, _ []any) (string, error) {
				v := h.VersionName(ctx)
				if v == hook.BadString {
					return sentinel(h, v)
				}
				return v, nil
			},
		},
		{
			name:       "print_args",
			resultType: "bool",
			params:     []paramInfo{str("args", "Hello from simhook")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				if !h.PrintArgs(ctx, strings.Fields(args[0].(string))) {
					return sentinel(h, "false")
				}
				return "true", nil
			},
		},
		{
			name:       "acos",
			resultType: "f64",
			params:     []paramInfo{f64("x", "0")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				v := h.ArcCosine(ctx, args[0].(float64))
				if v == hook.BadAngle {
					return sentinel(h, formatFloat(v))
				}
				return formatFloat(v), nil
			},
		},
		{
			name:       "make_pattern",
			resultType: "pattern",
			params: []paramInfo{
				f64("speed_kts", ff(def.SpeedKts)),
				s64("duration_secs", strconv.FormatInt(def.DurationSecs, 10)),
				f64("center_lat", ff(def.CenterLat)),
				f64("center_lng", ff(def.CenterLng)),
				f64("orientation", ff(def.Orientation)),
				flag("first_turn_right", strconv.FormatBool(def.FirstTurnRight)),
				f64("min_ts_nmi", ff(def.MinTrackSpacingNmi)),
				f64("fixed_ts_nmi", ff(def.FixedTrackSpacingNmi)),
				f64("exclusion_nmi", ff(def.ExclusionBufferNmi)),
				f64("length_nmi", ff(def.LengthNmi)),
				f64("width_nmi", ff(def.WidthNmi)),
				flag("ps", strconv.FormatBool(def.ParallelSweep)),
				str("motion", string(def.MotionType)),
			},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				mt, err := motionArg(args[12])
				if err != nil {
					return "", err
				}
				req := sim.PatternRequest{
					MotionType:           mt,
					SpeedKts:             args[0].(float64),
					DurationSecs:         args[1].(int64),
					CenterLat:            args[2].(float64),
					CenterLng:            args[3].(float64),
					Orientation:          args[4].(float64),
					FirstTurnRight:       args[5].(bool),
					MinTrackSpacingNmi:   args[6].(float64),
					FixedTrackSpacingNmi: args[7].(float64),
					ExclusionBufferNmi:   args[8].(float64),
					LengthNmi:            args[9].(float64),
					WidthNmi:             args[10].(float64),
					ParallelSweep:        args[11].(bool),
				}
				p := h.MakePattern(ctx, req)
				if p.Status() == sim.StatusFailed {
					return sentinel(h, p.String())
				}
				return p.String(), nil
			},
		},
		{
			name:       "make_lobs_ellipse",
			resultType: "ellipse",
			params:     []paramInfo{str("lob1", ""), str("lob2", ""), str("lob3", "")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				var lobs []sim.Lob
				for _, a := range args {
					s := strings.TrimSpace(a.(string))
					if s == "" {
						continue
					}
					v, err := parseCSV(s, sim.NLobValues)
					if err != nil {
						return "", err
					}
					lob, _ := sim.LobFrom(v)
					lobs = append(lobs, lob)
				}
				e := h.MakeLobsEllipse(ctx, nil, lobs)
				if e.Status() == sim.StatusFailed {
					return sentinel(h, e.String())
				}
				return e.String() + " " + e.Status().String(), nil
			},
		},
		{
			name:       "solve_for_range_bearing",
			resultType: "nav",
			params:     []paramInfo{f64("lat0", "39"), f64("lng0", "-179"), f64("lat1", "39"), f64("lng1", "179"), str("motion", "RL")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				mt, err := motionArg(args[4])
				if err != nil {
					return "", err
				}
				n := h.SolveForRangeBearing(ctx, args[0].(float64), args[1].(float64), args[2].(float64), args[3].(float64), mt)
				if n.Status() == sim.StatusFailed {
					return sentinel(h, n.String())
				}
				return n.String(), nil
			},
		},
		{
			name:       "solve_for_destination",
			resultType: "nav",
			params:     []paramInfo{f64("lat0", "0"), f64("lng0", "0"), f64("range_nmi", "3"), f64("bearing", "270"), str("motion", "GC")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				mt, err := motionArg(args[4])
				if err != nil {
					return "", err
				}
				n := h.SolveForDestination(ctx, args[0].(float64), args[1].(float64), args[2].(float64), args[3].(float64), mt)
				if n.Status() == sim.StatusFailed {
					return sentinel(h, n.String())
				}
				return n.String(), nil
			},
		},
		{
			name:       "log_odds_max_pd",
			resultType: "f64",
			params: []paramInfo{
				f64("a0", ff(demoA0)), f64("a1", ff(demoA1)), f64("a2", ff(demoA2)), f64("max_x", ff(demoMaxX)),
			},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				v := h.LogOddsMaxPd(ctx, args[0].(float64), args[1].(float64), args[2].(float64), args[3].(float64))
				if v == hook.BadProbability {
					return sentinel(h, formatFloat(v))
				}
				return formatFloat(v), nil
			},
		},
		{
			name:       "sweep_width",
			resultType: "f64",
			params:     []paramInfo{str("sensor_file", "")},
			call: func(ctx context.Context, h *hook.Hook, args []any) (string, error) {
				text := sim.InverseCubeSensor().Text()
				if path := strings.TrimSpace(args[0].(string)); path != "" {
					data, err := os.ReadFile(path)
					if err != nil {
						return "", err
					}
					text = string(data)
				}
				v := h.SweepWidth(ctx, text)
				if v == hook.BadSweepWidth {
					return sentinel(h, formatFloat(v))
				}
				return formatFloat(v), nil
			},
		},
	}
}

// syncBuffer collects guest console output between calls.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) drain() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	b.buf.Reset()
	return s
}

type interactiveModel struct {
	err      error
	ctx      context.Context
	h        *hook.Hook
	console  *syncBuffer
	title    string
	result   string
	output   string
	ops      []opInfo
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectOp modelState = iota
	stateInputArgs
	stateShowResult
)

type callResultMsg struct {
	err    error
	result string
	output string
}

func newInteractiveModel(ctx context.Context, h *hook.Hook, console *syncBuffer, title string) *interactiveModel {
	return &interactiveModel{
		ctx:     ctx,
		h:       h,
		console: console,
		title:   title,
		ops:     consoleOps(),
		state:   stateSelectOp,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectOp && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectOp && m.selected < len(m.ops)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectOp:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callOp
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callOp

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectOp
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.output = msg.output
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectOp
	m.result = ""
	m.output = ""
	m.err = nil
}

func (m *interactiveModel) prepareInputs() {
	op := m.ops[m.selected]
	m.inputs = make([]textinput.Model, len(op.params))
	for i, p := range op.params {
		ti := textinput.New()
		ti.Placeholder = p.typeStr()
		ti.Prompt = p.name + ": "
		ti.Width = 40
		ti.SetValue(p.def)
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callOp() tea.Msg {
	op := m.ops[m.selected]
	args := make([]any, len(m.inputs))
	for i, input := range m.inputs {
		v, err := convertArg(input.Value(), op.params[i].witType)
		if err != nil {
			return callResultMsg{err: errors.MalformedInput("%s: %v", op.params[i].name, err)}
		}
		args[i] = v
	}
	result, err := op.call(m.ctx, m.h, args)
	return callResultMsg{result: result, err: err, output: m.console.drain()}
}

func convertArg(value string, t wit.Type) (any, error) {
	value = strings.TrimSpace(value)
	switch t.(type) {
	case wit.String:
		return value, nil
	case wit.S64:
		return strconv.ParseInt(value, 10, 64)
	case wit.F64:
		return strconv.ParseFloat(value, 64)
	case wit.Bool:
		return strconv.ParseBool(value)
	default:
		return nil, fmt.Errorf("unsupported parameter type %s", witTypeStr(t))
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SimLib Console"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectOp:
		b.WriteString("Select an operation:\n\n")
		for i, op := range m.ops {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatOp(op)))
			} else {
				b.WriteString("  " + m.formatOp(op))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(op.name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(op.params[i].typeStr()))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		op := m.ops[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(op.name)))
		if m.output != "" {
			b.WriteString(consoleStyle.Render(strings.TrimRight(m.output, "\n")))
			b.WriteString("\n")
		}
		if m.result != "" {
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString("\n")
		}
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n")
		}
		if r := m.h.Resets(); r > 0 {
			b.WriteString(helpStyle.Render(fmt.Sprintf("session restarts: %d", r)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatOp(op opInfo) string {
	var params []string
	for _, p := range op.params {
		params = append(params, p.name+": "+typeStyle.Render(p.typeStr()))
	}
	result := ""
	if op.resultType != "" {
		result = " -> " + typeStyle.Render(op.resultType)
	}
	return funcStyle.Render(op.name) + "(" + strings.Join(params, ", ") + ")" + result
}

func witTypeStr(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.S64:
		return "s64"
	case wit.F64:
		return "f64"
	case wit.String:
		return "string"
	default:
		return fmt.Sprintf("%T", t)
	}
}

func (a *app) interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start the interactive console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInteractive(cmd)
		},
	}
}

// runInteractive opens a dedicated facade whose guest console output is
// shown inside the console instead of on the terminal.
func (a *app) runInteractive(cmd *cobra.Command) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New(errors.PhaseConfig, errors.KindMalformedInput).
			Detail("interactive mode needs a terminal on stdout").
			Build()
	}
	console := &syncBuffer{}
	hc, err := a.cfg.HookConfig(console, console)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	h := hook.New(ctx, hc)
	defer h.Close(ctx)

	title := "reference guest"
	if a.cfg.LibraryDir != "" {
		title = a.cfg.LibraryDir
	}
	if err := h.Err(); err != nil {
		title += " (unavailable)"
	}

	p := tea.NewProgram(newInteractiveModel(ctx, h, console, title), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
