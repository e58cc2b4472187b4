package ui

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"randomizer/internal/experiment"
	"randomizer/internal/logging"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type screen int

const (
	screenWelcome screen = iota
	screenInstructions
	screenRound
	screenRoundConfirm
	screenTrial
	screenTrialConfirm
	screenGraspWarning
	screenNotice
	screenConcluding
)

var screenNames = [...]string{
	"welcome", "instructions", "round", "round-confirm", "trial",
	"trial-confirm", "grasp-warning", "notice", "concluding",
}

func (s screen) String() string {
	if int(s) < len(screenNames) {
		return screenNames[s]
	}
	return fmt.Sprintf("screen(%d)", int(s))
}

// Timing holds how long each timed screen stays up.
type Timing struct {
	TrialConfirm time.Duration
	RoundConfirm time.Duration
	Notice       time.Duration
	Concluding   time.Duration
}

// Options configures the driver.
type Options struct {
	Title  string
	Output string
	Timing Timing
	Styles *Styles
	Keys   *KeyMap
}

type tickMsg struct {
	gen  int
	step time.Duration
}

// Model drives one session through a Sequencer.
type Model struct {
	seq      *experiment.Sequencer
	opts     Options
	styles   Styles
	keys     KeyMap
	help     help.Model
	viewport viewport.Model
	log      *zap.Logger

	screen    screen
	pending   experiment.Annotation
	remaining time.Duration
	gen       int
	aborted   bool
	err       error
	width     int
	height    int
}

// NewModel creates a driver for seq. The welcome screen is shown first.
func NewModel(seq *experiment.Sequencer, opts Options) Model {
	styles := DefaultStyles()
	if opts.Styles != nil {
		styles = *opts.Styles
	}
	keys := DefaultKeyMap()
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	if opts.Title == "" {
		opts.Title = "Perceptual Balance Task"
	}

	m := Model{
		seq:      seq,
		opts:     opts,
		styles:   styles,
		keys:     keys,
		help:     help.New(),
		viewport: viewport.New(80, 20),
		log:      logging.Get(logging.CategoryDriver),
		screen:   screenWelcome,
		pending:  experiment.AnnotationNone,
	}
	m.refreshInstructions()
	return m
}

// Init implements tea.Model. The session waits for the experimenter.
func (m Model) Init() tea.Cmd {
	return nil
}

// Outcome reports how the session ended.
func (m Model) Outcome() experiment.Outcome {
	return m.seq.Outcome()
}

// Err returns the error that ended the session, if any.
func (m Model) Err() error {
	return m.err
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-4, 1)
		m.help.Width = msg.Width
		m.refreshInstructions()
		return m, nil

	case tickMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.remaining -= msg.step
		if m.remaining > 0 {
			return m, m.tick()
		}
		return m.expire()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.screen == screenConcluding {
		return m, nil
	}
	if key.Matches(msg, m.keys.Abort) {
		return m.abort()
	}

	switch m.screen {
	case screenWelcome:
		if key.Matches(msg, m.keys.Begin) {
			return m.startRound()
		}
		return m.scroll(msg)

	case screenInstructions:
		if key.Matches(msg, m.keys.Begin) {
			m.screen = screenRound
			return m, nil
		}
		return m.scroll(msg)

	case screenRound:
		switch {
		case key.Matches(msg, m.keys.Next):
			return m.startCountdown(screenRoundConfirm, m.opts.Timing.RoundConfirm)
		case key.Matches(msg, m.keys.Instructions):
			m.screen = screenInstructions
			m.viewport.GotoTop()
		}

	case screenRoundConfirm:
		if key.Matches(msg, m.keys.Revert) {
			m.cancelCountdown(screenRound)
		}

	case screenTrial:
		switch {
		case key.Matches(msg, m.keys.Next):
			return m.startCountdown(screenTrialConfirm, m.opts.Timing.TrialConfirm)
		case key.Matches(msg, m.keys.FirstGrasp):
			m.warn(experiment.AnnotationViolationFirstGrasp)
		case key.Matches(msg, m.keys.SecondGrasp):
			m.warn(experiment.AnnotationViolationSecondGrasp)
		case key.Matches(msg, m.keys.BothGrasps):
			m.warn(experiment.AnnotationViolationBothGrasps)
		}

	case screenTrialConfirm:
		if key.Matches(msg, m.keys.Revert) {
			m.cancelCountdown(screenTrial)
		}

	case screenGraspWarning:
		switch {
		case key.Matches(msg, m.keys.Next):
			return m.startCountdown(screenNotice, m.opts.Timing.Notice)
		case key.Matches(msg, m.keys.Revert):
			m.pending = experiment.AnnotationNone
			m.screen = screenTrial
		}
	}
	return m, nil
}

func (m Model) scroll(msg tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) warn(a experiment.Annotation) {
	m.pending = a
	m.screen = screenGraspWarning
	m.log.Debug("grasp violation indicated", zap.String("annotation", string(a)))
}

func (m Model) startCountdown(s screen, d time.Duration) (Model, tea.Cmd) {
	m.screen = s
	m.gen++
	m.remaining = d
	if d <= 0 {
		return m.expire()
	}
	return m, m.tick()
}

// cancelCountdown returns to s; ticks from the old countdown are ignored.
func (m *Model) cancelCountdown(s screen) {
	m.gen++
	m.remaining = 0
	m.screen = s
	m.log.Debug("reverted", zap.Stringer("screen", s))
}

func (m Model) tick() tea.Cmd {
	step := time.Second
	if m.remaining < step {
		step = m.remaining
	}
	gen := m.gen
	return tea.Tick(step, func(time.Time) tea.Msg {
		return tickMsg{gen: gen, step: step}
	})
}

func (m Model) expire() (Model, tea.Cmd) {
	switch m.screen {
	case screenRoundConfirm:
		return m.advance(experiment.AnnotationNone)
	case screenTrialConfirm:
		return m.advance(experiment.AnnotationNone)
	case screenNotice:
		return m.advance(m.pending)
	case screenConcluding:
		return m, tea.Quit
	}
	return m, nil
}

// advance closes the trial on screen, or opens the first one of a round,
// and moves on to whatever comes next.
func (m Model) advance(a experiment.Annotation) (Model, tea.Cmd) {
	if err := m.seq.AdvanceStimulus(a); err != nil {
		return m.fail(err)
	}
	m.pending = experiment.AnnotationNone

	if !m.seq.IsRoundComplete() {
		m.screen = screenTrial
		return m, nil
	}
	if m.seq.IsExperimentComplete() {
		if err := m.seq.Finish(); err != nil {
			return m.fail(err)
		}
		m.log.Info("session finished")
		return m.conclude()
	}
	return m.startRound()
}

func (m Model) startRound() (Model, tea.Cmd) {
	if m.seq.IsExperimentComplete() {
		if err := m.seq.Finish(); err != nil {
			return m.fail(err)
		}
		return m.conclude()
	}
	if err := m.seq.AdvanceRound(); err != nil {
		return m.fail(err)
	}
	m.screen = screenRound
	return m, nil
}

func (m Model) abort() (Model, tea.Cmd) {
	m.aborted = true
	if err := m.seq.Abort(); err != nil {
		m.err = err
	}
	m.log.Warn("session aborted by experimenter")
	return m.conclude()
}

func (m Model) fail(err error) (Model, tea.Cmd) {
	m.log.Error("session failed", zap.Error(err))
	if m.seq.Outcome() == experiment.OutcomeRunning {
		if abortErr := m.seq.Abort(); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
	}
	m.err = err
	m.aborted = true
	return m.conclude()
}

func (m Model) conclude() (Model, tea.Cmd) {
	return m.startCountdown(screenConcluding, m.opts.Timing.Concluding)
}

func (m *Model) refreshInstructions() {
	markdown := instructionsMarkdown(m.opts.Title, m.seq.Rounds(), m.seq.PerRound(),
		m.opts.Timing.TrialConfirm, m.opts.Output)
	m.viewport.SetContent(renderInstructions(markdown, m.viewport.Width))
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Header.Render(m.opts.Title))
	sb.WriteString("\n")

	switch m.screen {
	case screenWelcome, screenInstructions:
		sb.WriteString(m.viewport.View())
	default:
		sb.WriteString(m.styles.Content.Render(m.body()))
	}

	if bindings := m.keys.forScreen(m.screen); len(bindings) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Footer.Render(m.help.ShortHelpView(bindings)))
	}
	return sb.String()
}

func (m Model) body() string {
	info := m.seq.Info()
	switch m.screen {
	case screenRound:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render(fmt.Sprintf("ROUND %d", info.Round)),
			m.styles.Muted.Render("Press → to continue or i to review the instructions."))

	case screenRoundConfirm:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.styles.Title.Render(fmt.Sprintf("Round %d starts in %d seconds...", info.Round, m.secondsLeft())),
			m.styles.Muted.Render("Press return to revert."))

	case screenTrial:
		return m.trialView(info)

	case screenTrialConfirm:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.trialView(info),
			m.styles.Warning.Render("Are you sure you are done with this object?"),
			m.styles.Muted.Render(fmt.Sprintf("Press return to revert in %d seconds.", m.secondsLeft())))

	case screenGraspWarning:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.trialView(info),
			m.styles.Warning.Render(fmt.Sprintf(
				"You have indicated that the participant did not use the precision grasp on %s!",
				graspDescription(m.pending))),
			m.styles.Body.Render("Take a moment to correct the participant's grasp."),
			m.styles.Muted.Render("Press return to revert or → to continue."))

	case screenNotice:
		return m.styles.Warning.Render(fmt.Sprintf(
			"The record will show that the participant did not use the precision grasp on %s.",
			graspDescription(m.pending)))

	case screenConcluding:
		return m.concludingView()
	}
	return ""
}

func (m Model) trialView(info experiment.Info) string {
	header := m.styles.Body.Render(fmt.Sprintf("Round %d/%d   Object %d/%d   Trial %d/%d",
		info.Round, info.Rounds, info.Object, info.Objects, info.Trial, info.Trials))

	obj, err := m.seq.CurrentStimulus()
	if err != nil {
		return header
	}

	labels := obj.Labels()
	rendered := make([]string, len(labels))
	for i, l := range labels {
		rendered[i] = m.styles.Label.Render(l)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.styles.Stimulus.Render(obj.Identifier),
		lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
}

func (m Model) concludingView() string {
	var lines []string
	switch {
	case m.err != nil:
		lines = append(lines,
			m.styles.Error.Render("THE EXPERIMENT HAS FINISHED EARLY!"),
			m.styles.Error.Render(m.err.Error()))
	case m.aborted:
		lines = append(lines, m.styles.Error.Render("THE EXPERIMENT HAS FINISHED EARLY!"))
	default:
		lines = append(lines,
			m.styles.Success.Render("The experiment has finished..."),
			m.styles.Body.Render("You have given the participant all of the stimuli!"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) secondsLeft() int {
	return int(math.Ceil(m.remaining.Seconds()))
}

func graspDescription(a experiment.Annotation) string {
	switch a {
	case experiment.AnnotationViolationFirstGrasp:
		return "THE FIRST GRASP"
	case experiment.AnnotationViolationSecondGrasp:
		return "THE SECOND GRASP"
	case experiment.AnnotationViolationBothGrasps:
		return "BOTH GRASPS"
	}
	return "NO GRASP"
}

// Run starts the driver in the alternate screen and returns the final model.
func Run(seq *experiment.Sequencer, opts Options, programOpts ...tea.ProgramOption) (Model, error) {
	programOpts = append([]tea.ProgramOption{tea.WithAltScreen()}, programOpts...)
	p := tea.NewProgram(NewModel(seq, opts), programOpts...)
	final, err := p.Run()
	if err != nil {
		return Model{}, fmt.Errorf("driver failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Model{}, fmt.Errorf("driver returned unexpected model %T", final)
	}
	return m, m.err
}
