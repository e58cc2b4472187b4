package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the experimenter key bindings.
type KeyMap struct {
	Begin        key.Binding
	Next         key.Binding
	Revert       key.Binding
	Instructions key.Binding
	FirstGrasp   key.Binding
	SecondGrasp  key.Binding
	BothGrasps   key.Binding
	Abort        key.Binding
}

// DefaultKeyMap returns the bindings used during a session.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Begin: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "continue"),
		),
		Next: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "done"),
		),
		Revert: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("return", "revert"),
		),
		Instructions: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "instructions"),
		),
		FirstGrasp: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "grasp #1"),
		),
		SecondGrasp: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "grasp #2"),
		),
		BothGrasps: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "both grasps"),
		),
		Abort: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// forScreen lists the bindings active on a screen, for the help footer.
func (k KeyMap) forScreen(s screen) []key.Binding {
	switch s {
	case screenWelcome, screenInstructions:
		return []key.Binding{k.Begin, k.Abort}
	case screenRound:
		return []key.Binding{k.Next, k.Instructions, k.Abort}
	case screenRoundConfirm, screenTrialConfirm:
		return []key.Binding{k.Revert, k.Abort}
	case screenTrial:
		return []key.Binding{k.Next, k.FirstGrasp, k.SecondGrasp, k.BothGrasps, k.Abort}
	case screenGraspWarning:
		return []key.Binding{k.Next, k.Revert, k.Abort}
	case screenNotice:
		return []key.Binding{k.Abort}
	default:
		return nil
	}
}
