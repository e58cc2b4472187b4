package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
)

const instructionsTemplate = `# %s

## Directions

1. Press **esc** at any time to quit. The session is marked as aborted and a
   closing message is shown for a few seconds. Trial times are measured
   from the moment the session was opened.
2. Each trial shows the object, the color ratio on each side and the current
   round, object and trial numbers.
3. The labels are drawn from the experimenter's perspective: when the object
   is placed down, the color shown on the left should appear on your left.
4. You are done with an object when it is back in the box. Rotate it so the
   colors swap sides before the next participant sees it.
5. Watch for a precision grasp. If the participant fails it on the first
   grasp only, press **1**; on the second grasp only, press **2**; on both,
   press **3**.
   - Press **→** to confirm. The violation is recorded and the next object
     is presented. You cannot come back to the object.
   - Press **return** to go back to the object.
6. When you are done with an object, press **→**.
   - Wait %s to confirm. "NONE" is recorded for the trial.
   - Press **return** within that time to go back to the object.
7. The session ends after %d rounds of %d objects (%d trials in total).
8. Records are written to %s as the session runs.
9. Between rounds, press **i** to review these instructions.

Press **space** to continue.
`

// instructionsMarkdown fills in the session-specific numbers.
func instructionsMarkdown(title string, rounds, perRound int, confirm time.Duration, output string) string {
	if output == "" {
		output = "the data directory"
	}
	return fmt.Sprintf(instructionsTemplate,
		title,
		formatWait(confirm),
		rounds, perRound, rounds*perRound,
		output)
}

// renderInstructions renders markdown for the terminal, falling back to the
// raw text if glamour cannot build a renderer.
func renderInstructions(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(out, "\n")
}

func formatWait(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}
