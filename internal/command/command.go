// Package command defines the user-intent command vocabulary and the sink
// that delivers commands to whichever external consumer is active.
package command

// Kind identifies one discrete user intent. The set is closed today but
// deliberately cheap to extend.
type Kind string

const (
	// Select fires on a sustained gaze-open gesture.
	Select Kind = "select"
	// MoveNext fires on a blink gesture and advances the external focus.
	MoveNext Kind = "move-next"
)

// Command is one classified intent token. The trigger value is the filtered
// magnitude that fired the classifier, carried for diagnostics only.
// Commands are immutable once created and consumed exactly once.
type Command struct {
	Kind    Kind
	Trigger float64
}
