// Package pipeline implements the per-request flow router: an ordered walk
// over fixed steps where registered modules may continue, stop, or skip ahead.
package pipeline

// Step is a stage of the flow. Steps only ever advance.
type Step int

const (
	// StepInitial exists only before the walk begins.
	StepInitial Step = iota
	StepStart
	StepURLExtract
	StepRegister
	StepBuildResult
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepInitial:
		return "initial"
	case StepStart:
		return "start"
	case StepURLExtract:
		return "url_extract"
	case StepRegister:
		return "register"
	case StepBuildResult:
		return "build_result"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}

type flowKind int

const (
	flowContinue flowKind = iota
	flowBreak
	flowJump
)

// Flow is a module's verdict for the current step.
type Flow struct {
	kind   flowKind
	target Step
}

// Continue lets the walk go on.
func Continue() Flow { return Flow{kind: flowContinue} }

// Break halts the walk. The module should already have set a result if one
// is due.
func Break() Flow { return Flow{kind: flowBreak} }

// JumpTo skips the remaining modules of the current step and resumes the walk
// at step. Jumping backwards halts the walk.
func JumpTo(step Step) Flow { return Flow{kind: flowJump, target: step} }

func (f Flow) String() string {
	switch f.kind {
	case flowBreak:
		return "break"
	case flowJump:
		return "jump_to_" + f.target.String()
	default:
		return "continue"
	}
}
