package actions

import "github.com/matheus3301/stash/internal/model"

// EditOutcome tags the result of EditMessage.
type EditOutcome int

const (
	// EditApplied means the remote edit succeeded and its updates were merged.
	EditApplied EditOutcome = iota
	// EditSkipped means the caller asked for no remote edit.
	EditSkipped
	// EditNoOp means the remote reported the content as unchanged.
	EditNoOp
	// EditFailed means the remote edit failed.
	EditFailed
)

func (o EditOutcome) String() string {
	switch o {
	case EditApplied:
		return "applied"
	case EditSkipped:
		return "skipped"
	case EditNoOp:
		return "no-op"
	case EditFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EditResult is the outcome of EditMessage. Updates is set for EditApplied,
// Err for EditFailed.
type EditResult struct {
	Outcome EditOutcome
	Updates model.Updates
	Err     error
}

// OK reports whether the edit counts as successful.
func (r EditResult) OK() bool {
	return r.Outcome != EditFailed
}

// MoveResult is the outcome of MoveMessage.
type MoveResult int

const (
	// MoveSkipped means no source folder was active; nothing was called.
	MoveSkipped MoveResult = iota
	// MoveFailed means the remote move failed; nothing changed.
	MoveFailed
	// MoveDuplicated means the message was copied to the target folder but
	// the source copy could not be deleted. Retrying DeleteMessage on the
	// source folder resolves it.
	MoveDuplicated
	// MoveCompleted means the message now only lives in the target folder.
	MoveCompleted
)

func (r MoveResult) String() string {
	switch r {
	case MoveSkipped:
		return "skipped"
	case MoveFailed:
		return "failed"
	case MoveDuplicated:
		return "duplicated"
	case MoveCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// OK reports whether the move fully completed.
func (r MoveResult) OK() bool {
	return r == MoveCompleted
}

// MoveGap is the payload of message.move_incomplete events.
type MoveGap struct {
	Message model.Message
	From    model.Folder
	To      model.Folder
}
