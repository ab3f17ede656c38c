package workflow

// TransitionRecorder counts successful transitions, keyed by entity and
// action. Implementations must be safe for concurrent use.
type TransitionRecorder interface {
	RecordTransition(entity Entity, action Action)
}
