package reconciler

// loopState names the reconciler's change-stream consumption states —
// §9's "model as a state machine" instruction for the change-stream
// reader's coroutine control flow.
type loopState string

const (
	stateIdle         loopState = "idle"
	stateWaitBatch    loopState = "wait_batch"
	stateProcessEvent loopState = "process_event"
)
