package lifecycle

// State represents the lifecycle state of the on-device model.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateUnloading State = "unloading"
	StateFailed    State = "failed"
)

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State     State
	ModelPath string
	Err       string
}
