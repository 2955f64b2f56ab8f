package lifecycle

// lifecycleFailureError signals a failed load or unload. The state machine
// transitions to failed; retry policy belongs to the caller.
type lifecycleFailureError struct {
	op  string
	msg string
}

func (e lifecycleFailureError) Error() string { return e.op + " failed: " + e.msg }

// ErrLifecycleFailure constructs a lifecycleFailureError for the given operation.
func ErrLifecycleFailure(op, msg string) error { return lifecycleFailureError{op: op, msg: msg} }

// IsLifecycleFailure reports whether err is a load/unload failure.
func IsLifecycleFailure(err error) bool {
	_, ok := err.(lifecycleFailureError)
	return ok
}

// notLoadedError signals an operation that requires a loaded model.
type notLoadedError struct{ state State }

func (e notLoadedError) Error() string { return "model not loaded (state: " + string(e.state) + ")" }

// ErrNotLoaded constructs a notLoadedError for the given state.
func ErrNotLoaded(s State) error { return notLoadedError{state: s} }

// IsNotLoaded reports whether err indicates the model was not in the loaded state.
func IsNotLoaded(err error) bool {
	_, ok := err.(notLoadedError)
	return ok
}
