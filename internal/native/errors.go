package native

// capabilityAbsentError signals that no on-device runtime exists on this host.
// Expected on unsupported hosts, not fatal; callers fall back.
type capabilityAbsentError struct{}

func (capabilityAbsentError) Error() string { return "native inference capability absent" }

// ErrCapabilityAbsent constructs a capabilityAbsentError.
func ErrCapabilityAbsent() error { return capabilityAbsentError{} }

// IsCapabilityAbsent reports whether err indicates a missing native runtime.
func IsCapabilityAbsent(err error) bool {
	_, ok := err.(capabilityAbsentError)
	return ok
}

// generationFailureError signals a rejected call or malformed data from the
// runtime. Scoped to the failing call; lifecycle state is unaffected.
type generationFailureError struct{ msg string }

func (e generationFailureError) Error() string { return "generation failure: " + e.msg }

// ErrGenerationFailure constructs a generationFailureError.
func ErrGenerationFailure(msg string) error { return generationFailureError{msg: msg} }

// IsGenerationFailure reports whether err came from a failed generation call.
func IsGenerationFailure(err error) bool {
	_, ok := err.(generationFailureError)
	return ok
}
