package stream

// AuthenticationError means the request carried no usable credential when
// one was required. The connection is rejected outright.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string { return e.Reason }

// AuthorizationError means the credential lacks the scope, or the account
// does not own the resource, for one specific subscribe request. Other
// streams on the same connection are unaffected.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// ValidationError means a required stream parameter was missing or invalid.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// UnknownStreamError means the requested stream name does not exist.
type UnknownStreamError struct {
	Name string
}

func (e *UnknownStreamError) Error() string { return "unknown stream type: " + e.Name }
