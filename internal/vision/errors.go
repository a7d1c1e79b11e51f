package vision

import "errors"

// Error is returned by every vision operation that fails. Kind tells callers
// (and the HTTP layer) what category of failure occurred.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// ErrorKind categorizes vision failures.
type ErrorKind int

const (
	// KindConfiguration indicates a missing or invalid configuration attribute.
	KindConfiguration ErrorKind = iota
	// KindUnsupportedMediaType indicates an encoded image that is not JPEG or PNG.
	KindUnsupportedMediaType
	// KindUnknownCamera indicates a camera name that is not a configured dependency.
	KindUnknownCamera
	// KindEndpointInvocation indicates a transport failure or non-2xx status from SageMaker.
	KindEndpointInvocation
	// KindMalformedResponse indicates an endpoint body missing expected keys or with bad indexes.
	KindMalformedResponse
	// KindNotImplemented indicates a capability this service does not provide.
	KindNotImplemented
	// KindInvalidArgument indicates a bad per-call argument such as a negative count.
	KindInvalidArgument
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindUnsupportedMediaType:
		return "unsupported_media_type"
	case KindUnknownCamera:
		return "unknown_camera"
	case KindEndpointInvocation:
		return "endpoint_invocation"
	case KindMalformedResponse:
		return "malformed_response"
	case KindNotImplemented:
		return "not_implemented"
	case KindInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ErrNotImplemented is returned by the point-cloud and do-command capabilities.
var ErrNotImplemented = &Error{Kind: KindNotImplemented, Message: "not implemented"}
