package errors

import (
	stderrors "errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/status"

	"github.com/louisbranch/mythos/internal/platform/errors/i18n"
)

// Domain is the error domain for Mythos errors.
const Domain = "github.com/louisbranch/mythos"

// Error is a coded story error. Message is for logs; users see the
// catalog message for Code rendered with Metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// New returns an error with no metadata or cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata returns an error whose user message is templated from metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap returns an error carrying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// WrapWithMetadata returns an error carrying both metadata and cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata, Cause: cause}
}

// Sentinel returns a code-only error usable as an errors.Is target.
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}

// GetCode extracts the domain code from err, or CodeUnknown when err carries none.
func GetCode(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given domain code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return stderrors.Is(err, Sentinel(code))
}

// Description is the client-facing rendering of an error.
type Description struct {
	Code      Code
	Message   string
	Retryable bool
	// Metadata is nil for uncoded errors so internals never leak.
	Metadata map[string]string
}

// Describe localizes err with catalog. Uncoded errors become CodeUnknown.
func Describe(err error, catalog *i18n.Catalog) Description {
	if catalog == nil {
		catalog = i18n.GetCatalog(i18n.BaseLocale)
	}
	code := CodeUnknown
	var metadata map[string]string
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		code = domainErr.Code
		if code != CodeUnknown {
			metadata = domainErr.Metadata
		}
	}
	return Description{
		Code:      code,
		Message:   catalog.Format(string(code), metadata),
		Retryable: code.Retryable(),
		Metadata:  metadata,
	}
}

// GRPCStatus lets status.FromError and status.Code read the error. Details
// carry the code as ErrorInfo and the base-locale message.
func (e *Error) GRPCStatus() *status.Status {
	st := status.New(e.Code.GRPCCode(), e.Error())
	catalog := i18n.GetCatalog(i18n.BaseLocale)
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason:   string(e.Code),
			Domain:   Domain,
			Metadata: e.Metadata,
		},
		&errdetails.LocalizedMessage{
			Locale:  catalog.Locale(),
			Message: catalog.Format(string(e.Code), e.Metadata),
		},
	)
	if err != nil {
		return st
	}
	return detailed
}
