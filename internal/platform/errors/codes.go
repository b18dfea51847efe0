// Package errors provides structured error handling with i18n support.
package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request shape errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Story graph errors
	CodeNodeNotFound   Code = "NODE_NOT_FOUND"
	CodeChoiceNotFound Code = "CHOICE_NOT_FOUND"

	// Choice validation errors
	CodeChoiceNodeMismatch Code = "CHOICE_NODE_MISMATCH"
	CodeInputRequired      Code = "INPUT_REQUIRED"
	CodeInvalidInputFormat Code = "INVALID_INPUT_FORMAT"

	// Character errors
	CodeCharacterNotFound Code = "CHARACTER_NOT_FOUND"
	CodeCharacterDeceased Code = "CHARACTER_DECEASED"
	CodeClassNotFound     Code = "CLASS_NOT_FOUND"

	// Generation errors
	CodeGenerationUnavailable Code = "GENERATION_UNAVAILABLE"
	CodeGenerationParseError  Code = "GENERATION_PARSE_ERROR"

	// Storage errors
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - malformed requests and input
	case CodeInvalidArgument,
		CodeInputRequired,
		CodeInvalidInputFormat:
		return codes.InvalidArgument

	// FailedPrecondition - current state does not allow the transition
	case CodeChoiceNodeMismatch,
		CodeCharacterDeceased:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNodeNotFound,
		CodeChoiceNotFound,
		CodeCharacterNotFound,
		CodeClassNotFound:
		return codes.NotFound

	// Unavailable - external collaborator failed, safe to resubmit
	case CodeGenerationUnavailable,
		CodeGenerationParseError:
		return codes.Unavailable

	case CodePersistenceFailure:
		return codes.Aborted

	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP response statuses.
func (c Code) HTTPStatus() int {
	switch c.GRPCCode() {
	case codes.InvalidArgument:
		if c == CodeInputRequired || c == CodeInvalidInputFormat {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.NotFound:
		return http.StatusNotFound
	case codes.Unavailable:
		if c == CodeGenerationParseError {
			return http.StatusBadGateway
		}
		return http.StatusServiceUnavailable
	case codes.Aborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether resubmitting the same request may succeed.
// Validation failures describe a stale or malformed request and never are.
func (c Code) Retryable() bool {
	switch c {
	case CodeGenerationUnavailable, CodeGenerationParseError, CodePersistenceFailure:
		return true
	default:
		return false
	}
}
