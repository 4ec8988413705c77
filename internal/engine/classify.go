package engine

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// FailureClass is the reconciler's view of a provider error.
type FailureClass int

const (
	// ClassFailure is any error the run cannot recover from.
	ClassFailure FailureClass = iota
	// ClassConflict means the resource (or statement, route) already exists.
	ClassConflict
	// ClassNotFound means the resource does not exist.
	ClassNotFound
)

func (c FailureClass) String() string {
	switch c {
	case ClassConflict:
		return "conflict"
	case ClassNotFound:
		return "not-found"
	default:
		return "failure"
	}
}

// conflictCodes are provider error codes meaning "already exists" or
// "already being changed". BucketAlreadyExists is deliberately absent: it
// means another account owns the name.
var conflictCodes = map[string]bool{
	"BucketAlreadyOwnedByYou":        true,
	"EntityAlreadyExists":            true,
	"ResourceConflictException":      true,
	"ConflictException":              true,
	"ResourceAlreadyExistsException": true,
}

var notFoundCodes = map[string]bool{
	"NotFound":                  true,
	"NoSuchBucket":              true,
	"NoSuchEntity":              true,
	"NotFoundException":         true,
	"ResourceNotFoundException": true,
	"ParameterNotFound":         true,
}

// Classify maps a provider error onto the reconciler's taxonomy using the
// API error code. Errors that carry no code fall back to message matching,
// which is fragile and only kept for wrapped or non-SDK errors.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassFailure
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch code := ae.ErrorCode(); {
		case conflictCodes[code]:
			return ClassConflict
		case notFoundCodes[code]:
			return ClassNotFound
		default:
			return ClassFailure
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already exists"), strings.Contains(msg, "conflictexception"):
		return ClassConflict
	case strings.Contains(msg, "not found"), strings.Contains(msg, "notfound"):
		return ClassNotFound
	}
	return ClassFailure
}
