package dds

import (
	"errors"
	"fmt"
)

// ReturnCode is the magnitude of a transport return code.
type ReturnCode int32

const (
	RetcodeOK                   ReturnCode = 0
	RetcodeError                ReturnCode = 1
	RetcodeUnsupported          ReturnCode = 2
	RetcodeBadParameter         ReturnCode = 3
	RetcodePreconditionNotMet   ReturnCode = 4
	RetcodeOutOfResources       ReturnCode = 5
	RetcodeNotEnabled           ReturnCode = 6
	RetcodeImmutablePolicy      ReturnCode = 7
	RetcodeAlreadyDeleted       ReturnCode = 8
	RetcodeTimeout              ReturnCode = 9
	RetcodeNoData               ReturnCode = 10
	RetcodeIllegalOperation     ReturnCode = 11
	RetcodeNotAllowedBySecurity ReturnCode = 12
	RetcodeInProgress           ReturnCode = 15
	RetcodeTryAgain             ReturnCode = 16
	RetcodeInterrupted          ReturnCode = 17
	RetcodeNotAllowed           ReturnCode = 18
	RetcodeHostNotFound         ReturnCode = 19
	RetcodeNoNetwork            ReturnCode = 20
	RetcodeNoConnection         ReturnCode = 21
	RetcodeNotEnoughSpace       ReturnCode = 22
	RetcodeOutOfRange           ReturnCode = 23
	RetcodeResultTooLarge       ReturnCode = 24
)

var retcodeNames = map[ReturnCode]string{
	RetcodeOK:                   "ok",
	RetcodeError:                "error",
	RetcodeUnsupported:          "unsupported",
	RetcodeBadParameter:         "bad parameter",
	RetcodePreconditionNotMet:   "precondition not met",
	RetcodeOutOfResources:       "out of resources",
	RetcodeNotEnabled:           "not enabled",
	RetcodeImmutablePolicy:      "immutable policy",
	RetcodeAlreadyDeleted:       "already deleted",
	RetcodeTimeout:              "timeout",
	RetcodeNoData:               "no data",
	RetcodeIllegalOperation:     "illegal operation",
	RetcodeNotAllowedBySecurity: "not allowed by security",
	RetcodeInProgress:           "in progress",
	RetcodeTryAgain:             "try again",
	RetcodeInterrupted:          "interrupted",
	RetcodeNotAllowed:           "not allowed",
	RetcodeHostNotFound:         "host not found",
	RetcodeNoNetwork:            "no network",
	RetcodeNoConnection:         "no connection",
	RetcodeNotEnoughSpace:       "not enough space",
	RetcodeOutOfRange:           "out of range",
	RetcodeResultTooLarge:       "result too large",
}

// ReturnCodeOf translates a transport result by absolute value. Codes
// outside the known set, including the reserved 13 and 14, panic.
func ReturnCodeOf(rc int32) ReturnCode {
	if rc < 0 {
		rc = -rc
	}
	c := ReturnCode(rc)
	if _, ok := retcodeNames[c]; !ok {
		panic(fmt.Sprintf("dds: unknown return code %d", rc))
	}
	return c
}

func (c ReturnCode) String() string {
	if s, ok := retcodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("return code %d", int32(c))
}

func (c ReturnCode) Error() string {
	return "dds: " + c.String()
}

// ErrorClass groups return codes by how a caller should react to them.
type ErrorClass int

const (
	// ClassTransient conditions may clear up on retry.
	ClassTransient ErrorClass = iota
	// ClassInvalid is a bad argument or a call in the wrong state.
	ClassInvalid
	// ClassFatal is an internal failure or use of a deleted entity.
	ClassFatal
)

func (ec ErrorClass) String() string {
	switch ec {
	case ClassTransient:
		return "transient"
	case ClassInvalid:
		return "invalid"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

func (c ReturnCode) Class() ErrorClass {
	switch c {
	case RetcodeTimeout, RetcodeNoData, RetcodeOutOfResources, RetcodeTryAgain, RetcodeInProgress,
		RetcodeInterrupted, RetcodeNotEnoughSpace, RetcodeNoNetwork, RetcodeNoConnection, RetcodeHostNotFound:
		return ClassTransient
	case RetcodeError, RetcodeAlreadyDeleted:
		return ClassFatal
	}
	return ClassInvalid
}

// Error is a failed operation with the code the transport returned.
type Error struct {
	Op   string
	Code ReturnCode
}

func (e *Error) Error() string {
	return fmt.Sprintf("dds: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Code
}

// check turns a transport result into an error; non-negative values are
// success.
func check(op string, rc int32) error {
	if rc >= 0 {
		return nil
	}
	return &Error{Op: op, Code: ReturnCodeOf(rc)}
}

// CodeOf extracts the return code carried by err, RetcodeError for foreign
// errors and RetcodeOK for nil.
func CodeOf(err error) ReturnCode {
	if err == nil {
		return RetcodeOK
	}
	var c ReturnCode
	if errors.As(err, &c) {
		return c
	}
	return RetcodeError
}

// IsTransient reports whether err carries a transient return code.
func IsTransient(err error) bool {
	return err != nil && CodeOf(err).Class() == ClassTransient
}

// ErrTypeMismatch is returned when a type-erased entity is converted to a
// typed one of a different type.
var ErrTypeMismatch = errors.New("dds: type mismatch")

type DomainCreationKind int

const (
	DomainBadParameter DomainCreationKind = iota
	DomainPreconditionNotMet
	DomainError
)

// DomainCreationError is returned when a participant or domain cannot be
// created.
type DomainCreationError struct {
	DomainID uint32
	Kind     DomainCreationKind
	Err      error // configuration error, if any
}

func (e *DomainCreationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dds: domain %d: %s", e.DomainID, e.Err)
	}
	switch e.Kind {
	case DomainBadParameter:
		return fmt.Sprintf("dds: domain %d: bad parameter", e.DomainID)
	case DomainPreconditionNotMet:
		return fmt.Sprintf("dds: domain %d: already bound to another configuration", e.DomainID)
	}
	return fmt.Sprintf("dds: domain %d: creation failed", e.DomainID)
}

func (e *DomainCreationError) Unwrap() []error {
	code := RetcodeError
	switch e.Kind {
	case DomainBadParameter:
		code = RetcodeBadParameter
	case DomainPreconditionNotMet:
		code = RetcodePreconditionNotMet
	}
	if e.Err != nil {
		return []error{code, e.Err}
	}
	return []error{code}
}

func domainCreationError(id uint32, rc int32) error {
	switch ReturnCodeOf(rc) {
	case RetcodeBadParameter:
		return &DomainCreationError{DomainID: id, Kind: DomainBadParameter}
	case RetcodePreconditionNotMet:
		return &DomainCreationError{DomainID: id, Kind: DomainPreconditionNotMet}
	}
	return &DomainCreationError{DomainID: id, Kind: DomainError}
}

type ParticipantLookupKind int

const (
	LookupInternalError ParticipantLookupKind = iota
	LookupIllegalOperation
	LookupAlreadyDeleted
)

// ParticipantLookupError is returned when the participant owning an entity
// cannot be resolved.
type ParticipantLookupError struct {
	Kind ParticipantLookupKind
}

func (e *ParticipantLookupError) Error() string {
	switch e.Kind {
	case LookupIllegalOperation:
		return "dds: participant lookup: entity has no participant"
	case LookupAlreadyDeleted:
		return "dds: participant lookup: entity already deleted"
	}
	return "dds: participant lookup: internal error"
}

func (e *ParticipantLookupError) Unwrap() error {
	switch e.Kind {
	case LookupIllegalOperation:
		return RetcodeIllegalOperation
	case LookupAlreadyDeleted:
		return RetcodeAlreadyDeleted
	}
	return RetcodeError
}

func participantLookupError(rc int32) error {
	switch ReturnCodeOf(rc) {
	case RetcodeIllegalOperation:
		return &ParticipantLookupError{Kind: LookupIllegalOperation}
	case RetcodeAlreadyDeleted:
		return &ParticipantLookupError{Kind: LookupAlreadyDeleted}
	}
	return &ParticipantLookupError{Kind: LookupInternalError}
}
