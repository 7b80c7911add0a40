package dds

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReturnCodeOf(t *testing.T) {
	cases := []struct {
		rc    int32
		code  ReturnCode
		class ErrorClass
	}{
		{-1, RetcodeError, ClassFatal},
		{-2, RetcodeUnsupported, ClassInvalid},
		{-3, RetcodeBadParameter, ClassInvalid},
		{-4, RetcodePreconditionNotMet, ClassInvalid},
		{-5, RetcodeOutOfResources, ClassTransient},
		{-6, RetcodeNotEnabled, ClassInvalid},
		{-7, RetcodeImmutablePolicy, ClassInvalid},
		{-8, RetcodeAlreadyDeleted, ClassFatal},
		{-9, RetcodeTimeout, ClassTransient},
		{-10, RetcodeNoData, ClassTransient},
		{-11, RetcodeIllegalOperation, ClassInvalid},
		{-12, RetcodeNotAllowedBySecurity, ClassInvalid},
		{-15, RetcodeInProgress, ClassTransient},
		{-16, RetcodeTryAgain, ClassTransient},
		{-17, RetcodeInterrupted, ClassTransient},
		{-18, RetcodeNotAllowed, ClassInvalid},
		{-19, RetcodeHostNotFound, ClassTransient},
		{-20, RetcodeNoNetwork, ClassTransient},
		{-21, RetcodeNoConnection, ClassTransient},
		{-22, RetcodeNotEnoughSpace, ClassTransient},
		{-23, RetcodeOutOfRange, ClassInvalid},
		{-24, RetcodeResultTooLarge, ClassInvalid},
		{9, RetcodeTimeout, ClassTransient},
	}
	for i, c := range cases {
		code := ReturnCodeOf(c.rc)
		assert.Equal(t, c.code, code, "[%d]", i)
		assert.Equal(t, c.class, code.Class(), "[%d]", i)
		assert.NotContains(t, code.String(), "return code", "[%d]", i)
	}

	for _, rc := range []int32{-13, -14, -25, 99} {
		assert.Panics(t, func() { ReturnCodeOf(rc) }, "rc %d", rc)
	}
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check("op", 0))
	assert.NoError(t, check("op", 3))

	err := check("write", -9)
	require.Error(t, err)
	assert.Equal(t, "dds: write: timeout", err.Error())
	assert.ErrorIs(t, err, RetcodeTimeout)
	assert.True(t, IsTransient(err))
	assert.True(t, IsTransient(fmt.Errorf("wrapped: %w", err)))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "write", e.Op)

	assert.Equal(t, RetcodeOK, CodeOf(nil))
	assert.Equal(t, RetcodeError, CodeOf(errors.New("foreign")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrTypeMismatch))
}

func TestDomainCreationError(t *testing.T) {
	cases := []struct {
		rc   int32
		kind DomainCreationKind
		code ReturnCode
	}{
		{-3, DomainBadParameter, RetcodeBadParameter},
		{-4, DomainPreconditionNotMet, RetcodePreconditionNotMet},
		{-5, DomainError, RetcodeError},
		{-1, DomainError, RetcodeError},
	}
	for i, c := range cases {
		err := domainCreationError(7, int32(c.rc))
		var dce *DomainCreationError
		require.ErrorAs(t, err, &dce, "[%d]", i)
		assert.Equal(t, c.kind, dce.Kind, "[%d]", i)
		assert.Equal(t, uint32(7), dce.DomainID, "[%d]", i)
		assert.ErrorIs(t, err, c.code, "[%d]", i)
	}

	cause := errors.New("bad yaml")
	err := &DomainCreationError{DomainID: 1, Kind: DomainBadParameter, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, RetcodeBadParameter)
	assert.Contains(t, err.Error(), "bad yaml")
}

func TestParticipantLookupError(t *testing.T) {
	cases := []struct {
		rc   int32
		kind ParticipantLookupKind
		code ReturnCode
	}{
		{-11, LookupIllegalOperation, RetcodeIllegalOperation},
		{-8, LookupAlreadyDeleted, RetcodeAlreadyDeleted},
		{-1, LookupInternalError, RetcodeError},
		{-3, LookupInternalError, RetcodeError},
	}
	for i, c := range cases {
		err := participantLookupError(c.rc)
		var ple *ParticipantLookupError
		require.ErrorAs(t, err, &ple, "[%d]", i)
		assert.Equal(t, c.kind, ple.Kind, "[%d]", i)
		assert.ErrorIs(t, err, c.code, "[%d]", i)
	}
}
