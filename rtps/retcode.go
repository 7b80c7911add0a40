package rtps

// Return codes. Every function in the handle API returns either a
// non-negative result or one of these negated values.
const (
	RetcodeOK                   int32 = 0
	RetcodeError                int32 = -1
	RetcodeUnsupported          int32 = -2
	RetcodeBadParameter         int32 = -3
	RetcodePreconditionNotMet   int32 = -4
	RetcodeOutOfResources       int32 = -5
	RetcodeNotEnabled           int32 = -6
	RetcodeImmutablePolicy      int32 = -7
	RetcodeAlreadyDeleted       int32 = -8
	RetcodeTimeout              int32 = -9
	RetcodeNoData               int32 = -10
	RetcodeIllegalOperation     int32 = -11
	RetcodeNotAllowedBySecurity int32 = -12
	RetcodeInProgress           int32 = -15
	RetcodeTryAgain             int32 = -16
	RetcodeInterrupted          int32 = -17
	RetcodeNotAllowed           int32 = -18
	RetcodeHostNotFound         int32 = -19
	RetcodeNoNetwork            int32 = -20
	RetcodeNoConnection         int32 = -21
	RetcodeNotEnoughSpace       int32 = -22
	RetcodeOutOfRange           int32 = -23
	RetcodeResultTooLarge       int32 = -24
)

// DomainDefault asks for the configured default domain. It is not a valid
// domain id for participant creation.
const DomainDefault = 0xFFFFFFFF

// MaxDomainID is the largest domain id the default port mapping supports.
const MaxDomainID = 232
