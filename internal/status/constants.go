// internal/status/constants.go
package status

// Station Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerStation is the fixed number of logical slots per station.
const SlotsPerStation = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the station health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the error code of the last failed job.
const SlotLastErrorCode = 1

// SlotSecondsInError holds how long (in seconds) the station has shown Fail.
const SlotSecondsInError = 2

// SlotPresence is 1 while a token is inserted.
const SlotPresence = 3

// SlotTokenKind holds the classified kind (see KindNone...).
const SlotTokenKind = 4

// SlotJobsOK / SlotJobsFailed count jobs since start; they wrap at 65535.
const SlotJobsOK = 5
const SlotJobsFailed = 6

// SlotTokenSizeKiB holds the classified size, rounded up to KiB.
const SlotTokenSizeKiB = 7

// SlotProtectRegion holds the protect region code read back after the job.
const SlotProtectRegion = 8

// ---- RESERVED RANGE ----

// Slots 9-10 are reserved for future use.
const SlotReservedStart = 9
const SlotReservedEnd = 10

// ---- STATION NAME ----

// SlotStationNameStart is the first slot used for the station name.
// The name is always placed at the END of the status block.
const SlotStationNameStart = 11

// SlotStationNameSlots is the number of slots reserved for the name.
const SlotStationNameSlots = 8

// SlotStationNameEnd is the last slot used for the name (inclusive).
const SlotStationNameEnd = SlotStationNameStart + SlotStationNameSlots - 1

// ---- LIMITS ----

// StationNameMaxChars is the maximum number of ASCII characters stored for the name.
const StationNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown represents boot state, before the first presence decision.
const HealthUnknown uint16 = 0

// HealthIdle: waiting for a token.
const HealthIdle uint16 = 1

// HealthBusy: a job is running.
const HealthBusy uint16 = 2

// HealthPass: the last job on the inserted token succeeded.
const HealthPass uint16 = 3

// HealthFail: the last job on the inserted token failed.
const HealthFail uint16 = 4

// ---- TOKEN KINDS ----

const (
	KindNone   uint16 = 0
	KindEeprom uint16 = 1
	KindFlash  uint16 = 2
)

// ---- ERROR CODES ----

const (
	CodeOK             uint16 = 0
	CodeGeneric        uint16 = 1
	CodeInvalidInput   uint16 = 2
	CodeTimeout        uint16 = 3
	CodeBus            uint16 = 4
	CodeVerifyMismatch uint16 = 5
	CodeWrongKind      uint16 = 6
	CodeNoImage        uint16 = 7
)
