package calc

import "fmt"

// ErrorKind represents standard spreadsheet error values following Excel
// conventions
type ErrorKind uint8

const (
	ErrNull        ErrorKind = 1  // #NULL! - no cells in common between ranges
	ErrDiv0        ErrorKind = 2  // #DIV/0! - division by zero
	ErrValue       ErrorKind = 3  // #VALUE! - wrong type of argument or operand
	ErrRef         ErrorKind = 4  // #REF! - invalid cell reference
	ErrName        ErrorKind = 5  // #NAME? - unrecognized function or name
	ErrNum         ErrorKind = 6  // #NUM! - invalid numeric argument or result
	ErrNA          ErrorKind = 7  // #N/A - value not available
	ErrGettingData ErrorKind = 8  // #GETTING_DATA - value still loading
	ErrSpill       ErrorKind = 9  // #SPILL! - array result blocked
	ErrCalc        ErrorKind = 10 // #CALC! - circular or otherwise uncomputable
)

// errorCodes maps error kinds to their display codes. the codes are matched
// exactly, case and punctuation included.
var errorCodes = map[ErrorKind]string{
	ErrNull:        "#NULL!",
	ErrDiv0:        "#DIV/0!",
	ErrValue:       "#VALUE!",
	ErrRef:         "#REF!",
	ErrName:        "#NAME?",
	ErrNum:         "#NUM!",
	ErrNA:          "#N/A",
	ErrGettingData: "#GETTING_DATA",
	ErrSpill:       "#SPILL!",
	ErrCalc:        "#CALC!",
}

var errorKindsByCode = func() map[string]ErrorKind {
	m := make(map[string]ErrorKind, len(errorCodes))
	for kind, code := range errorCodes {
		m[code] = kind
	}
	return m
}()

// ErrorCode returns the display code for an error kind, or the empty string
// for an unknown kind.
func ErrorCode(kind ErrorKind) string {
	return errorCodes[kind]
}

// ErrorKindFromCode maps a display code such as "#N/A" back to its kind.
// matching is case-insensitive, the way the code would be typed into a cell.
func ErrorKindFromCode(code string) (ErrorKind, bool) {
	kind, ok := errorKindsByCode[asciiUpper(code)]
	return kind, ok
}

func (k ErrorKind) String() string {
	if code, ok := errorCodes[k]; ok {
		return code
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// ErrorValue is a computed spreadsheet error. it flows through evaluation as
// an ordinary Value and is compared by kind only; Message is diagnostic.
type ErrorValue struct {
	Kind    ErrorKind
	Message string
}

func NewErrorValue(kind ErrorKind, message string) *ErrorValue {
	return &ErrorValue{Kind: kind, Message: message}
}

func newError(kind ErrorKind) *ErrorValue {
	return &ErrorValue{Kind: kind}
}

func (e *ErrorValue) Code() string {
	return errorCodes[e.Kind]
}

func (e *ErrorValue) String() string {
	return e.Code()
}

// Equal reports whether both values carry the same error kind.
func (e *ErrorValue) Equal(other *ErrorValue) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Kind == other.Kind
}

// inspectError extracts an error from v for ISERROR, ISNA and ISERR.
// text that is exactly an error code counts as that error here, and only
// here.
func inspectError(v Value) (*ErrorValue, bool) {
	switch x := v.(type) {
	case *ErrorValue:
		return x, true
	case Text:
		if kind, ok := errorKindsByCode[string(x)]; ok {
			return newError(kind), true
		}
	}
	return nil, false
}

// IsError reports whether v is any error value.
func IsError(v Value) bool {
	_, ok := inspectError(v)
	return ok
}

// IsNA reports whether v is the #N/A error.
func IsNA(v Value) bool {
	e, ok := inspectError(v)
	return ok && e.Kind == ErrNA
}

// IsErr reports whether v is an error other than #N/A.
func IsErr(v Value) bool {
	e, ok := inspectError(v)
	return ok && e.Kind != ErrNA
}

// firstError returns the left-most error among values, or nil.
func firstError(values ...Value) *ErrorValue {
	for _, v := range values {
		if e, ok := v.(*ErrorValue); ok {
			return e
		}
	}
	return nil
}

// AppErrorCode represents gRPC-style error codes for application-level errors.
// codes that make no sense for a calculation engine, like unauthenticated,
// are skipped.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates the caller passed an invalid argument, such
	// as malformed formula text or too few matrix operands.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a sheet) was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// FailedPrecondition indicates the operation was rejected because the
	// engine is not in a state required for it.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means an address was past the valid grid.
	OutOfRange AppErrorCode = 11

	// Unimplemented indicates the operation is not supported.
	Unimplemented AppErrorCode = 12

	// Internal errors. Means some invariants expected by the engine have been
	// broken.
	Internal AppErrorCode = 13
)

var appErrorCodeNames = map[AppErrorCode]string{
	OK:                 "OK",
	Unknown:            "UNKNOWN",
	InvalidArgument:    "INVALID_ARGUMENT",
	NotFound:           "NOT_FOUND",
	AlreadyExists:      "ALREADY_EXISTS",
	FailedPrecondition: "FAILED_PRECONDITION",
	OutOfRange:         "OUT_OF_RANGE",
	Unimplemented:      "UNIMPLEMENTED",
	Internal:           "INTERNAL",
}

func (c AppErrorCode) String() string {
	if name, ok := appErrorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("AppErrorCode(%d)", int(c))
}

// AppError represents usage errors at the API level, never formula errors.
// formula errors are ErrorValues.
type AppError struct {
	Code    AppErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// wrapApplicationError creates an application error around a cause
func wrapApplicationError(code AppErrorCode, err error, format string, args ...any) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func asciiUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 32
		}
	}
	return string(b)
}
