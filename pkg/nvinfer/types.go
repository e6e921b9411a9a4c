package nvinfer

import "fmt"

// Severity is the native logger's message severity.
type Severity int32

const (
	SeverityInternalError Severity = 0
	SeverityError         Severity = 1
	SeverityWarning       Severity = 2
	SeverityInfo          Severity = 3
	SeverityVerbose       Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityInternalError:
		return "INTERNAL_ERROR"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	case SeverityVerbose:
		return "VERBOSE"
	default:
		return fmt.Sprintf("Severity(%d)", int32(s))
	}
}

// DataType is a tensor element type. The values match the native
// nvinfer1::DataType codes.
type DataType int32

const (
	Float DataType = 0
	Half  DataType = 1
	Int8  DataType = 2
	Int32 DataType = 3
	Bool  DataType = 4
	UInt8 DataType = 5
	FP8   DataType = 6
	BF16  DataType = 7
	Int64 DataType = 8
)

// Size returns the element width in bytes.
func (d DataType) Size() int {
	switch d {
	case Float, Int32:
		return 4
	case Half, BF16:
		return 2
	case Int8, Bool, UInt8, FP8:
		return 1
	case Int64:
		return 8
	default:
		panic(fmt.Sprintf("unknown data type code %d", int32(d)))
	}
}

func (d DataType) String() string {
	switch d {
	case Float:
		return "FLOAT"
	case Half:
		return "HALF"
	case Int8:
		return "INT8"
	case Int32:
		return "INT32"
	case Bool:
		return "BOOL"
	case UInt8:
		return "UINT8"
	case FP8:
		return "FP8"
	case BF16:
		return "BF16"
	case Int64:
		return "INT64"
	default:
		return fmt.Sprintf("DataType(%d)", int32(d))
	}
}

// DataTypeFromCode decodes a native data type code. An out-of-range code
// means the native library broke its contract, so it panics rather than
// returning an error.
func DataTypeFromCode(code int32) DataType {
	d := DataType(code)
	if code < int32(Float) || code > int32(Int64) {
		panic(fmt.Sprintf("invalid data type code %d", code))
	}
	return d
}

// TensorIOMode reports whether a tensor is an engine input or output.
type TensorIOMode int32

const (
	// TensorIONone marks a tensor that is neither input nor output.
	TensorIONone TensorIOMode = 0
	// TensorIOInput marks an input to the engine.
	TensorIOInput TensorIOMode = 1
	// TensorIOOutput marks an output of the engine.
	TensorIOOutput TensorIOMode = 2
)

func (m TensorIOMode) IsInput() bool {
	return m == TensorIOInput
}

func (m TensorIOMode) String() string {
	switch m {
	case TensorIONone:
		return "NONE"
	case TensorIOInput:
		return "INPUT"
	case TensorIOOutput:
		return "OUTPUT"
	default:
		return fmt.Sprintf("TensorIOMode(%d)", int32(m))
	}
}

// IOModeFromCode decodes a native io mode code, panicking on out-of-range
// values for the same reason as DataTypeFromCode.
func IOModeFromCode(code int32) TensorIOMode {
	switch m := TensorIOMode(code); m {
	case TensorIONone, TensorIOInput, TensorIOOutput:
		return m
	default:
		panic(fmt.Sprintf("invalid tensor io mode %d", code))
	}
}
