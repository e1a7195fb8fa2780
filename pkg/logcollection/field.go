package logcollection

import (
	"fmt"
	"time"
)

// LogField is a structured log field independent of any backend.
type LogField struct {
	Key   string
	Value interface{}
	Type  FieldType
}

// FieldType identifies how the field value should be encoded.
type FieldType int

const (
	StringField FieldType = iota
	IntField
	Int64Field
	Float64Field
	BoolField
	DurationField
	TimeField
	ErrorField
	ObjectField
)

func (ft FieldType) String() string {
	switch ft {
	case StringField:
		return "string"
	case IntField:
		return "int"
	case Int64Field:
		return "int64"
	case Float64Field:
		return "float64"
	case BoolField:
		return "bool"
	case DurationField:
		return "duration"
	case TimeField:
		return "time"
	case ErrorField:
		return "error"
	case ObjectField:
		return "object"
	default:
		return "unknown"
	}
}

// String creates a string field
func String(key, value string) LogField {
	return LogField{Key: key, Value: value, Type: StringField}
}

// Int creates an integer field
func Int(key string, value int) LogField {
	return LogField{Key: key, Value: value, Type: IntField}
}

// Int64 creates an int64 field
func Int64(key string, value int64) LogField {
	return LogField{Key: key, Value: value, Type: Int64Field}
}

// Float64 creates a float64 field
func Float64(key string, value float64) LogField {
	return LogField{Key: key, Value: value, Type: Float64Field}
}

// Bool creates a boolean field
func Bool(key string, value bool) LogField {
	return LogField{Key: key, Value: value, Type: BoolField}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) LogField {
	return LogField{Key: key, Value: value, Type: DurationField}
}

// Time creates a time field
func Time(key string, value time.Time) LogField {
	return LogField{Key: key, Value: value, Type: TimeField}
}

// Error creates an error field (always uses "error" as key)
func Error(err error) LogField {
	return LogField{Key: "error", Value: err, Type: ErrorField}
}

// ErrorWithKey creates an error field with a custom key
func ErrorWithKey(key string, err error) LogField {
	return LogField{Key: key, Value: err, Type: ErrorField}
}

// Object creates an object field for complex types
func Object(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value, Type: ObjectField}
}

// Unit creates a unit_id field
func Unit(unitID string) LogField {
	return String("unit_id", unitID)
}

// Stream creates a stream field
func Stream(stream StreamType) LogField {
	return String("stream", string(stream))
}

// Component creates a component field
func Component(component string) LogField {
	return String("component", component)
}

// PID creates a process ID field
func PID(pid int) LogField {
	return Int("pid", pid)
}

// ToMap converts a slice of fields to a map
func ToMap(fields []LogField) map[string]interface{} {
	result := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		result[field.Key] = field.Value
	}
	return result
}

func (f LogField) String() string {
	return fmt.Sprintf("%s=%v", f.Key, f.Value)
}
