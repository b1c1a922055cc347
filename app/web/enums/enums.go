// Package enums provides type-safe enumeration types for the job board.
//
// Each enum is a small struct with a display name, so values can't be built outside of this
// package and the zero value means "not set". For each type there are:
//   - exported values (e.g. JobTypeRemote) and a Values slice in display order
//   - String() for the display representation
//   - Parse function (e.g. ParseJobType) for exact, case-sensitive string-to-enum conversion
//   - Scan/Value for SQL storage as plain text
//   - MarshalText/UnmarshalText for JSON and form encoding
//
// Usage:
//
//	jt, err := enums.ParseJobType(r.URL.Query().Get("type"))
//	if err != nil {
//	    jt = enums.JobType{} // unknown types are ignored by the listing filter
//	}
package enums

import (
	"database/sql/driver"
	"fmt"
)

// JobType represents the employment type of a posting
type JobType struct {
	name string
}

// job types, in the order they are offered by the filter and the posting form
var (
	JobTypeFullTime = JobType{name: "Full-time"}
	JobTypePartTime = JobType{name: "Part-time"}
	JobTypeContract = JobType{name: "Contract"}
	JobTypeRemote   = JobType{name: "Remote"}
)

// JobTypeValues lists all valid job types
var JobTypeValues = []JobType{JobTypeFullTime, JobTypePartTime, JobTypeContract, JobTypeRemote}

// ParseJobType converts a string to JobType, match is exact
func ParseJobType(s string) (JobType, error) {
	for _, v := range JobTypeValues {
		if v.name == s {
			return v, nil
		}
	}
	return JobType{}, fmt.Errorf("invalid job type %q", s)
}

// MustJobType is like ParseJobType but panics on unknown value, for literals only
func MustJobType(s string) JobType {
	v, err := ParseJobType(s)
	if err != nil {
		panic(err)
	}
	return v
}

func (j JobType) String() string { return j.name }

// IsZero reports whether the job type is not set
func (j JobType) IsZero() bool { return j.name == "" }

// Value implements driver.Valuer
func (j JobType) Value() (driver.Value, error) { return j.name, nil }

// Scan implements sql.Scanner
func (j *JobType) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*j = JobType{}
		return nil
	default:
		return fmt.Errorf("unsupported job type value %T", value)
	}
	parsed, err := ParseJobType(s)
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (j JobType) MarshalText() ([]byte, error) { return []byte(j.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (j *JobType) UnmarshalText(text []byte) error {
	parsed, err := ParseJobType(string(text))
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// FlashKind represents the severity of a one-time notice shown on the next page
type FlashKind struct {
	name string
}

// flash kinds
var (
	FlashKindSuccess = FlashKind{name: "success"}
	FlashKindError   = FlashKind{name: "error"}
)

// FlashKindValues lists all valid flash kinds
var FlashKindValues = []FlashKind{FlashKindSuccess, FlashKindError}

// ParseFlashKind converts a string to FlashKind
func ParseFlashKind(s string) (FlashKind, error) {
	for _, v := range FlashKindValues {
		if v.name == s {
			return v, nil
		}
	}
	return FlashKind{}, fmt.Errorf("invalid flash kind %q", s)
}

func (f FlashKind) String() string { return f.name }

// MarshalText implements encoding.TextMarshaler
func (f FlashKind) MarshalText() ([]byte, error) { return []byte(f.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler
func (f *FlashKind) UnmarshalText(text []byte) error {
	parsed, err := ParseFlashKind(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
