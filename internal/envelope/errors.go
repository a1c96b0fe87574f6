package envelope

import (
	"errors"
	"fmt"
)

// MalformedError reports a structural violation in an inbound envelope:
// a missing required field, an unknown enum value, or a wrong type. The
// whole envelope is rejected; no partial event application is permitted
// (spec 4.1, 7.1).
type MalformedError struct {
	Field  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed envelope: %s: %s", e.Field, e.Reason)
}

// UnsupportedSchemaError reports that schema.version is not in the hub's
// configured set of supported versions (spec 4.1, 7.2).
type UnsupportedSchemaError struct {
	Version string
	Allowed []string
}

func (e *UnsupportedSchemaError) Error() string {
	return fmt.Sprintf("unsupported schema version %q (allowed: %v)", e.Version, e.Allowed)
}

// IsMalformed reports whether err is (or wraps) a MalformedError.
func IsMalformed(err error) bool {
	var m *MalformedError
	return errors.As(err, &m)
}

// IsUnsupportedSchema reports whether err is (or wraps) an UnsupportedSchemaError.
func IsUnsupportedSchema(err error) bool {
	var u *UnsupportedSchemaError
	return errors.As(err, &u)
}
