package core

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution groups failures to resolve a dynamic field.
	ErrResolution = errors.New("resolution failed")

	// ErrValidation groups failures to validate resolved values.
	ErrValidation = errors.New("validation failed")

	// ErrEntryPoint is returned when a script reference cannot be dispatched.
	ErrEntryPoint = errors.New("entry point not found")

	// ErrNoPackages is returned when package discovery finds nothing.
	ErrNoPackages = errors.New("no packages found")
)

// MissingSourceFileError is returned when a dynamic field's backing file does not exist.
type MissingSourceFileError struct {
	Field string
	Path  string
}

func (e *MissingSourceFileError) Error() string {
	return fmt.Sprintf("dynamic field %q: source file %s does not exist", e.Field, e.Path)
}

func (e *MissingSourceFileError) Unwrap() error {
	return ErrResolution
}

// UnresolvableAttributeError is returned when an attribute path cannot be
// located or does not hold a literal value.
type UnresolvableAttributeError struct {
	Field  string
	Attr   string
	Reason string
}

func (e *UnresolvableAttributeError) Error() string {
	return fmt.Sprintf("dynamic field %q: cannot resolve attribute %s: %s", e.Field, e.Attr, e.Reason)
}

func (e *UnresolvableAttributeError) Unwrap() error {
	return ErrResolution
}

// BindingError is returned when the set of dynamic fields and the set of
// bindings disagree.
type BindingError struct {
	Field  string
	Reason string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("dynamic field %q: %s", e.Field, e.Reason)
}

func (e *BindingError) Unwrap() error {
	return ErrResolution
}

// InvalidVersionError is returned when a version does not parse under PEP 440.
type InvalidVersionError struct {
	Version string
	Err     error
}

func (e *InvalidVersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid version %q: %v", e.Version, e.Err)
	}
	return fmt.Sprintf("invalid version %q", e.Version)
}

func (e *InvalidVersionError) Unwrap() error {
	return ErrValidation
}

// ValidationError reports an invalid manifest value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// EntryPointError is returned when a script reference has no registered callable.
type EntryPointError struct {
	Reference string
	Reason    string
}

func (e *EntryPointError) Error() string {
	return fmt.Sprintf("entry point %s: %s", e.Reference, e.Reason)
}

func (e *EntryPointError) Unwrap() error {
	return ErrEntryPoint
}
