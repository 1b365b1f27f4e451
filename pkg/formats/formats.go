// Package formats provides parsers and writers for the TIKI skeletal file formats:
// SKD meshes (bone hierarchy, surfaces, weighted vertices) and SKC animations
// (per-frame channel samples).
package formats

import (
	"errors"
	"fmt"
)

// Errors shared by both codecs.
var (
	// ErrIndexOutOfRange is returned by the encoders when a model refers to a
	// bone or vertex that does not exist. This is a caller bug, not bad input.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnsupportedWriteVersion is returned when encoding to a version the writer cannot produce.
	ErrUnsupportedWriteVersion = errors.New("unsupported write version")
)

// FormatError is the fatal decode failure: the file is not of the expected
// format at all. No partial result accompanies it.
type FormatError struct {
	Format string // "SKD" or "SKC"
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// WarningKind classifies a recoverable decode or resolve issue.
type WarningKind int

const (
	// VersionWarning marks an unknown or legacy version parsed best-effort.
	VersionWarning WarningKind = iota
	// StructuralWarning marks a dangling reference, out-of-range index or
	// implausible count that was replaced by a safe default.
	StructuralWarning
)

// String returns a human-readable warning kind.
func (k WarningKind) String() string {
	switch k {
	case VersionWarning:
		return "version"
	case StructuralWarning:
		return "structural"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Warning is a recoverable issue found while decoding or resolving.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Message
}

// Warnings accumulates recoverable issues.
type Warnings []Warning

// Addf appends a formatted warning.
func (ws *Warnings) Addf(kind WarningKind, format string, args ...any) {
	*ws = append(*ws, Warning{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether any warning of the given kind was recorded.
func (ws Warnings) Has(kind WarningKind) bool {
	for _, w := range ws {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
