// Package version compares dotted numeric version strings.
//
// Versions are compared component-wise after padding the shorter one with
// zeros on the right, so "0.21" and "0.21.0" are equal.
package version

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedVersion is the sentinel wrapped by MalformedVersionError.
var ErrMalformedVersion = errors.New("malformed version")

// Ordering is the result of a comparison.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "LESS"
	case Equal:
		return "EQUAL"
	case Greater:
		return "GREATER"
	default:
		return fmt.Sprintf("Ordering(%d)", int(o))
	}
}

// MalformedVersionError reports the string that failed to parse.
type MalformedVersionError struct {
	Value string
}

func (e *MalformedVersionError) Error() string {
	return fmt.Sprintf("malformed version %q", e.Value)
}

// Unwrap returns ErrMalformedVersion so callers can use errors.Is.
func (e *MalformedVersionError) Unwrap() error { return ErrMalformedVersion }

// Version is a parsed dotted version. The zero value is not valid.
type Version struct {
	raw string
	// parts hold the components without leading zeros ("" for zero), so
	// components of any length compare without overflow.
	parts []string
}

// Parse splits s on "." into base-10 components. Anything other than
// digits and dots, an empty string or an empty segment is rejected.
func Parse(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Version{}, &MalformedVersionError{Value: s}
	}
	segs := strings.Split(raw, ".")
	parts := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg == "" || strings.TrimLeft(seg, "0123456789") != "" {
			return Version{}, &MalformedVersionError{Value: s}
		}
		parts = append(parts, strings.TrimLeft(seg, "0"))
	}
	return Version{raw: raw, parts: parts}, nil
}

func (v Version) String() string { return v.raw }

// Compare orders v against o with implicit zero padding.
func (v Version) Compare(o Version) Ordering {
	n := max(len(v.parts), len(o.parts))
	for i := 0; i < n; i++ {
		if c := compareDigits(at(v.parts, i), at(o.parts, i)); c != Equal {
			return c
		}
	}
	return Equal
}

func at(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

// compareDigits orders two digit strings without leading zeros: the longer
// one is larger, equal lengths compare lexically.
func compareDigits(a, b string) Ordering {
	switch {
	case len(a) < len(b):
		return Less
	case len(a) > len(b):
		return Greater
	case a < b:
		return Less
	case a > b:
		return Greater
	}
	return Equal
}

// Compare parses both strings and compares them.
func Compare(a, b string) (Ordering, error) {
	va, err := Parse(a)
	if err != nil {
		return Equal, err
	}
	vb, err := Parse(b)
	if err != nil {
		return Equal, err
	}
	return va.Compare(vb), nil
}

func GTE(a, b string) (bool, error) {
	o, err := Compare(a, b)
	return err == nil && o != Less, err
}

func GT(a, b string) (bool, error) {
	o, err := Compare(a, b)
	return err == nil && o == Greater, err
}

func LT(a, b string) (bool, error) {
	o, err := Compare(a, b)
	return err == nil && o == Less, err
}

func LTE(a, b string) (bool, error) {
	o, err := Compare(a, b)
	return err == nil && o != Greater, err
}

func EQ(a, b string) (bool, error) {
	o, err := Compare(a, b)
	return err == nil && o == Equal, err
}

// Core strips a leading "v" and any pre-release or build suffix:
// "v0.22.0-rc1" -> "0.22.0". The result is not validated.
func Core(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "v")
	if i := strings.IndexAny(s, "-+~"); i != -1 {
		s = s[:i]
	}
	return s
}
