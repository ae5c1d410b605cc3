// Package locator splits a combined "repository?query#fragment" string into
// a clone URL and the revision to check out.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedSyntax is returned when a locator carries a fragment and no
// explicit selector was supplied.
var ErrUnsupportedSyntax = errors.New("unsupported locator syntax")

// selectorKeys are the query keys that name a revision.
var selectorKeys = map[string]struct{}{
	"ref":    {},
	"h":      {},
	"branch": {},
	"tag":    {},
}

type SourceRef struct {
	RepositoryURL    string `yaml:"repository"`
	RevisionSelector string `yaml:"revision,omitempty"`
}

// HasSelector reports whether a revision was requested. Without one the
// repository's default branch is used.
func (r SourceRef) HasSelector() bool { return r.RevisionSelector != "" }

func (r SourceRef) String() string {
	if r.RevisionSelector == "" {
		return r.RepositoryURL
	}
	return r.RepositoryURL + "?ref=" + r.RevisionSelector
}

// Parse resolves locator into a SourceRef. A non-empty override always wins
// over a selector encoded in the query. Fragments are rejected unless an
// override is given, in which case they are dropped and reported in warnings.
func Parse(locator, override string) (SourceRef, []string, error) {
	var warnings []string

	pre, fragment, hasFragment := strings.Cut(locator, "#")
	repo, query, _ := strings.Cut(pre, "?")
	override = strings.TrimSpace(override)

	if hasFragment {
		if override == "" {
			return SourceRef{}, nil, fmt.Errorf("%w: fragment %q in %q (use ?ref=<rev>, not #<rev>)",
				ErrUnsupportedSyntax, fragment, locator)
		}
		warnings = append(warnings, fmt.Sprintf("ignoring fragment %q in %q: --ref %q takes precedence", fragment, locator, override))
	}

	ref := SourceRef{RepositoryURL: repo, RevisionSelector: selectorFromQuery(query)}
	if override != "" {
		ref.RevisionSelector = override
	}
	return ref, warnings, nil
}

func selectorFromQuery(query string) string {
	if query == "" {
		return ""
	}
	if key, value, ok := strings.Cut(query, "="); ok {
		if _, known := selectorKeys[key]; known {
			return value
		}
	}
	return query
}
