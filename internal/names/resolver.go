// Package names turns raw name templates from the game tables into display
// strings. Templates reference the string table with {page,id} placeholders
// and carry parenthesized remarks that are not part of the visible name.
package names

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"vaultfinder/internal/log"
	"vaultfinder/internal/reftables"
)

// UnknownSector is the gate target name used when no lookup strategy matches.
const UnknownSector = "unknown sector"

var (
	reference      = regexp.MustCompile(`\{(\d*),\s*(\d+)\}`)
	emptyPageRef   = regexp.MustCompile(`\{,(\s*\d+\})`)
	referenceGroup = regexp.MustCompile(`\(([^()]*\{\d*,\s*\d+\}[^()]*)\)`)
	aside          = regexp.MustCompile(`\([^)]*\)`)
)

// Resolver resolves templates against the reference tables.
// It only reads the tables and is safe for concurrent use.
type Resolver struct {
	tables *reftables.Tables
	page   string
}

// NewResolver creates a resolver; page is used for {,id} placeholders in
// templates that do not come from a string-table page themselves.
func NewResolver(tables *reftables.Tables, page string) *Resolver {
	return &Resolver{tables: tables, page: page}
}

// Resolve resolves template using the resolver's default page.
func (r *Resolver) Resolve(template string) string {
	return r.ResolveInPage(template, r.page)
}

// ResolveInPage resolves every placeholder in template, then strips
// parenthesized remarks. An empty placeholder page means page.
//
// Each page,id key is substituted at most once per call; later occurrences
// become empty, which bounds the work on self-referential entries. Scanning
// resumes at the start of each substitution so chains of distinct
// references resolve fully.
func (r *Resolver) ResolveInPage(template, page string) string {
	s := unwrapReferenceGroups(template)
	seen := make(map[string]struct{})

	pos := 0
	for pos <= len(s) {
		loc := reference.FindStringSubmatchIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		refPage := s[pos+loc[2] : pos+loc[3]]
		if refPage == "" {
			refPage = page
		}
		id := s[pos+loc[4] : pos+loc[5]]

		replacement := ""
		key := refPage + "," + id
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			if text, ok := r.tables.Strings.Lookup(refPage, id); ok {
				replacement = bindPage(unwrapReferenceGroups(text), refPage)
			} else {
				log.Debug("Missing string table entry", "page", refPage, "id", id)
			}
		}

		s = s[:start] + replacement + s[end:]
		pos = start
	}

	return norm.NFC.String(stripAsides(s))
}

// SectorName resolves the display name of a sector macro, falling back to
// the macro itself.
func (r *Resolver) SectorName(macro string) string {
	raw, ok := r.tables.SectorNames.Lookup(macro)
	if !ok {
		log.Debug("Missing sector name", "macro", macro)
		raw = macro
	}
	return r.Resolve(raw)
}

// ShipName resolves the display name of a ship macro, falling back to the
// macro itself.
func (r *Resolver) ShipName(macro string) string {
	raw, ok := r.tables.ShipNames.Lookup(macro)
	if !ok {
		log.Debug("Missing ship name", "macro", macro)
		raw = macro
	}
	return r.Resolve(raw)
}

// GateTargetName guesses the cluster a gate connection leads to from the
// numeric suffix of its connection name (e.g. ..._012 -> cluster_012_macro,
// then cluster_12_macro). Unmatched gates get UnknownSector.
func (r *Resolver) GateTargetName(connection string) string {
	n := len(connection)
	if n >= 3 {
		if raw, ok := r.tables.SectorNames.Lookup("cluster_" + connection[n-3:] + "_macro"); ok {
			return r.Resolve(raw)
		}
		if connection[n-3] == '0' {
			if raw, ok := r.tables.SectorNames.Lookup("cluster_" + connection[n-2:] + "_macro"); ok {
				return r.Resolve(raw)
			}
		}
	}
	log.Debug("Unresolved gate target", "connection", connection)
	return UnknownSector
}

// bindPage pins {,id} placeholders inside text taken from page to that page.
func bindPage(text, page string) string {
	if !strings.Contains(text, "{,") {
		return text
	}
	return emptyPageRef.ReplaceAllString(text, "{"+page+",${1}")
}

// unwrapReferenceGroups drops the parentheses around groups that hold a
// placeholder, so "Name ({1,2})" keeps the referenced text.
func unwrapReferenceGroups(s string) string {
	if !strings.Contains(s, "(") {
		return s
	}
	return referenceGroup.ReplaceAllString(s, "$1")
}

// stripAsides removes parenthesized remarks left to right, one pair at a
// time. Nested parentheses are not supported.
func stripAsides(s string) string {
	stripped := false
	for {
		loc := aside.FindStringIndex(s)
		if loc == nil {
			break
		}
		s = s[:loc[0]] + s[loc[1]:]
		stripped = true
	}
	if !stripped {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}
