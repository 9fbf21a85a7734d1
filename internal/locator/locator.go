// Package locator parses and reconstructs cMsg locator strings (spec §4.2,
// §6): the optional "cmsg:" prefix, the domain name, and a domain-specific
// remainder, with support for semicolon-separated lists and single-level
// configFile expansion.
package locator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
)

var domainNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Parsed is one locator list entry: a domain name and everything after
// "<domain>://".
type Parsed struct {
	Domain    string
	Remainder string
}

// Split breaks a semicolon-separated locator argument into its entries.
// Empty entries (from a leading, trailing, or doubled ';') are dropped.
func Split(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseOne strips the optional case-insensitive "cmsg:" prefix and splits
// the remainder into (domain, rest) on the first "://".
func ParseOne(s string) (Parsed, error) {
	rest := s
	if len(rest) >= 5 && strings.EqualFold(rest[:5], "cmsg:") {
		rest = rest[5:]
	}
	idx := strings.Index(rest, "://")
	if idx < 0 {
		return Parsed{}, cmsgerr.Newf(cmsgerr.BadFormat, "locator %q: missing \"://\"", s)
	}
	domain := rest[:idx]
	if !domainNameRE.MatchString(domain) {
		return Parsed{}, cmsgerr.Newf(cmsgerr.BadFormat, "locator %q: invalid domain name %q", s, domain)
	}
	return Parsed{Domain: strings.ToLower(domain), Remainder: rest[idx+3:]}, nil
}

// ParseList parses every entry of a semicolon-separated locator argument,
// requiring every entry to resolve to a single common domain (spec §4.2:
// "all entries must resolve to the same domain"). Duplicates (by
// remainder-string equality) are removed, preserving first-seen order.
func ParseList(s string) ([]Parsed, error) {
	entries := Split(s)
	if len(entries) == 0 {
		return nil, cmsgerr.New(cmsgerr.BadFormat)
	}
	parsed := make([]Parsed, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	var domain string
	for _, e := range entries {
		p, err := ParseOne(e)
		if err != nil {
			return nil, err
		}
		if domain == "" {
			domain = p.Domain
		} else if p.Domain != domain {
			return nil, cmsgerr.Newf(cmsgerr.BadFormat, "locator list mixes domains %q and %q", domain, p.Domain)
		}
		if seen[p.Remainder] {
			continue
		}
		seen[p.Remainder] = true
		parsed = append(parsed, p)
	}
	return parsed, nil
}

// Reconstruct rebuilds a single semicolon-joined locator string for a
// parsed, de-duplicated list, all sharing one domain (spec §8 property 1).
func Reconstruct(entries []Parsed) (string, error) {
	if len(entries) == 0 {
		return "", cmsgerr.New(cmsgerr.BadArgument)
	}
	domain := entries[0].Domain
	parts := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Domain != domain {
			return "", cmsgerr.Newf(cmsgerr.BadFormat, "reconstruct: mixed domains %q and %q", domain, e.Domain)
		}
		if seen[e.Remainder] {
			continue
		}
		seen[e.Remainder] = true
		parts = append(parts, fmt.Sprintf("cmsg:%s://%s", domain, e.Remainder))
	}
	return strings.Join(parts, ";"), nil
}

// SortedRemainders is a test/debug helper returning the de-duplicated
// remainder strings of a parsed list in sorted order, used to compare two
// lists for set equality regardless of original order.
func SortedRemainders(entries []Parsed) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Remainder
	}
	sort.Strings(out)
	return out
}
