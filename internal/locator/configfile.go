package locator

import (
	"strings"

	"github.com/JeffersonLab/cmsg-go/internal/cmsgerr"
)

// ConfigFileDomain is the lowercased domain name ParseOne produces for a
// "cmsg:configFile://..." locator.
const ConfigFileDomain = "configfile"

// ExpandConfigFile finds the substitute locator inside a configFile's
// contents: the first non-blank, non-comment ("#") line containing
// "://" (spec §4.2, §6). It fails if that line is itself a configFile
// locator — expansion is single-level only.
func ExpandConfigFile(contents string) (string, error) {
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			continue
		}
		p, err := ParseOne(line)
		if err != nil {
			return "", err
		}
		if p.Domain == ConfigFileDomain {
			return "", cmsgerr.Newf(cmsgerr.BadFormat, "configFile locator resolves to another configFile locator")
		}
		return line, nil
	}
	return "", cmsgerr.Newf(cmsgerr.BadFormat, "configFile contains no locator line")
}

// ReadFileFunc reads the file a configFile locator's remainder names. It
// is a function value, not a direct os.ReadFile call, so expansion stays
// unit-testable without a filesystem.
type ReadFileFunc func(path string) (string, error)

// ExpandList splices every configFile entry's substitute locator into the
// list in place (spec §4.2). Non-configFile entries pass through
// unchanged.
func ExpandList(entries []Parsed, read ReadFileFunc) ([]Parsed, error) {
	out := make([]Parsed, 0, len(entries))
	for _, e := range entries {
		if e.Domain != ConfigFileDomain {
			out = append(out, e)
			continue
		}
		contents, err := read(e.Remainder)
		if err != nil {
			return nil, cmsgerr.Wrap(cmsgerr.BadFormat, err)
		}
		substitute, err := ExpandConfigFile(contents)
		if err != nil {
			return nil, err
		}
		p, err := ParseOne(substitute)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
