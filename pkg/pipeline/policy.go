package pipeline

import (
	"fmt"
	"regexp"
	"slices"
)

// Policy maps a completed tool invocation (exit code plus combined output)
// onto an Outcome. The zero value treats exit 0 as Pass and everything else
// as Fail. Classification never panics; an invocation no rule accounts for
// is a Fail, so a misconfigured policy can hide a warning but never hide a
// failure as a pass.
type Policy struct {
	// PassCodes are exit codes counted as Pass (default: 0 only).
	PassCodes []int
	// WarnCodes are exit codes counted as Warn.
	WarnCodes []int
	// WarnPattern downgrades a passing exit code to Warn when it matches
	// the combined output. Some linters exit 0 and bury advisories in text.
	WarnPattern *regexp.Regexp
	// FailPattern escalates to Fail whenever it matches the combined
	// output, regardless of exit code.
	FailPattern *regexp.Regexp
}

// Classify maps an invocation onto an Outcome with a short human detail.
func (p Policy) Classify(exitCode int, output string) (Outcome, string) {
	if p.FailPattern != nil && p.FailPattern.MatchString(output) {
		return Fail, fmt.Sprintf("output matched failure pattern %q", p.FailPattern.String())
	}

	passCodes := p.PassCodes
	if len(passCodes) == 0 {
		passCodes = []int{0}
	}

	if slices.Contains(passCodes, exitCode) {
		if p.WarnPattern != nil && p.WarnPattern.MatchString(output) {
			return Warn, fmt.Sprintf("output matched warning pattern %q", p.WarnPattern.String())
		}
		return Pass, ""
	}

	if slices.Contains(p.WarnCodes, exitCode) {
		return Warn, fmt.Sprintf("exit code %d", exitCode)
	}

	return Fail, fmt.Sprintf("exit code %d", exitCode)
}
