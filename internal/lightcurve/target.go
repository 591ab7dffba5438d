package lightcurve

import (
	"fmt"
	"regexp"
	"strings"
)

// AllowedPattern is the whitelist every target must match after
// normalization. \d is ASCII-only in RE2.
var AllowedPattern = regexp.MustCompile(`(?i)^(Kepler-\d+|KOI-\d+(\.\d+)?|KIC \d+)$`)

var (
	planetSuffix = regexp.MustCompile(`(?i)[\s\p{Zs}]+[b-i]$`)
	kepoiName    = regexp.MustCompile(`(?i)^K(\d+)(?:\.(\d+))?$`) // K00744.01
	koiDecimal   = regexp.MustCompile(`(?i)^(KOI-\d+)\.\d+$`)     // KOI-114.01
)

// Normalize maps dataset-style names onto the star identifier the archive
// expects:
//
//	"Kepler-8 b"  -> "Kepler-8"
//	"K00744.01"   -> "KOI-744"
//	"KOI-114.01"  -> "KOI-114"
//	"KIC 12345"   -> "KIC 12345"
//
// It never fails and only narrows its input, so it is safe to run before
// Validate.
func Normalize(raw string) string {
	name := strings.TrimSpace(raw)

	// Strip until stable so Normalize(Normalize(x)) == Normalize(x) even for
	// inputs like "Kepler-8 b c".
	for {
		stripped := strings.TrimSpace(planetSuffix.ReplaceAllString(name, ""))
		if stripped == name {
			break
		}
		name = stripped
	}

	if m := kepoiName.FindStringSubmatch(name); m != nil {
		number := strings.TrimLeft(m[1], "0")
		if number == "" {
			number = "0"
		}
		return "KOI-" + number
	}

	if m := koiDecimal.FindStringSubmatch(name); m != nil {
		return m[1]
	}

	return name
}

// Validate normalizes raw and checks it against the traversal blacklist and
// AllowedPattern. Every filesystem and network operation in this package
// starts from its result.
func Validate(raw string) (string, error) {
	target := Normalize(raw)

	if target == "" {
		return "", fmt.Errorf("%w: target name cannot be empty", ErrInvalidTarget)
	}

	for _, bad := range []string{`\`, "/", "..", "\x00"} {
		if strings.Contains(target, bad) {
			return "", fmt.Errorf("%w: invalid characters in target name %q", ErrInvalidTarget, target)
		}
	}

	if !AllowedPattern.MatchString(target) {
		return "", fmt.Errorf(
			"%w: invalid target format %q, accepted formats: 'Kepler-22', 'KOI-123', 'KIC 12345'",
			ErrInvalidTarget, target,
		)
	}

	return target, nil
}

// FileExtension is appended to every cache entry name.
const FileExtension = ".png"

// ToFilename maps a validated target onto its cache file name. Anything
// outside [A-Za-z0-9_-] becomes '_'.
func ToFilename(target string) string {
	var b strings.Builder
	b.Grow(len(target) + len(FileExtension))
	for _, r := range target {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString(FileExtension)
	return b.String()
}
