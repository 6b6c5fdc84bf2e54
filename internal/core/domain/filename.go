package domain

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FileMetadata holds the tags derived from the upload filename convention
// [application]_[issue]_[ingredient]_[customer]_[trial id]. Missing
// trailing segments leave fields empty.
type FileMetadata struct {
	Application string
	Issue       string
	Ingredient  string
	Customer    string
	TrialID     string
}

// trialIDPattern matches trial identifiers such as "ID123" or "I42",
// case-insensitive, anchored to the start of a segment.
var trialIDPattern = regexp.MustCompile(`(?i)^ID?\d+`)

// ParseFilename derives structured metadata from an uploaded file's name.
// The parser is total: any string yields a (possibly empty) result.
func ParseFilename(filename string) FileMetadata {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	parts := strings.Split(name, "_")

	var meta FileMetadata
	if len(parts) >= 1 {
		meta.Application = parts[0]
	}
	if len(parts) >= 2 {
		meta.Issue = parts[1]
	}
	if len(parts) >= 3 {
		meta.Ingredient = parts[2]
	}
	if len(parts) >= 4 {
		meta.Customer = parts[3]
	}
	if len(parts) >= 5 {
		for _, part := range parts[4:] {
			if trialIDPattern.MatchString(part) {
				meta.TrialID = part
				break
			}
		}
		if meta.TrialID == "" {
			meta.TrialID = parts[4]
		}
	}

	return meta
}
