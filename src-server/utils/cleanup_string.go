package utils

import (
	"strings"

	"golang.org/x/text/cases"
)

// strips spaces and case-folds, for matching config names like "Watching"
func FoldName(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
