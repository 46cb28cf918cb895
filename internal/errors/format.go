package errors

import (
	"fmt"
	"sort"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ce, ok := err.(*CodexError)
	if !ok {
		ce = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", ce.Message))

	if ce.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ce.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("  Code: %s\n", ce.Code))

	return sb.String()
}

// GroupByCode groups a batch of per-document errors by error code,
// preserving a stable order. Batch operations report skipped documents
// grouped by reason rather than interleaved.
func GroupByCode(errs map[string]error) []Group {
	byCode := make(map[string][]string)
	for path, err := range errs {
		code := GetCode(err)
		if code == "" {
			code = ErrCodeInternal
		}
		byCode[code] = append(byCode[code], path)
	}

	groups := make([]Group, 0, len(byCode))
	for code, paths := range byCode {
		sort.Strings(paths)
		groups = append(groups, Group{Code: code, Paths: paths})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Code < groups[j].Code })
	return groups
}

// Group is a set of document paths that failed for the same reason.
type Group struct {
	Code  string
	Paths []string
}
