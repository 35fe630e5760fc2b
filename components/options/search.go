package options

import (
	"sort"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/query"
)

// Search filters candidates whose label or value contains query, ignoring
// case and diacritics. Prefix matches sort first, then labels.
func Search(candidates []model.Option, q string, limit int, opts Options) []model.Option {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	q = strings.TrimSpace(q)
	if q == "" {
		if opts.EmptySearchMode == EmptySearchTop {
			if len(candidates) <= limit {
				return append([]model.Option{}, candidates...)
			}
			return append([]model.Option{}, candidates[:limit]...)
		}
		return nil
	}

	needle := query.Normalize(q)
	matches := make([]matchedOption, 0, 32)
	for _, candidate := range candidates {
		label := query.Normalize(candidate.Label)
		value := query.Normalize(model.Stringify(candidate.Value))
		if !strings.Contains(label, needle) && !strings.Contains(value, needle) {
			continue
		}
		matches = append(matches, matchedOption{
			option:   candidate,
			sortKey:  label,
			isPrefix: strings.HasPrefix(label, needle) || strings.HasPrefix(value, needle),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].isPrefix != matches[j].isPrefix {
			return matches[i].isPrefix
		}
		return matches[i].sortKey < matches[j].sortKey
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]model.Option, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.option)
	}
	return out
}

type matchedOption struct {
	option   model.Option
	sortKey  string
	isPrefix bool
}
