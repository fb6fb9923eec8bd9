package pipeline

import (
	"strings"

	"bimschedule/internal"
	"bimschedule/internal/util"
)

// ClassifyPrefix matches keywords against the lower-cased finish as written.
// There is no Unicode folding, so full-width letters do not match.
func (t *Tables) ClassifyPrefix(finish string) internal.CategoryPrefix {
	key := strings.ToLower(finish)
	for _, rule := range t.Categories {
		if util.ContainsAny(key, rule.Keywords) {
			return rule.Prefix
		}
	}
	return t.FallbackPrefix
}

func (t *Tables) ClassifyMaterialType(finish string) string {
	key := strings.ToLower(finish)
	for _, rule := range t.MaterialTypes {
		if util.ContainsAny(key, rule.Keywords) {
			return rule.Label
		}
	}
	return t.FallbackMaterialType
}
