package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"bimschedule/internal"
)

// maxPrice bounds what is accepted as a price; larger values are treated as
// garbage from the model and replaced by the default.
const maxPrice = 1e12

// Normalize turns model candidates into a schedule: classify, default
// prices, code within category, sort, then hand out suppliers by position.
// It is a pure function of its arguments.
func Normalize(candidates []internal.Candidate, tables *Tables) []internal.MaterialRecord {
	groups := map[internal.CategoryPrefix][]internal.MaterialRecord{}
	order := make([]internal.CategoryPrefix, 0)

	for _, c := range candidates {
		prefix := tables.ClassifyPrefix(c.FinishDescription)

		materialType := strings.TrimSpace(c.MaterialType)
		if materialType == "" {
			materialType = tables.ClassifyMaterialType(c.FinishDescription)
		}

		rec := internal.MaterialRecord{
			CategoryPrefix:    prefix,
			Area:              c.Area,
			Location:          c.Location,
			FinishDescription: c.FinishDescription,
			MaterialType:      materialType,
			PricePerSqm:       NormalizePrices(c.PricePerSqm, tables.PriceDefaults),
		}
		if _, ok := groups[prefix]; !ok {
			order = append(order, prefix)
		}
		groups[prefix] = append(groups[prefix], rec)
	}

	out := make([]internal.MaterialRecord, 0, len(candidates))
	for _, prefix := range order {
		group := groups[prefix]
		for i := range group {
			group[i].Code = FormatCode(prefix, i+1)
		}
		out = append(out, group...)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CategoryPrefix != out[j].CategoryPrefix {
			return out[i].CategoryPrefix < out[j].CategoryPrefix
		}
		return CodeSequence(out[i].Code) < CodeSequence(out[j].Code)
	})

	if n := len(tables.Suppliers); n > 0 {
		for i := range out {
			out[i].SupplierContact = tables.Suppliers[i%n].Contact()
		}
	}
	return out
}

func FormatCode(prefix internal.CategoryPrefix, seq int) string {
	return fmt.Sprintf("%s-%02d", prefix, seq)
}

// CodeSequence returns the numeric suffix of a code, or 0 when there is none.
func CodeSequence(code string) int {
	idx := strings.LastIndex(code, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(code[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// NormalizePrices defaults each field independently and rounds the rest.
// No ordering between low, mid and high is enforced.
func NormalizePrices(raw internal.RawPrices, defaults internal.PriceRange) internal.PriceRange {
	return internal.PriceRange{
		Low:  normalizePrice(raw.Low, defaults.Low),
		Mid:  normalizePrice(raw.Mid, defaults.Mid),
		High: normalizePrice(raw.High, defaults.High),
	}
}

func normalizePrice(v *float64, fallback int) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) || math.Abs(*v) > maxPrice {
		return fallback
	}
	// Half-way values round toward +Inf. Adding 0.5 before flooring would
	// round 0.49999999999999994 up.
	r := math.Floor(*v)
	if *v-r >= 0.5 {
		r++
	}
	return int(r)
}
