package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"bimschedule/internal"
)

// reJSONArray spans from the first '[' to the last ']' in the reply.
var reJSONArray = regexp.MustCompile(`\[[\s\S]*\]`)

var ErrNoCandidates = errors.New("model reply contains no JSON array")

// ExtractCandidates pulls the JSON array out of a free-text model reply and
// decodes it into loosely-typed candidates.
func ExtractCandidates(text string) ([]internal.Candidate, error) {
	payload := reJSONArray.FindString(text)
	if payload == "" {
		payload = strings.TrimSpace(text)
	}
	if payload == "" {
		return nil, ErrNoCandidates
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var rawItems []json.RawMessage
	if err := dec.Decode(&rawItems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCandidates, err)
	}
	if rawItems == nil {
		return nil, ErrNoCandidates
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after array", ErrNoCandidates)
	}

	out := make([]internal.Candidate, 0, len(rawItems))
	for i, item := range rawItems {
		d := json.NewDecoder(bytes.NewReader(item))
		d.UseNumber()
		var raw map[string]any
		if err := d.Decode(&raw); err != nil || raw == nil {
			return nil, fmt.Errorf("candidate %d is not an object", i)
		}
		out = append(out, toCandidate(raw))
	}
	return out, nil
}

// ParseModelReply never fails: an undecodable reply becomes the single
// fallback candidate. The boolean reports whether that happened.
func ParseModelReply(text string, tables *Tables) ([]internal.Candidate, bool) {
	candidates, err := ExtractCandidates(text)
	if err != nil {
		return []internal.Candidate{tables.FallbackCandidate()}, true
	}
	return candidates, false
}

func toCandidate(raw map[string]any) internal.Candidate {
	c := internal.Candidate{
		FinishDescription: firstString(raw, "finish", "finishDescription"),
		MaterialType:      firstString(raw, "type", "materialType"),
		Code:              firstString(raw, "code"),
		Area:              firstString(raw, "area"),
		Location:          firstString(raw, "location"),
	}
	if prices, ok := raw["pricePerSqm"].(map[string]any); ok {
		c.PricePerSqm = internal.RawPrices{
			Low:  toFinitePtr(prices["low"]),
			Mid:  toFinitePtr(prices["mid"]),
			High: toFinitePtr(prices["high"]),
		}
	}
	return c
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok {
			return s
		}
	}
	return ""
}

// toFinitePtr accepts JSON numbers only; numeric-looking strings count as
// missing.
func toFinitePtr(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case float64:
		f = t
	case int:
		f = float64(t)
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
