package pipeline

import (
	"strings"

	"bimschedule/internal/util"
)

const DefaultDetectThreshold = 0.45

type DetectResult struct {
	IsSchedule bool
	Score      float64
	Reason     string
}

var detectKeywords = []string{"schedule", "material", "bim", "finish", "spec", "interior", "fit-out", "room"}

// DetectSubmission scores an incoming e-mail. Without at least one image
// there is nothing to send to the model, so the result is always negative.
func DetectSubmission(subject, text, html string, imageCount int, threshold float64) DetectResult {
	if imageCount == 0 {
		return DetectResult{Reason: "no_image"}
	}
	if threshold <= 0 {
		threshold = DefaultDetectThreshold
	}

	subject = util.NormalizeKey(subject)
	body := util.NormalizeKey(text + " " + html)

	score := 0.4
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(body, kw) {
			score += 0.1
		}
	}
	if strings.Contains(strings.ToLower(html), "<table") {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}

	isSchedule := score >= threshold
	reason := "rules_negative"
	if isSchedule {
		reason = "rules_positive"
	}
	return DetectResult{IsSchedule: isSchedule, Score: score, Reason: reason}
}
