package vision

import "strings"

const schedulePrompt = `Analyze this image and generate a BIM material schedule. For each material you identify, provide:
- Code (format: WD-01, WD-02, etc.)
- Area (e.g. Kitchen, Living Room)
- Location of the finish within the area (e.g. Floor, Worktop, Walls)
- Finish/Grade description
- Material type (e.g. Oak, Marble, Tile)
- Estimated price per sqm in pounds (realistic UK market price)

Return the data as a JSON array of objects with this exact structure:
[
  {
    "code": "WD-01",
    "area": "Kitchen",
    "location": "Floor",
    "finish": "Grade A Oak Flooring",
    "type": "Oak",
    "pricePerSqm": {"low": 45, "mid": 65, "high": 85}
  }
]

Identify at least 3-5 different materials from the image.`

const pingPrompt = "Say hello"

// BuildPrompt appends sender-supplied context, such as rooms listed in an
// e-mail, to the schedule prompt.
func BuildPrompt(hints string) string {
	hints = strings.TrimSpace(hints)
	if hints == "" {
		return schedulePrompt
	}
	return schedulePrompt + "\n\nThe sender listed these areas and finishes; use them where they match the image:\n" + hints
}
