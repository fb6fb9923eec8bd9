package pipeline

import "testing"

func TestDetectSubmission(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		text    string
		html    string
		images  int
		want    bool
		reason  string
	}{
		{name: "no image", subject: "Material schedule please", images: 0, want: false, reason: "no_image"},
		{name: "keywords and image", subject: "Material schedule for kitchen", text: "Photo attached", images: 1, want: true, reason: "rules_positive"},
		{name: "bare image", subject: "holiday", text: "look at this", images: 1, want: false, reason: "rules_negative"},
		{name: "body keyword", subject: "fwd", text: "can you do the finishes for this interior", images: 2, want: true, reason: "rules_positive"},
		{name: "html table", subject: "photos", html: "<table><tr><td>Kitchen</td></tr></table>", images: 1, want: true, reason: "rules_positive"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectSubmission(tc.subject, tc.text, tc.html, tc.images, 0)
			if got.IsSchedule != tc.want || got.Reason != tc.reason {
				t.Fatalf("got %+v", got)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Fatalf("score=%v", got.Score)
			}
		})
	}
}

func TestDetectSubmissionThreshold(t *testing.T) {
	if DetectSubmission("hi", "", "", 1, 0.3).IsSchedule != true {
		t.Fatal("image alone should pass a 0.3 threshold")
	}
	if DetectSubmission("Material schedule", "", "", 1, 1.1).IsSchedule {
		t.Fatal("nothing passes a threshold above 1")
	}
}
