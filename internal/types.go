package internal

type CategoryPrefix string

const (
	PrefixWood    CategoryPrefix = "WD"
	PrefixMetal   CategoryPrefix = "MT"
	PrefixGlass   CategoryPrefix = "GL"
	PrefixTile    CategoryPrefix = "CT"
	PrefixStone   CategoryPrefix = "ST"
	PrefixPaint   CategoryPrefix = "PT"
	PrefixUnknown CategoryPrefix = "UN"
)

type SubmissionSource string

const (
	SourceUpload SubmissionSource = "upload"
	SourceCLI    SubmissionSource = "cli"
	SourceMail   SubmissionSource = "mail"
)

// RawPrices holds model-supplied prices. A nil field means missing or not a
// finite number.
type RawPrices struct {
	Low  *float64
	Mid  *float64
	High *float64
}

// Candidate is one loosely-typed record decoded from the model reply.
type Candidate struct {
	FinishDescription string
	MaterialType      string
	Code              string
	Area              string
	Location          string
	PricePerSqm       RawPrices
}

type PriceRange struct {
	Low  int `json:"low"`
	Mid  int `json:"mid"`
	High int `json:"high"`
}

type MaterialRecord struct {
	Code              string         `json:"code"`
	CategoryPrefix    CategoryPrefix `json:"categoryPrefix"`
	Area              string         `json:"area"`
	Location          string         `json:"location"`
	FinishDescription string         `json:"finish"`
	MaterialType      string         `json:"type"`
	PricePerSqm       PriceRange     `json:"pricePerSqm"`
	SupplierContact   string         `json:"supplierContact"`
}

type ImageInput struct {
	Data     []byte
	MimeType string
	// Hints is extra context appended to the prompt, e.g. rooms listed in an e-mail.
	Hints string
}

type SubmissionRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
	OutputRef  string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type RunRow struct {
	RunID        string
	Source       SubmissionSource
	SubmissionID *int
	Materials    int
	UsedFallback bool
	DurationMs   int64
	Error        string
}
