// Package search indexes minutes and review comments. Meilisearch serves
// queries while it is healthy; PostgreSQL full-text search covers the rest.
package search

type ResultType string

const (
	ResultMinutes ResultType = "minutes"
	ResultComment ResultType = "comment"
)

func ParseResultType(value string) (ResultType, bool) {
	switch ResultType(value) {
	case "":
		return "", true
	case ResultMinutes, ResultComment:
		return ResultType(value), true
	default:
		return "", false
	}
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	MinutesID string     `json:"minutesId"`
	MeetingID string     `json:"meetingId,omitempty"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	Status    string     `json:"status,omitempty"`
}

type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Status     string
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Engine  string   `json:"engine"`
}

type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MinutesRecord is what gets indexed for a minutes document.
type MinutesRecord struct {
	ID        string `json:"id"`
	MeetingID string `json:"meetingId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}

type CommentRecord struct {
	ID        string `json:"id"`
	MinutesID string `json:"minutesId"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	Section   string `json:"section"`
	Resolved  bool   `json:"resolved"`
}
