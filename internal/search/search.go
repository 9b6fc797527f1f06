package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultMotion     ResultType = "motion"
	ResultResolution ResultType = "resolution"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
	SessionID string     `json:"sessionId"`
	Status    string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text            string
	FilterType      ResultType // empty = all types
	FilterSessionID string
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexMotion(m MotionDoc) error
	IndexResolution(r ResolutionDoc) error
	DeleteMotion(id string) error
	DeleteResolution(id string) error
}

// MotionDoc is the data we index for an archived motion.
type MotionDoc struct {
	ID        string `json:"id"`
	Proposal  string `json:"proposal"`
	Proposer  string `json:"proposer"`
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// ResolutionDoc is the data we index for an archived resolution.
type ResolutionDoc struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	Proposer  string `json:"proposer"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId"`
}
