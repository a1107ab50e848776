package database

// Run is one recorded collection run.
type Run struct {
	ID            int64
	RunID         string
	ReferenceDate *string
	CollectedAt   string
	TotalCount    int
	SourceStats   map[string]int
	ArtifactPath  *string
	RecordedAt    *string
}

// RunPost is the history entry of a post collected in a run.
type RunPost struct {
	RunID     string
	URL       string
	Title     string
	Source    string
	Published string
	Category  string
}

// Report is a generated report file.
type Report struct {
	ID            int64
	RunID         *string
	Path          string
	ReportDate    string
	PostCount     int
	CategoryCount int
	GeneratedAt   *string
}

// Stats contains aggregate history statistics.
type Stats struct {
	Runs        int
	Posts       int
	Reports     int
	LastRunAt   *string
	LastReport  *string
	PerCategory map[string]int
}
