package cfg

type Cfg struct {
	// Storage
	DBPath       string
	SourcesDir   string
	SnapshotPath string

	// Pipeline
	SchedulerInterval    int
	SourceConcurrency    int
	SourceTimeout        int
	DescriptionMaxLength int
	RetentionDays        int
	RequestsPerSecond    float64
	RunOnce              bool

	// Server
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
