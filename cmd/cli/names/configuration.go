package names

// Configuration captures configuration values for migrate-names.
type Configuration struct {
	BatchSize   int    `mapstructure:"batch_size"`
	Concurrency int    `mapstructure:"concurrency"`
	ResumeFile  string `mapstructure:"resume_file"`
}

const (
	defaultBatchSizeConstant   = 100
	defaultConcurrencyConstant = 10
	defaultResumeFileConstant  = "lastlabel.txt"
)

// DefaultConfiguration mirrors the defaults of the name migration tool.
func DefaultConfiguration() Configuration {
	return Configuration{
		BatchSize:   defaultBatchSizeConstant,
		Concurrency: defaultConcurrencyConstant,
		ResumeFile:  defaultResumeFileConstant,
	}
}

func (configuration Configuration) sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration
	if sanitized.BatchSize <= 0 {
		sanitized.BatchSize = defaults.BatchSize
	}
	if sanitized.Concurrency <= 0 {
		sanitized.Concurrency = defaults.Concurrency
	}
	return sanitized
}
