package constant

type MediaStatus string

const (
	MediaStatusUploading  MediaStatus = "UPLOADING"
	MediaStatusProcessing MediaStatus = "PROCESSING"
	MediaStatusCompleted  MediaStatus = "COMPLETED"
	MediaStatusFailed     MediaStatus = "FAILED"
	MediaStatusDeleted    MediaStatus = "DELETED"
)

func (s MediaStatus) String() string {
	return string(s)
}

func (s MediaStatus) Valid() bool {
	switch s {
	case MediaStatusUploading, MediaStatusProcessing, MediaStatusCompleted, MediaStatusFailed, MediaStatusDeleted:
		return true
	}
	return false
}

// Terminal reports whether the pipeline is done with the item.
func (s MediaStatus) Terminal() bool {
	return s == MediaStatusCompleted || s == MediaStatusFailed || s == MediaStatusDeleted
}

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
