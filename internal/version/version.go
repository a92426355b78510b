package version

var (
	VERSION = "dev"
	COMMIT  = "unknown"
)
