package version

// Set at build time with -ldflags "-X github.com/lpstake/lpstake/internal/version.Version=..."
var (
	Version = "unknown"
	Commit  = "unknown"
)

func GetVersion() string {
	return Version
}

func GetCommit() string {
	return Commit
}
