package common

// Set via -ldflags "-X kapajira/internal/common.Version=..." at build time.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// FullVersion returns version, build and commit in one string
func FullVersion() string {
	v := Version
	if Build != "unknown" {
		v += "-" + Build
	}
	if GitCommit != "unknown" {
		v += " (" + GitCommit + ")"
	}
	return v
}
