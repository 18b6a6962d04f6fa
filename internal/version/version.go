// Package version provides build-time version information.
// The variables are set via ldflags during build.
package version

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info holds all version-related information
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Get returns the version information baked into this binary.
func Get() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// String renders the version for CLI output.
func (i Info) String() string {
	return i.Version + " (" + i.GitCommit + ", built " + i.BuildTime + ")"
}
