package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = NNSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// NNSemVer is the current version of neonotify.
	// Must be a string because scripts like dist.sh read this file.
	NNSemVer = "0.3.0"

	// StoreVersion versions the on-disk key layout. Stores written with a
	// different layout must be rebuilt.
	StoreVersion uint64 = 1
)
