// Package buildinfo exposes version information stamped in at build time
// via -ldflags, the same mechanism the teacher's main.go uses for its own
// version/commit/date variables.
package buildinfo

// GitHash is overridden at build time with:
//
//	go build -ldflags "-X github.com/capnode/tcapd/internal/buildinfo.GitHash=$(git rev-parse HEAD)"
var GitHash = "unknown"

// CompilationCommit returns the commit hash this binary was built from.
func CompilationCommit() string {
	return GitHash
}
