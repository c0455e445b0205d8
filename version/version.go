// Package version exposes build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Populated via -ldflags at build time. Defaults cover `go run` and test builds.
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo reports the Go toolchain and platform used for the build.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
