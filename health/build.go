package health

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime time.Time
	Modified  bool
}

func goVersion() string {
	return runtime.Version()
}

// getBuildInfo prefers BUILD_* environment values and falls back to the
// VCS stamp embedded by the go toolchain.
func getBuildInfo() string {
	info := readBuildInfo()

	if value := os.Getenv("BUILD_VERSION"); value != "" {
		info.Version = value
	}
	if value := os.Getenv("BUILD_COMMIT"); value != "" {
		info.GitCommit = value
	}
	if value := os.Getenv("BUILD_TIME"); value != "" {
		if buildTime, err := time.Parse(time.RFC3339, value); err == nil {
			info.BuildTime = buildTime
		}
	}

	return formatBuildInfo(info)
}

func readBuildInfo() BuildInfo {
	info := BuildInfo{Version: "dev", GitCommit: "unknown"}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}

	if bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.GitCommit = setting.Value
		case "vcs.time":
			if buildTime, err := time.Parse(time.RFC3339, setting.Value); err == nil {
				info.BuildTime = buildTime
			}
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}

func formatBuildInfo(info BuildInfo) string {
	commit := info.GitCommit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s-%s", info.Version, commit)
	if info.Modified {
		b.WriteString("-dirty")
	}
	if !info.BuildTime.IsZero() {
		fmt.Fprintf(&b, " (%s)", info.BuildTime.UTC().Format("2006-01-02"))
	}

	return b.String()
}
