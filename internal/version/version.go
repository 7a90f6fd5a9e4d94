// Package version reports the build version of the binaries.
//
// Version, BuildDate and GitCommit are set with ldflags, e.g.
//
//	go build -ldflags "-X github.com/information-sharing-networks/eid-claim-demo/app/internal/version.version=v1.2.0"
//
// When they are not set the module version and VCS settings from the build info are used.
package version

import "runtime/debug"

var (
	version   = ""
	buildDate = ""
	gitCommit = ""
)

type Info struct {
	Version   string
	BuildDate string
	GitCommit string
}

func Get() Info {
	info := Info{Version: version, BuildDate: buildDate, GitCommit: gitCommit}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	return info
}
