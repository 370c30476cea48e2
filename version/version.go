// Package version reports the version of the noteblock binary.
package version

import "runtime/debug"

// Version is empty unless set at build time:
//
//	go build -ldflags "-X github.com/noteblock-tools/noteblock/version.Version=$(git describe --dirty)" ./cmd/noteblock
var Version string

// Hash is the short VCS revision the binary was built from, with a -dirty
// suffix for modified trees, or empty when the build has no VCS info.
var Hash = revision()

// VersionOrHash is Version, or the module version when installed with go
// install, or Hash.
var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Hash
}()

func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	hash := settings["vcs.revision"]
	if len(hash) > 7 {
		hash = hash[:7]
	}
	if hash != "" && settings["vcs.modified"] == "true" {
		hash += "-dirty"
	}
	return hash
}
