package publisher

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Build describes one platform/channel specific output of the build pipeline. When ID is set it
// is used verbatim as the build id.
type Build struct {
	ID       string
	Version  string
	Platform string
	Arch     string
	Channel  string
}

// BuildIDPattern matches a whole remote "directory" name that looks like a build id: at least
// four hyphen-joined segments, each starting with a word character and possibly containing dots.
var BuildIDPattern = regexp.MustCompile(`^\w[\w.]*(-\w[\w.]*){3,}$`)

var whitespace = regexp.MustCompile(`\s+`)

func IsBuildID(name string) bool {
	return BuildIDPattern.MatchString(name)
}

type BuildIdentity interface {
	BuildID(build Build) string
	NormalizeFileName(name string) string
}

type DefaultIdentity struct{}

func (DefaultIdentity) BuildID(build Build) string {
	if build.ID != "" {
		return build.ID
	}
	if build.Platform == "" || build.Arch == "" || build.Channel == "" || build.Version == "" {
		return ""
	}
	return strings.Join([]string{build.Platform, build.Arch, build.Channel, build.Version}, "-")
}

func (DefaultIdentity) NormalizeFileName(name string) string {
	return whitespace.ReplaceAllString(filepath.Base(name), "-")
}
