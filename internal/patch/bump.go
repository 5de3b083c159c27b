package patch

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const versionSeparator = "-"

// RepoTag is one tag of one repository ("owner/name").
type RepoTag struct {
	Repository string
	Tag        string
}

func (rt RepoTag) String() string {
	return rt.Repository + ":" + rt.Tag
}

// BumpVersion increments the patch number of a "major.minor.patch-suffix"
// tag. Tags without a separator, or whose prefix is not three numbers, come
// back unchanged.
func BumpVersion(rt RepoTag) RepoTag {
	i := strings.Index(rt.Tag, versionSeparator)
	if i <= 0 {
		return rt
	}
	prefix, rest := rt.Tag[:i], rt.Tag[i:]
	if strings.Contains(prefix, "+") {
		return rt
	}

	bumped, ok := bumpPrefix(prefix)
	if !ok {
		return rt
	}
	return RepoTag{
		Repository: rt.Repository,
		Tag:        bumped + rest,
	}
}

// bumpPrefix increments the third of exactly three numeric components.
// Components with leading zeros, such as date-style 2024.01.05, are not valid
// semver; they keep their spelling and only the last one is incremented.
func bumpPrefix(prefix string) (string, bool) {
	if v, err := semver.StrictNewVersion(prefix); err == nil {
		return v.IncPatch().String(), true
	}

	parts := strings.Split(prefix, ".")
	if len(parts) != 3 {
		return "", false
	}
	for _, p := range parts {
		if p == "" || strings.Trim(p, "0123456789") != "" {
			return "", false
		}
	}
	n, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return "", false
	}
	return parts[0] + "." + parts[1] + "." + strconv.FormatUint(n+1, 10), true
}

func BumpVersions(list []RepoTag) []RepoTag {
	out := make([]RepoTag, len(list))
	for i, rt := range list {
		out[i] = BumpVersion(rt)
	}
	return out
}
