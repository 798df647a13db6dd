// Package gitremote derives a repo's owner/name from its local git
// checkout, so cmd/syncctl can default --owner/--name from the working
// directory instead of requiring them on every invocation.
//
// Grounded on the teacher's internal/beads/fingerprint.go git-remote
// canonicalization, narrowed from a generic clone fingerprint to the
// specific owner/name pair spec §3's RepoContext needs.
package gitremote

import (
	"fmt"
	"net/url"
	"os/exec"
	"strings"
)

// DetectOwnerName shells out to `git config --get remote.origin.url` in the
// current working directory and parses the result into (owner, name).
// Accepts HTTPS and scp-style SSH remotes and returns an error for a bare
// local path. The host is not checked: a non-GitHub remote still yields
// the last two path segments as (owner, name).
func DetectOwnerName() (owner, name string, err error) {
	out, err := exec.Command("git", "config", "--get", "remote.origin.url").Output()
	if err != nil {
		return "", "", fmt.Errorf("gitremote: no remote.origin.url (not a git repo, or no origin): %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts (owner, name) from a git remote URL in either
// https://host/owner/repo(.git) or scp-style [user@]host:owner/repo(.git)
// form.
func ParseRemoteURL(raw string) (owner, name string, err error) {
	raw = strings.TrimSpace(raw)

	var path string
	if strings.Contains(raw, "://") {
		u, perr := url.Parse(raw)
		if perr != nil {
			return "", "", fmt.Errorf("gitremote: invalid remote URL %q: %w", raw, perr)
		}
		path = u.Path
	} else if idx := strings.Index(raw, ":"); idx > 0 && !strings.HasPrefix(raw, "/") {
		path = raw[idx+1:]
	} else {
		return "", "", fmt.Errorf("gitremote: cannot parse remote URL %q", raw)
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("gitremote: remote URL %q has no owner/name path", raw)
	}
	owner, name = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", fmt.Errorf("gitremote: remote URL %q has empty owner/name", raw)
	}
	return owner, name, nil
}
