package store

import (
	"log"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitUsername derives a user name from the remote origin URL of the git
// repository at dir. It understands https and ssh GitHub-style URLs, taking
// the account component of the path. An empty string means no repository or
// no recognizable remote; that is logged, not fatal.
func GitUsername(dir string) string {
	cmd := exec.Command("git", "config", "--get", "remote.origin.url")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		log.Printf("store: no git remote found in %s", dir)
		return ""
	}
	name := accountFromRemote(strings.TrimSpace(string(out)))
	if name == "" {
		log.Printf("store: could not parse a user from git remote %q", strings.TrimSpace(string(out)))
	}
	return name
}

func accountFromRemote(url string) string {
	// git@host:account/repo.git
	if i := strings.Index(url, ":"); strings.HasPrefix(url, "git@") && i > 0 {
		url = url[i+1:]
		if j := strings.Index(url, "/"); j > 0 {
			return url[:j]
		}
		return ""
	}
	// scheme://host/account/repo.git
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
		parts := strings.Split(url, "/")
		if len(parts) >= 3 {
			return parts[1]
		}
	}
	return ""
}

// SaveRootFor places each user's annotations in their own subdirectory when
// a user name is known.
func SaveRootFor(root, user string) string {
	if user == "" {
		return root
	}
	return filepath.Join(root, user)
}
