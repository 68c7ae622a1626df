package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepoURL parses a GitHub repository URL into owner and name components
func ParseRepoURL(repoURL string) (owner, name string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", "", err
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %q", repoURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// RepoURL builds the canonical web URL for owner/name
func RepoURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, name)
}
