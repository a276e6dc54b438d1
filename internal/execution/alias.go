package execution

import (
	"context"
	"strings"
)

// AliasResolver looks up alias base URLs
type AliasResolver interface {
	GetAlias(ctx context.Context, name string) (string, bool, error)
}

// ResolveAlias expands "alias/path" into "<alias base>/path". Full URLs,
// unknown aliases and lookup errors leave url unchanged; the transport then
// reports anything malformed.
func ResolveAlias(ctx context.Context, aliases AliasResolver, url string) string {
	url = strings.TrimSpace(url)
	if aliases == nil || url == "" || strings.Contains(url, "://") {
		return url
	}

	aliasName, path := url, ""
	if idx := strings.Index(url, "/"); idx != -1 {
		aliasName = url[:idx]
		path = url[idx+1:]
	}

	baseURL, exists, err := aliases.GetAlias(ctx, aliasName)
	if err != nil || !exists {
		return url
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return baseURL
	}
	return baseURL + "/" + path
}
