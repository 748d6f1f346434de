package storage

import "strings"

// ResolveURL joins a base URL and a storage key.
func ResolveURL(base, key string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if base == "" {
		return key
	}
	if key == "" {
		return base
	}
	return base + "/" + key
}

// RewriteBase swaps the storage-internal base of rawURL for the public asset
// host. URLs outside fromBase are returned unchanged.
func RewriteBase(rawURL, fromBase, toBase string) string {
	fromBase = strings.TrimRight(strings.TrimSpace(fromBase), "/")
	toBase = strings.TrimRight(strings.TrimSpace(toBase), "/")
	if fromBase == "" || toBase == "" || fromBase == toBase {
		return rawURL
	}
	rest, ok := strings.CutPrefix(rawURL, fromBase)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return rawURL
	}
	return toBase + rest
}
