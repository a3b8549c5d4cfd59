// Package layout defines the on-disk tree shape the Store visitor
// writes and the File source reads back (spec §4.A.2, §4.G, §9): where
// provider metadata and keys live, and how a distribution's original
// URL maps to a stable directory name under the storage base.
package layout

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/xattr"

	"github.com/opslane/advisory-walker/internal/safety"
)

// DirMetadata is the subdirectory holding provider-metadata.json and
// the trusted key store.
const DirMetadata = "metadata"

// ETagAttr is the extended attribute name the Store visitor writes the
// upstream ETag under, mirroring the original implementation's use of
// a user xattr instead of a sidecar file.
const ETagAttr = "user.etag"

// DistributionDirName derives the on-disk directory a distribution's
// documents are stored under: host + percent-decoded path, with any
// ".." traversal segments rejected — deterministic, reversible by the
// File source, and collision-free across distributions (spec §9
// "Store filename derivation").
func DistributionDirName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing distribution URL %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("distribution URL %q has no host", rawURL)
	}
	decodedPath, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", fmt.Errorf("decoding distribution URL path %q: %w", rawURL, err)
	}
	for _, seg := range strings.Split(decodedPath, "/") {
		if seg == ".." {
			return "", fmt.Errorf("distribution URL %q contains a \"..\" path segment", rawURL)
		}
	}
	return filepath.ToSlash(filepath.Join(u.Host, decodedPath)), nil
}

// DistributionPath returns the absolute on-disk directory a
// distribution's documents are stored under, rejecting any
// distribution whose URL would escape base.
func DistributionPath(base, rawURL string) (string, error) {
	dir, err := DistributionDirName(rawURL)
	if err != nil {
		return "", err
	}
	return safety.SafeJoinUnder(base, dir)
}

// DistributionFileURL returns the file:// URL form of
// DistributionPath, for rewriting a stored ProviderMetadata's
// distribution URLs when read back by the File source.
func DistributionFileURL(base, rawURL string) (string, error) {
	path, err := DistributionPath(base, rawURL)
	if err != nil {
		return "", err
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(path) + "/"}
	return u.String(), nil
}

// MetadataDir returns base/metadata.
func MetadataDir(base string) string {
	return filepath.Join(base, DirMetadata)
}

// KeysDir returns base/metadata/keys.
func KeysDir(base string) string {
	return filepath.Join(base, DirMetadata, "keys")
}

// ReadETagAttr best-effort reads the stored ETag extended attribute.
// A missing attribute and an unsupported filesystem are reported the
// same way: an empty string together with the xattr error, which the
// File source ignores.
func ReadETagAttr(path string) (string, error) {
	data, err := xattr.Get(path, ETagAttr)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteETagAttr best-effort writes the ETag extended attribute. Errors
// are expected on filesystems without xattr support and are not fatal
// to storing the document itself.
func WriteETagAttr(path, etag string) error {
	if etag == "" {
		return nil
	}
	return xattr.Set(path, ETagAttr, []byte(etag))
}
