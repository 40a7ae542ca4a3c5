// Package storage abstracts durable file storage with link-based public
// access for issued certificate files.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Service uploads files and grants public read access to them.
type Service interface {
	// Upload stores data under folder/name and returns a file reference.
	// Uploading to an existing reference overwrites it.
	Upload(ctx context.Context, folder, name string, data []byte) (string, error)

	// GrantPublicRead makes the file readable by anyone holding the
	// returned URL, without authentication.
	GrantPublicRead(ctx context.Context, fileRef string) (string, error)
}

// LocalService implements Service on a local directory served under
// /files/ by the HTTP layer.
type LocalService struct {
	rootDir string
	baseURL string
}

func NewLocalService(rootDir, baseURL string) (*LocalService, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating storage dir: %w", err)
	}
	return &LocalService{rootDir: rootDir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalService) Upload(ctx context.Context, folder, name string, data []byte) (string, error) {
	dir := filepath.Join(s.rootDir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating folder %s: %w", folder, err)
	}

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return "", fmt.Errorf("error writing file %s: %w", name, err)
	}
	return path.Join(folder, name), nil
}

// GrantPublicRead widens the file mode and returns the public link. Local
// files become public the moment the /files/ handler can read them.
func (s *LocalService) GrantPublicRead(ctx context.Context, fileRef string) (string, error) {
	full := filepath.Join(s.rootDir, filepath.FromSlash(fileRef))
	if err := os.Chmod(full, 0o644); err != nil {
		return "", fmt.Errorf("error granting public access to %s: %w", fileRef, err)
	}

	escaped := make([]string, 0, 4)
	for _, part := range strings.Split(fileRef, "/") {
		escaped = append(escaped, url.PathEscape(part))
	}
	return s.baseURL + "/files/" + strings.Join(escaped, "/"), nil
}

// Root returns the directory the /files/ handler should serve.
func (s *LocalService) Root() string {
	return s.rootDir
}
