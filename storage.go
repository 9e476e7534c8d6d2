package accounts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps uploaded files on disk, for development and
// tests. Files are served from BaseURL by whatever static handler the
// host application mounts; the "signed" URL is simply public here.
type LocalStorage struct {
	BaseDir string
	BaseURL string
}

var _ FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(baseDir, baseURL string) *LocalStorage {
	return &LocalStorage{
		BaseDir: baseDir,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (l *LocalStorage) MoveToSignedLocation(ctx context.Context, src io.Reader, destName string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	cleaned := filepath.Clean("/" + destName)
	target := filepath.Join(l.BaseDir, cleaned)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", "", fmt.Errorf("create storage dir: %w", err)
	}

	out, err := os.Create(target)
	if err != nil {
		return "", "", fmt.Errorf("create storage file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(target)
		return "", "", fmt.Errorf("write storage file: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(target)
		return "", "", fmt.Errorf("close storage file: %w", err)
	}

	path := strings.TrimPrefix(filepath.ToSlash(cleaned), "/")
	return path, l.BaseURL + "/" + path, nil
}

func (l *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned := filepath.Clean("/" + path)
	err := os.Remove(filepath.Join(l.BaseDir, cleaned))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete storage file: %w", err)
	}
	return nil
}
