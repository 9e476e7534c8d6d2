package accounts

import (
	"context"
	"fmt"
	"io"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds account service options. Commands read it explicitly,
// nothing in the package consults ambient environment state.
type Config interface {
	// IsDevelopment relaxes a few behaviors for local work: minted
	// email and recovery tokens are echoed in responses and the
	// recovery cooldown is skipped.
	IsDevelopment() bool
	// GetRecoveryCooldown is the minimum wait between password
	// recovery requests, as a time.ParseDuration pattern e.g. "60m".
	GetRecoveryCooldown() string
	// GetFrontendURL is the base used to build links placed in
	// notification payloads.
	GetFrontendURL() string
	// GetAdminEmail receives mail request notifications.
	GetAdminEmail() string
}

// FileStorage stores user supplied files, avatars today. Paths are
// opaque storage keys; the signed URL is what clients read from.
type FileStorage interface {
	// MoveToSignedLocation persists src under destName and returns the
	// storage path together with a publicly readable signed URL.
	MoveToSignedLocation(ctx context.Context, src io.Reader, destName string) (path string, signedURL string, err error)
	Delete(ctx context.Context, path string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
