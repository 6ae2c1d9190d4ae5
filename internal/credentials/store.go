// Package credentials manages the durable auth material that lets a
// tenant's connection be re-opened without a fresh pairing handshake.
// Each tenant owns one directory under the configured root; the
// connection layer reads and writes files inside it.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const tokenFileName = "token"

// ErrInvalidTenantID rejects ids that cannot safely name a directory
// under the store root.
var ErrInvalidTenantID = errors.New("tenant id contains path-unsafe characters")

func validTenantID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Handle is an opaque reference to one tenant's credential directory.
type Handle struct {
	TenantID string
	Dir      string
}

// Token reads the stored auth token. Returns an empty string when no
// token has been saved yet (fresh tenant, pairing still pending).
func (h Handle) Token() (string, error) {
	data, err := os.ReadFile(filepath.Join(h.Dir, tokenFileName))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token for %s: %w", h.TenantID, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken persists a refreshed auth token pushed by the gateway.
func (h Handle) SaveToken(token string) error {
	path := filepath.Join(h.Dir, tokenFileName)
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return fmt.Errorf("save token for %s: %w", h.TenantID, err)
	}
	return nil
}

type Store interface {
	Ensure(tenantID string) (Handle, error)
	Delete(tenantID string) error
}

// FSStore keeps credential material on the local filesystem,
// one directory per tenant.
type FSStore struct {
	root   string
	logger *zap.Logger
}

func NewFSStore(root string, logger *zap.Logger) *FSStore {
	return &FSStore{root: root, logger: logger}
}

func (s *FSStore) Ensure(tenantID string) (Handle, error) {
	if !validTenantID(tenantID) {
		return Handle{}, fmt.Errorf("ensure credential dir for %q: %w", tenantID, ErrInvalidTenantID)
	}
	dir := filepath.Join(s.root, tenantID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Handle{}, fmt.Errorf("ensure credential dir for %s: %w", tenantID, err)
	}
	return Handle{TenantID: tenantID, Dir: dir}, nil
}

func (s *FSStore) Delete(tenantID string) error {
	if !validTenantID(tenantID) {
		return fmt.Errorf("delete credential dir for %q: %w", tenantID, ErrInvalidTenantID)
	}
	dir := filepath.Join(s.root, tenantID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete credential dir for %s: %w", tenantID, err)
	}
	s.logger.Debug("Credential storage removed", zap.String("tenant_id", tenantID))
	return nil
}
