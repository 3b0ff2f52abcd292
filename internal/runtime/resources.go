// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"strings"
	"sync"

	"github.com/dop251/goja_nodejs/require"
	"github.com/google/uuid"
)

// BlobPrefix is the path prefix of transient module resources.
const BlobPrefix = "/__relayhook/blob/"

// Resources is the table of transient module sources the engine's native
// require loads from. Entries are registered right before evaluation and
// revoked after a grace period.
type Resources struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newResources() *Resources {
	return &Resources{blobs: make(map[string][]byte)}
}

// Register stores code under a fresh unique path and returns the path.
func (r *Resources) Register(code string) string {
	p := BlobPrefix + uuid.NewString() + ".js"

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[p] = []byte(code)
	return p
}

// Revoke removes a resource. It reports whether the path was registered.
func (r *Resources) Revoke(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blobs[p]; !ok {
		return false
	}
	delete(r.blobs, p)
	return true
}

// Len returns the number of live resources.
func (r *Resources) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}

// load is the require.SourceLoader backing the engine's native require.
// Only blob paths are served; everything else does not exist.
func (r *Resources) load(p string) ([]byte, error) {
	if !strings.HasPrefix(p, BlobPrefix) {
		return nil, require.ModuleFileDoesNotExistError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.blobs[p]
	if !ok {
		return nil, require.ModuleFileDoesNotExistError
	}
	return code, nil
}
