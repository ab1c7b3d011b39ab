package generation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/proflinker/api/internal/models"
)

// UserControllers holds the per-kind controllers of one user
type UserControllers struct {
	Universities *Controller[models.University]
	Professors   *Controller[models.Professor]
}

// Cancel aborts any in-flight run of either kind
func (u *UserControllers) Cancel() {
	if u.Universities != nil {
		u.Universities.Cancel()
	}
	if u.Professors != nil {
		u.Professors.Cancel()
	}
}

// Registry keeps one controller pair per user and drops idle pairs.
type Registry struct {
	mu      sync.Mutex
	cache   *cache.Cache
	factory func(userID uuid.UUID) *UserControllers
}

// NewRegistry creates a registry. Entries unused for idleTTL are evicted and
// their runs cancelled.
func NewRegistry(factory func(userID uuid.UUID) *UserControllers, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	c := cache.New(idleTTL, idleTTL/2)
	c.OnEvicted(func(_ string, v interface{}) {
		if uc, ok := v.(*UserControllers); ok {
			uc.Cancel()
		}
	})
	return &Registry{cache: c, factory: factory}
}

// For returns the controllers of a user, creating them on first use
func (r *Registry) For(userID uuid.UUID) *UserControllers {
	key := userID.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(key); ok {
		uc := v.(*UserControllers)
		r.cache.Set(key, uc, cache.DefaultExpiration)
		return uc
	}
	uc := r.factory(userID)
	r.cache.Set(key, uc, cache.DefaultExpiration)
	return uc
}

// Lookup returns the controllers of a user without creating them
func (r *Registry) Lookup(userID uuid.UUID) (*UserControllers, bool) {
	v, ok := r.cache.Get(userID.String())
	if !ok {
		return nil, false
	}
	return v.(*UserControllers), true
}

// CancelUser aborts the in-flight runs of a user, if any
func (r *Registry) CancelUser(userID uuid.UUID) {
	if uc, ok := r.Lookup(userID); ok {
		uc.Cancel()
	}
}

// Forget cancels and removes the controllers of a user
func (r *Registry) Forget(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Delete fires OnEvicted, which cancels
	r.cache.Delete(userID.String())
}

// Len returns the number of users with live controllers
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}
