package models

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ehis6k/transcriber/internal/domain"
)

// maxAcquireAttempts bounds retries when concurrent callers keep requesting
// different variants for the same engine kind.
const maxAcquireAttempts = 8

// Loader resolves a model variant into a ready-to-use handle. Loads may be
// slow (downloads, server warmup) and may fail.
type Loader interface {
	Load(ctx context.Context, kind domain.EngineKind, variant string) (domain.ModelHandle, error)
}

// LoadError reports a failed model load. It is terminal for the requesting
// job; the cache itself stays usable.
type LoadError struct {
	EngineKind domain.EngineKind
	Variant    string
	Message    string
	Err        error
}

// Error formats load failures for logs and UI.
func (e *LoadError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("load model %s/%s: %s", e.EngineKind, e.Variant, e.Message)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *LoadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// modelSlot is the single active model for one engine kind, with its
// borrower count. An evicted slot stays valid for existing borrowers.
type modelSlot struct {
	info    domain.ModelHandle
	refs    int
	evicted bool
}

// Cache holds at most one loaded model per engine kind and coalesces
// concurrent loads for the same kind onto a single in-flight load.
type Cache struct {
	mu      sync.Mutex
	group   singleflight.Group
	slots   map[domain.EngineKind]*modelSlot
	loaders map[domain.EngineKind]Loader
	log     *logrus.Entry
}

// NewCache builds an empty cache with per-engine loaders.
func NewCache(loaders map[domain.EngineKind]Loader, log *logrus.Entry) *Cache {
	return &Cache{
		slots:   make(map[domain.EngineKind]*modelSlot),
		loaders: loaders,
		log:     log,
	}
}

// Handle is a borrowed reference to a cached model. Callers must Release
// when the job is done with it; Release is idempotent.
type Handle struct {
	cache *Cache
	slot  *modelSlot
	once  sync.Once
}

// Model returns the loaded model description.
func (h *Handle) Model() domain.ModelHandle {
	return h.slot.info
}

// Release returns the borrow. The last release of an evicted slot lets the
// cache forget it entirely.
func (h *Handle) Release() {
	h.once.Do(func() {
		h.cache.mu.Lock()
		defer h.cache.mu.Unlock()
		h.slot.refs--
		if h.slot.refs <= 0 && h.slot.evicted && h.cache.log != nil {
			h.cache.log.WithFields(logrus.Fields{
				"engine":  h.slot.info.EngineKind,
				"variant": h.slot.info.Variant,
			}).Debug("evicted model released by last borrower")
		}
	})
}

// Acquire returns a handle for (kind, variant), loading it if necessary.
// A cached match returns immediately. Concurrent requests for the same kind
// share one in-flight load; a caller that joined a load for a different
// variant re-checks and retries until its own variant is installed.
func (c *Cache) Acquire(ctx context.Context, kind domain.EngineKind, variant string) (*Handle, error) {
	loader, ok := c.loaders[kind]
	if !ok {
		return nil, &LoadError{EngineKind: kind, Variant: variant, Message: "no loader registered for engine kind"}
	}

	for attempt := 0; attempt < maxAcquireAttempts; attempt++ {
		if h := c.borrowMatching(kind, variant); h != nil {
			return h, nil
		}

		v, err, shared := c.group.Do(string(kind), func() (interface{}, error) {
			info, err := loader.Load(ctx, kind, variant)
			if err != nil {
				return nil, &LoadError{
					EngineKind: kind,
					Variant:    variant,
					Message:    "model load failed",
					Err:        err,
				}
			}
			return c.install(kind, info), nil
		})
		if err != nil {
			return nil, err
		}

		slot := v.(*modelSlot)
		if h := c.borrowSlot(slot, variant); h != nil {
			return h, nil
		}
		if c.log != nil && shared {
			c.log.WithFields(logrus.Fields{
				"engine":  kind,
				"variant": variant,
				"loaded":  slot.info.Variant,
			}).Debug("joined in-flight load for a different variant, retrying")
		}
	}

	return nil, &LoadError{
		EngineKind: kind,
		Variant:    variant,
		Message:    "could not settle on requested variant under concurrent load churn",
	}
}

// Cached reports whether (kind, variant) is already loaded, without loading.
func (c *Cache) Cached(kind domain.EngineKind, variant string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := c.slots[kind]
	return slot != nil && !slot.evicted && slot.info.Variant == variant
}

// install replaces the active slot for kind, marking the old one evicted.
// Existing borrowers of the old slot keep a valid handle.
func (c *Cache) install(kind domain.EngineKind, info domain.ModelHandle) *modelSlot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.slots[kind]; old != nil {
		old.evicted = true
		if c.log != nil {
			c.log.WithFields(logrus.Fields{
				"engine":      kind,
				"oldVariant":  old.info.Variant,
				"newVariant":  info.Variant,
				"oldBorrows":  old.refs,
			}).Info("replacing cached model")
		}
	}

	slot := &modelSlot{info: info}
	c.slots[kind] = slot
	return slot
}

// borrowMatching returns a handle for a cached live slot matching variant.
func (c *Cache) borrowMatching(kind domain.EngineKind, variant string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := c.slots[kind]
	if slot == nil || slot.evicted || slot.info.Variant != variant {
		return nil
	}
	slot.refs++
	return &Handle{cache: c, slot: slot}
}

// borrowSlot borrows slot if it is still live and matches variant.
func (c *Cache) borrowSlot(slot *modelSlot, variant string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	if slot.evicted || slot.info.Variant != variant {
		return nil
	}
	slot.refs++
	return &Handle{cache: c, slot: slot}
}
