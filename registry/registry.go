// Package registry tracks every socket and worker goroutine a wavlink node
// spawns so that one shutdown call can stop all of them deterministically.
//
// Resources and workers are grouped by role ("listener", "accepted-peer",
// "outbound-peer", ...). Each role has a fixed capacity; running out of slots
// is a configuration problem, reported as ErrCapacityExceeded.
//
// Workers never get killed. ShutdownAll cancels the registry context, closes
// every tracked resource so blocked calls return, and then waits for each
// worker to observe the cancellation and exit.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// ErrCapacityExceeded indicates that a role has no free slot.
	ErrCapacityExceeded = errors.New("registry capacity exceeded")

	// ErrShuttingDown indicates that ShutdownAll is in progress.
	ErrShuttingDown = errors.New("registry is shutting down")

	// ErrInvalidCapacity indicates a non-positive capacity.
	ErrInvalidCapacity = errors.New("registry capacity must be positive")
)

// Resource is anything the registry can close on shutdown.
type Resource interface {
	Close() error
}

// Registry is the bookkeeping for live sockets and worker goroutines.
// All mutations are serialized by one mutex.
type Registry struct {
	mu       sync.Mutex
	capacity int
	slots    map[string]map[int]Resource
	workers  map[string]int
	closing  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// shutdownMu serializes concurrent ShutdownAll calls.
	shutdownMu sync.Mutex
}

// New creates a registry holding at most capacity resources and capacity
// workers per role.
func New(capacity int) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		capacity: capacity,
		slots:    make(map[string]map[int]Resource),
		workers:  make(map[string]int),
		ctx:      ctx,
		cancel:   cancel,
	}

	logrus.WithFields(logrus.Fields{
		"function": "registry.New",
		"capacity": capacity,
	}).Debug("Endpoint registry created")

	return r, nil
}

// Capacity returns the per-role limit.
func (r *Registry) Capacity() int {
	return r.capacity
}

// Context returns the context cancelled by the next ShutdownAll.
func (r *Registry) Context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// Track stores res under role and returns its slot index.
func (r *Registry) Track(role string, res Resource) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closing {
		return -1, ErrShuttingDown
	}

	slots := r.slots[role]
	if slots == nil {
		slots = make(map[int]Resource)
		r.slots[role] = slots
	}

	for slot := 0; slot < r.capacity; slot++ {
		if _, used := slots[slot]; !used {
			slots[slot] = res
			return slot, nil
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Track",
		"role":     role,
		"capacity": r.capacity,
	}).Error("No free registry slot")
	return -1, fmt.Errorf("%w: role %s holds %d resources", ErrCapacityExceeded, role, r.capacity)
}

// Untrack frees a slot. Freeing an unknown slot is a no-op.
func (r *Registry) Untrack(role string, slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slots := r.slots[role]; slots != nil {
		delete(slots, slot)
	}
}

// Go runs fn on a new tracked goroutine. fn must return once ctx is done.
func (r *Registry) Go(role, name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return ErrShuttingDown
	}
	if r.workers[role] >= r.capacity {
		r.mu.Unlock()
		return fmt.Errorf("%w: role %s runs %d workers", ErrCapacityExceeded, role, r.capacity)
	}
	r.workers[role]++
	r.wg.Add(1)
	ctx := r.ctx
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.workers[role]--
			r.mu.Unlock()
			r.wg.Done()
		}()

		logrus.WithFields(logrus.Fields{
			"function": "Go",
			"role":     role,
			"worker":   name,
		}).Debug("Worker started")

		fn(ctx)

		logrus.WithFields(logrus.Fields{
			"function": "Go",
			"role":     role,
			"worker":   name,
		}).Debug("Worker exited")
	}()

	return nil
}

// Counts returns the live resources and workers of role.
func (r *Registry) Counts(role string) (resources, workers int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots[role]), r.workers[role]
}

// Roles lists every role that currently holds a resource or worker.
func (r *Registry) Roles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	for role, slots := range r.slots {
		if len(slots) > 0 {
			seen[role] = struct{}{}
		}
	}
	for role, n := range r.workers {
		if n > 0 {
			seen[role] = struct{}{}
		}
	}

	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// ShutdownAll cancels every worker, closes every tracked resource, waits for
// the workers to exit and leaves the registry empty and reusable.
func (r *Registry) ShutdownAll() error {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()

	r.mu.Lock()
	r.closing = true
	r.cancel()
	var resources []Resource
	for _, slots := range r.slots {
		for _, res := range slots {
			resources = append(resources, res)
		}
	}
	r.slots = make(map[string]map[int]Resource)
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "ShutdownAll",
		"resources": len(resources),
	}).Info("Shutting down registry")

	var errs []error
	for _, res := range resources {
		if err := res.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	r.wg.Wait()

	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.closing = false
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":     "ShutdownAll",
		"close_errors": len(errs),
	}).Info("Registry shut down")

	return errors.Join(errs...)
}
