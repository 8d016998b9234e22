package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// flights runs one shared call per key. The shared call is detached from
// the caller that started it; every caller waits on its own context and
// receives the progress stages reported while it waits.
type flights struct {
	group singleflight.Group

	mu      sync.Mutex
	subs    map[string]map[int]func(string)
	next    int
	waiting map[string]int
}

type sharedFunc func(ctx context.Context, report func(stage string)) (interface{}, error)

func (f *flights) do(ctx context.Context, key string, onProgress func(string), fn sharedFunc) (interface{}, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	unsubscribe := f.subscribe(key, onProgress)
	defer unsubscribe()

	work := context.WithoutCancel(ctx)
	ch := f.group.DoChan(key, func() (interface{}, error) {
		return fn(work, func(stage string) { f.emit(key, stage) })
	})
	f.wait(key, 1)
	defer f.wait(key, -1)

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (f *flights) subscribe(key string, fn func(string)) func() {
	if fn == nil {
		return func() {}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string]map[int]func(string))
	}
	if f.subs[key] == nil {
		f.subs[key] = make(map[int]func(string))
	}
	id := f.next
	f.next++
	f.subs[key][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[key], id)
		if len(f.subs[key]) == 0 {
			delete(f.subs, key)
		}
	}
}

func (f *flights) emit(key string, stage string) {
	f.mu.Lock()
	fns := make([]func(string), 0, len(f.subs[key]))
	for _, fn := range f.subs[key] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(stage)
	}
}

func (f *flights) wait(key string, delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.waiting == nil {
		f.waiting = make(map[string]int)
	}
	f.waiting[key] += delta
	if f.waiting[key] == 0 {
		delete(f.waiting, key)
	}
}

// waiters is the number of callers blocked on key.
func (f *flights) waiters(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waiting[key]
}
