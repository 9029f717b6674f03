package interop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// fakeImporter hands out a single fakeObject, optionally gated.
type fakeImporter struct {
	gate    chan struct{}
	err     error
	obj     *fakeObject
	imports atomic.Int32
}

func newFakeImporter() *fakeImporter {
	return &fakeImporter{obj: newFakeObject()}
}

func (f *fakeImporter) Import(ctx context.Context, locator string) (ObjectReference, error) {
	f.imports.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.obj, nil
}

type fakeObject struct {
	mu       sync.Mutex
	calls    []string
	results  map[string]any
	errs     map[string]error
	releases atomic.Int32
}

func newFakeObject() *fakeObject {
	return &fakeObject{
		results: make(map[string]any),
		errs:    make(map[string]error),
	}
}

func (o *fakeObject) Invoke(ctx context.Context, identifier string, result any, args ...any) error {
	o.mu.Lock()
	o.calls = append(o.calls, identifier)
	res, hasResult := o.results[identifier]
	err := o.errs[identifier]
	o.mu.Unlock()

	if err != nil {
		return err
	}
	if result != nil && hasResult {
		p, err := NewPayload(res)
		if err != nil {
			return err
		}
		return p.Decode(result)
	}
	return nil
}

func (o *fakeObject) Release(ctx context.Context) error {
	o.releases.Add(1)
	return nil
}

func (o *fakeObject) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

// fakeRegistrar routes invocations by reference ID, like a runtime would.
type fakeRegistrar struct {
	mu       sync.Mutex
	next     int
	live     map[string]Receiver
	all      map[string]Receiver
	released []string
	failNext bool
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		live: make(map[string]Receiver),
		all:  make(map[string]Receiver),
	}
}

func (f *fakeRegistrar) RegisterCallback(r Receiver) (CallbackReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, fmt.Errorf("registrar unavailable")
	}
	f.next++
	id := fmt.Sprintf("cb-%d", f.next)
	f.live[id] = r
	f.all[id] = r
	return &fakeRef{id: id, reg: f}, nil
}

// invoke simulates the remote side invoking a reference. The action runs
// synchronously.
func (f *fakeRegistrar) invoke(id string, payload Payload) error {
	f.mu.Lock()
	r, ok := f.live[id]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("callback %s has been disposed", id)
	}
	run, err := r.Receive(payload)
	if err != nil {
		return err
	}
	run()
	return nil
}

func (f *fakeRegistrar) releasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

type fakeRef struct {
	id  string
	reg *fakeRegistrar
}

func (r *fakeRef) ID() string { return r.id }

func (r *fakeRef) Release() {
	r.reg.mu.Lock()
	defer r.reg.mu.Unlock()
	delete(r.reg.live, r.id)
	r.reg.released = append(r.reg.released, r.id)
}
