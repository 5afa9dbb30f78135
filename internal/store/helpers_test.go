package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"taskapi/internal/kv"
	"taskapi/internal/logger"
)

type prefixHasher struct{}

func (prefixHasher) Hash(plain string) (string, error) {
	if strings.Contains(plain, "\x00") {
		return "", errors.New("password contains NUL")
	}
	return "hashed:" + plain, nil
}

// recordingStore wraps a real store, counts mutating calls and can fail or
// pause selected operations.
type recordingStore struct {
	kv.Store

	mu        sync.Mutex
	mutations []string
	failOn    map[string]error
	before    map[string]func()
}

func (r *recordingStore) record(op string) error {
	r.mu.Lock()
	hook := r.before[op]
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failOn[op]; ok {
		return err
	}
	switch op {
	case "Increment", "SetFields", "SetField", "Delete", "AddMember", "RemoveMember", "SetStringNX", "CompareAndSwap", "CompareAndDelete":
		r.mutations = append(r.mutations, op)
	}
	return nil
}

// pauseOnce blocks the first call to op until resume is closed. The returned
// channel is closed once that call is waiting.
func (r *recordingStore) pauseOnce(op string, resume <-chan struct{}) <-chan struct{} {
	paused := make(chan struct{})
	var fired atomic.Bool
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.before == nil {
		r.before = map[string]func(){}
	}
	r.before[op] = func() {
		if fired.CompareAndSwap(false, true) {
			close(paused)
			<-resume
		}
	}
	return paused
}

func (r *recordingStore) fail(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == nil {
		r.failOn = map[string]error{}
	}
	r.failOn[op] = err
}

func (r *recordingStore) Mutations() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.mutations...)
}

func (r *recordingStore) Increment(ctx context.Context, key string) (int64, error) {
	if err := r.record("Increment"); err != nil {
		return 0, err
	}
	return r.Store.Increment(ctx, key)
}

func (r *recordingStore) GetFields(ctx context.Context, key string) (map[string]string, error) {
	if err := r.record("GetFields"); err != nil {
		return nil, err
	}
	return r.Store.GetFields(ctx, key)
}

func (r *recordingStore) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if err := r.record("SetFields"); err != nil {
		return err
	}
	return r.Store.SetFields(ctx, key, fields)
}

func (r *recordingStore) SetField(ctx context.Context, key, field, value string) error {
	if err := r.record("SetField"); err != nil {
		return err
	}
	return r.Store.SetField(ctx, key, field, value)
}

func (r *recordingStore) Delete(ctx context.Context, key string) error {
	if err := r.record("Delete"); err != nil {
		return err
	}
	return r.Store.Delete(ctx, key)
}

func (r *recordingStore) AddMember(ctx context.Context, key, member string) error {
	if err := r.record("AddMember"); err != nil {
		return err
	}
	return r.Store.AddMember(ctx, key, member)
}

func (r *recordingStore) RemoveMember(ctx context.Context, key, member string) error {
	if err := r.record("RemoveMember"); err != nil {
		return err
	}
	return r.Store.RemoveMember(ctx, key, member)
}

func (r *recordingStore) Members(ctx context.Context, key string) ([]string, error) {
	if err := r.record("Members"); err != nil {
		return nil, err
	}
	return r.Store.Members(ctx, key)
}

func (r *recordingStore) CompareAndSwap(ctx context.Context, key, old, next string) (bool, error) {
	if err := r.record("CompareAndSwap"); err != nil {
		return false, err
	}
	return r.Store.CompareAndSwap(ctx, key, old, next)
}

func (r *recordingStore) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	if err := r.record("CompareAndDelete"); err != nil {
		return false, err
	}
	return r.Store.CompareAndDelete(ctx, key, old)
}

func (r *recordingStore) SetStringNX(ctx context.Context, key, value string) (bool, error) {
	if err := r.record("SetStringNX"); err != nil {
		return false, err
	}
	return r.Store.SetStringNX(ctx, key, value)
}

// setupTestStores returns adapters over a fresh miniredis, the recording
// wrapper they talk through and the miniredis instance itself.
func setupTestStores(t *testing.T) (*Stores, *recordingStore, *miniredis.Miniredis) {
	t.Helper()
	logger.New("NOOP")
	t.Cleanup(logger.OnExit)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	backend := kv.NewRedisFromClient(client, logger.Sugar)
	t.Cleanup(func() { backend.Close() })

	rec := &recordingStore{Store: backend}
	return New(rec, prefixHasher{}, logger.Sugar), rec, mr
}
