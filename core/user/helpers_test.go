package user_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/eduva/eduva/core"
	"github.com/eduva/eduva/core/user"
	dummydb "github.com/eduva/eduva/storage/database/dummy"
	"github.com/eduva/eduva/tests"
)

var (
	errBoom = errors.New("boom")
	conf    = testutil.NewConfig()
	hasher  = user.NewBcryptHasher(conf.Password.BcryptCost)
)

func newDummyRepo(t *testing.T) (*dummydb.DB, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return db, dummydb.NewCredentialRepository(db)
}

func newLogger() core.Logger {
	return testutil.NewLogger(conf)
}

func newVerifier(events user.EventSink) *user.Verifier {
	return user.NewVerifier(hasher, user.NewEngine(events), events, newLogger())
}

func mustHash(t *testing.T, pwd string) string {
	t.Helper()
	digest, err := hasher.Hash(pwd)
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	return digest
}

type eventRecorder struct {
	mu     sync.Mutex
	events []user.Event
}

func (r *eventRecorder) Emit(_ context.Context, ev user.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) types() []user.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]user.EventType, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.Type)
	}
	return types
}

func (r *eventRecorder) count(typ user.EventType) int {
	var n int
	for _, et := range r.types() {
		if et == typ {
			n++
		}
	}
	return n
}
