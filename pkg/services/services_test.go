package services

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"devsocial/pkg/models"
	"devsocial/pkg/repository/memory"
	"devsocial/pkg/search"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type notice struct {
	Room    string
	Payload interface{}
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notice
}

func (f *fakeNotifier) NotifyAccount(accountID int64, payload interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notice{Room: "notifications_" + strconv.FormatInt(accountID, 10), Payload: payload})
	return 1
}

func (f *fakeNotifier) ProjectUpdated(projectID string, payload interface{}) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notice{Room: "project_" + projectID, Payload: payload})
	return 1
}

func (f *fakeNotifier) notices() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notice{}, f.sent...)
}

type fixture struct {
	store    *memory.Store
	svc      *Services
	notifier *fakeNotifier
	index    *search.Index

	ana   models.Identity
	bruno models.Identity
	mod   models.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick int64
	store.SetClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	accounts := []models.Account{
		{ID: 1, Handle: "ana", FirstName: "Ana", LastName: "Lima", Reputation: 4.5},
		{ID: 2, Handle: "bruno", FirstName: "Bruno"},
		{ID: 3, Handle: "mod", Role: models.RoleModerator},
	}
	for _, a := range accounts {
		store.PutAccount(a)
	}

	idx, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	n := &fakeNotifier{}
	svc := New(Deps{
		Repo:     store.Repository(),
		Index:    idx,
		Notifier: n,
		Logger:   zap.NewNop(),
	})

	return &fixture{
		store:    store,
		svc:      svc,
		notifier: n,
		index:    idx,
		ana:      accounts[0].Identity(),
		bruno:    accounts[1].Identity(),
		mod:      accounts[2].Identity(),
	}
}

func (f *fixture) post(t *testing.T, author models.Identity, in CreatePostInput) *models.Post {
	t.Helper()
	p, err := f.svc.Posts.Create(context.Background(), author, in)
	require.NoError(t, err)
	return p
}
