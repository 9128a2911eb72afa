package service_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/memory"
	"github.com/boddenberg/travel-crm-go/internal/port"
)

// fixedNow is a Tuesday morning, Israel standard time.
var (
	testLoc  = time.FixedZone("IST", 2*60*60)
	fixedNow = time.Date(2026, 3, 10, 9, 30, 0, 0, testLoc)
)

func clock() time.Time { return fixedNow }

func day(offset int) string {
	return fixedNow.AddDate(0, 0, offset).Format(time.DateOnly)
}

func ptr(f float64) *float64 { return &f }

func agent(id string) *domain.Profile {
	return &domain.Profile{ID: id, Email: id + "@agency.test", FullName: "Agent " + id, Role: domain.RoleAgent, Status: domain.ProfileApproved, IsActive: true}
}

func admin(id string) *domain.Profile {
	return &domain.Profile{ID: id, Email: id + "@agency.test", FullName: "Admin " + id, Role: domain.RoleAdmin, Status: domain.ProfileApproved, IsActive: true}
}

func newStore() *memory.Store {
	return memory.New(memory.WithClock(clock))
}

func seedLead(store *memory.Store, lead domain.Lead) *domain.Lead {
	created, err := store.CreateLead(context.Background(), &lead)
	if err != nil {
		panic(err)
	}
	return created
}

// countingStore records update calls and can inject failures.
type countingStore struct {
	port.RecordStore
	updates     atomic.Int32
	updateErr   error
	getErr      error
	checkErr    error
	createCalls atomic.Int32

	docMu      sync.Mutex
	docBatches []int
}

func (c *countingStore) recordBatch(ids []string) {
	c.docMu.Lock()
	defer c.docMu.Unlock()
	c.docBatches = append(c.docBatches, len(ids))
}

func (c *countingStore) batches() []int {
	c.docMu.Lock()
	defer c.docMu.Unlock()
	out := append([]int(nil), c.docBatches...)
	sort.Ints(out)
	return out
}

func (c *countingStore) ListDocumentsForLeads(ctx context.Context, leadIDs []string) ([]domain.Document, error) {
	c.recordBatch(leadIDs)
	return c.RecordStore.ListDocumentsForLeads(ctx, leadIDs)
}

func (c *countingStore) ListDocumentsExpiringForLeads(ctx context.Context, leadIDs []string, from, to string) ([]domain.Document, error) {
	c.recordBatch(leadIDs)
	return c.RecordStore.ListDocumentsExpiringForLeads(ctx, leadIDs, from, to)
}

func (c *countingStore) UpdateLead(ctx context.Context, id string, patch map[string]any) error {
	c.updates.Add(1)
	if c.updateErr != nil {
		return c.updateErr
	}
	return c.RecordStore.UpdateLead(ctx, id, patch)
}

func (c *countingStore) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.RecordStore.GetLead(ctx, id)
}

func (c *countingStore) HasRecentNotification(ctx context.Context, userID, notifType, dataKey, dataValue string, since time.Time) (bool, error) {
	if c.checkErr != nil {
		return false, c.checkErr
	}
	return c.RecordStore.HasRecentNotification(ctx, userID, notifType, dataKey, dataValue, since)
}

func (c *countingStore) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	c.createCalls.Add(1)
	return c.RecordStore.CreateNotification(ctx, n)
}

var errStoreDown = errors.New("store unavailable")

// fakeFiles is an in-memory port.FileStorage.
type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: map[string][]byte{}}
}

func (f *fakeFiles) Upload(_ context.Context, path, _ string, body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = data
	return "https://files.test/" + path, nil
}

func (f *fakeFiles) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	f.removed = append(f.removed, path)
	return nil
}

// recordingDispatcher captures dispatched events.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, e domain.NotificationEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
	return d.err
}
