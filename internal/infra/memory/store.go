// Package memory is a process-local record store. It backs the service in
// development (STORE_BACKEND=memory) and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// Store implements port.RecordStore with maps guarded by one mutex.
type Store struct {
	mu            sync.RWMutex
	leads         map[string]domain.Lead
	documents     map[string]domain.Document
	notifications map[string]domain.Notification
	profiles      map[string]domain.Profile
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		leads:         make(map[string]domain.Lead),
		documents:     make(map[string]domain.Document),
		notifications: make(map[string]domain.Notification),
		profiles:      make(map[string]domain.Profile),
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// ============================================================
// Leads
// ============================================================

func (s *Store) ListLeads(_ context.Context, filter domain.LeadFilter) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []domain.Lead{}
	for _, l := range s.leads {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if search != "" && !matchesSearch(l, search) {
			continue
		}
		out = append(out, cloneLead(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matchesSearch(l domain.Lead, term string) bool {
	for _, v := range []string{l.Name, l.Phone, l.Email, l.Destination} {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func (s *Store) GetLead(_ context.Context, id string) (*domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.leads[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	c := cloneLead(l)
	return &c, nil
}

func (s *Store) CreateLead(_ context.Context, lead *domain.Lead) (*domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := cloneLead(*lead)
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if _, exists := s.leads[l.ID]; exists {
		return nil, fmt.Errorf("lead %s already exists", l.ID)
	}
	if l.Status == "" {
		l.Status = domain.StatusLead
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	now := s.now()
	l.CreatedAt, l.UpdatedAt = now, now
	s.leads[l.ID] = l

	c := cloneLead(l)
	return &c, nil
}

// UpdateLead merges patch through the JSON representation, so a value of
// the wrong type fails the whole patch and leaves the lead untouched.
func (s *Store) UpdateLead(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leads[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	for k := range patch {
		if !domain.IsLeadField(k) {
			return fmt.Errorf("column %q does not exist", k)
		}
	}

	updated, err := current.WithPatch(patch)
	if err != nil {
		return err
	}
	if !updated.Status.Valid() {
		return fmt.Errorf("invalid status %q", updated.Status)
	}
	updated.UpdatedAt = s.now()
	s.leads[id] = updated
	return nil
}

// DeleteLead removes the lead and its documents.
func (s *Store) DeleteLead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	delete(s.leads, id)
	for docID, d := range s.documents {
		if d.LeadID == id {
			delete(s.documents, docID)
		}
	}
	return nil
}

func cloneLead(l domain.Lead) domain.Lead {
	if l.Tags != nil {
		l.Tags = append([]string(nil), l.Tags...)
	}
	l.Budget = cloneFloat(l.Budget)
	l.TotalPrice = cloneFloat(l.TotalPrice)
	l.Commission = cloneFloat(l.Commission)
	l.DepositAmount = cloneFloat(l.DepositAmount)
	l.BalanceAmount = cloneFloat(l.BalanceAmount)
	return l
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// ============================================================
// Documents
// ============================================================

func (s *Store) ListDocuments(_ context.Context, leadID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Document{}
	for _, d := range s.documents {
		if d.LeadID == leadID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *Store) ListDocumentsForLeads(_ context.Context, leadIDs []string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]struct{}, len(leadIDs))
	for _, id := range leadIDs {
		wanted[id] = struct{}{}
	}
	out := []domain.Document{}
	for _, d := range s.documents {
		if _, ok := wanted[d.LeadID]; ok {
			out = append(out, d)
		}
	}
	sortByExpiry(out)
	return out, nil
}

func (s *Store) ListDocumentsExpiring(_ context.Context, from, to string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Document{}
	for _, d := range s.documents {
		exp := domain.DateOnly(d.ExpiryDate)
		if exp == "" || exp < from || exp > to {
			continue
		}
		out = append(out, d)
	}
	sortByExpiry(out)
	return out, nil
}

func (s *Store) ListDocumentsExpiringForLeads(ctx context.Context, leadIDs []string, from, to string) ([]domain.Document, error) {
	docs, err := s.ListDocumentsForLeads(ctx, leadIDs)
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		exp := domain.DateOnly(d.ExpiryDate)
		if exp != "" && exp >= from && exp <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func sortByExpiry(docs []domain.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i].ExpiryDate, docs[j].ExpiryDate
		if a == "" || b == "" {
			return b == "" && a != ""
		}
		return a < b
	})
}

func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "document", ID: id}
	}
	return &d, nil
}

func (s *Store) CreateDocument(_ context.Context, doc *domain.Document) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[doc.LeadID]; !ok {
		return nil, fmt.Errorf("lead %s does not exist", doc.LeadID)
	}
	d := *doc
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = s.now()
	}
	s.documents[d.ID] = d
	return &d, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return &domain.ErrNotFound{Resource: "document", ID: id}
	}
	delete(s.documents, id)
	return nil
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Notification{}
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) HasRecentNotification(_ context.Context, userID, notifType, dataKey, dataValue string, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications {
		if n.UserID == userID && n.Type == notifType && dataMatches(n, dataKey, dataValue) && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func dataMatches(n domain.Notification, key, value string) bool {
	v, ok := n.Data[key]
	return ok && fmt.Sprint(v) == value
}

func (s *Store) CreateNotification(_ context.Context, n *domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *n
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Data == nil {
		c.Data = map[string]any{}
	}
	c.IsRead = false
	c.CreatedAt = s.now()
	s.notifications[c.ID] = c
	return &c, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	n.IsRead = true
	s.notifications[id] = n
	return nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			s.notifications[id] = n
		}
	}
	return nil
}

func (s *Store) DeleteNotification(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) DeleteNotificationsByData(_ context.Context, notifType, dataKey, dataValue string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.notifications {
		if n.Type == notifType && dataMatches(n, dataKey, dataValue) {
			delete(s.notifications, id)
		}
	}
	return nil
}

// ============================================================
// Profiles
// ============================================================

// PutProfile inserts or replaces a profile. Profiles are created by the
// auth provider in production; this seeds them for development and tests.
func (s *Store) PutProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = s.now()
	s.profiles[p.ID] = p
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &p, nil
}

func (s *Store) ListProfiles(_ context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Profile{}
	for _, p := range s.profiles {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Role != "" && p.Role != filter.Role {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateProfile(_ context.Context, id string, patch map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	for k, v := range patch {
		switch k {
		case "role":
			p.Role = domain.Role(fmt.Sprint(v))
		case "status":
			p.Status = domain.ProfileStatus(fmt.Sprint(v))
		case "is_active":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("is_active must be boolean")
			}
			p.IsActive = b
		case "full_name":
			p.FullName = fmt.Sprint(v)
		case "phone":
			p.Phone = fmt.Sprint(v)
		default:
			return fmt.Errorf("column %q does not exist", k)
		}
	}
	p.UpdatedAt = s.now()
	s.profiles[id] = p
	return nil
}
