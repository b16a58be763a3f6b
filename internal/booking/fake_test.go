package booking

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"slotbook/internal/catalog"
	"slotbook/internal/promo"
	"slotbook/internal/schedule"

	"github.com/lib/pq"
)

// memRepo is an in-memory Repository. WithinSlotLock serializes callers per
// slot key the way the advisory lock does, so concurrency tests exercise the
// same check-then-insert protocol as Postgres.
type memRepo struct {
	locks sync.Map

	mu        sync.Mutex
	nextID    int64
	bookings  map[int64]*Booking
	items     map[int64][]LineItem
	refs      map[string]bool
	promoUses map[int64]int
	promoMax  map[int64]int
	failWith  error

	// beforeLock runs at the start of WithinSlotLock, outside the slot lock.
	beforeLock func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		bookings:  map[int64]*Booking{},
		items:     map[int64][]LineItem{},
		refs:      map[string]bool{},
		promoUses: map[int64]int{},
		promoMax:  map[int64]int{},
	}
}

func (r *memRepo) WithinSlotLock(ctx context.Context, key SlotKey, fn func(tx Tx) error) error {
	if r.failWith != nil {
		return r.failWith
	}
	if r.beforeLock != nil {
		r.beforeLock()
	}

	m, _ := r.locks.LoadOrStore(key.String(), &sync.Mutex{})
	lock := m.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	tx := &memTx{repo: r}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	tx.commit()
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, id int64) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (r *memRepo) GetByPublicID(ctx context.Context, publicID string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bookings {
		if b.PublicID == publicID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *memRepo) ListLineItems(ctx context.Context, bookingID int64) ([]LineItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LineItem(nil), r.items[bookingID]...), nil
}

func (r *memRepo) ListByProjectDate(ctx context.Context, projectID int64, date time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Booking
	for _, b := range r.bookings {
		if b.ProjectID == projectID && schedule.SameDay(b.ScheduledDate, date) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) CountActiveByStart(ctx context.Context, locationID int64, date time.Time) (map[schedule.Clock]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := map[schedule.Clock]int{}
	for _, b := range r.bookings {
		if b.LocationID != nil && *b.LocationID == locationID && schedule.SameDay(b.ScheduledDate, date) && b.Status.Occupies() {
			counts[b.StartTime]++
		}
	}
	return counts, nil
}

func (r *memRepo) SetCalendarEventID(ctx context.Context, id int64, eventID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[id]; ok {
		b.CalendarEventID = eventID
	}
	return nil
}

func (r *memRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]Booking, error) {
	return nil, nil
}

func (r *memRepo) MarkReminderSent(ctx context.Context, id int64) (bool, error) {
	return true, nil
}

func (r *memRepo) countActive(key SlotKey, excludeID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.bookings {
		if b.ID == excludeID || !b.Status.Occupies() {
			continue
		}
		if b.slotKey().String() == key.String() {
			n++
		}
	}
	return n
}

func (r *memRepo) activeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, b := range r.bookings {
		if b.Status.Occupies() {
			n++
		}
	}
	return n
}

type memTx struct {
	repo       *memRepo
	inserted   []*Booking
	items      map[int64][]LineItem
	promoIncs  []int64
	reschedule []func()
	statuses   []func()
}

func (t *memTx) CountActiveForSlot(ctx context.Context, key SlotKey, excludeID int64) (int, error) {
	return t.repo.countActive(key, excludeID), nil
}

func (t *memTx) CountCreatedBetween(ctx context.Context, projectID int64, from, to time.Time) (int, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	n := 0
	for _, b := range t.repo.bookings {
		if b.ProjectID == projectID && !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) Insert(ctx context.Context, b *Booking) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if t.repo.refs[b.ReferenceNumber] {
		return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	t.repo.nextID++
	b.ID = t.repo.nextID
	b.CreatedAt = testNow
	b.UpdatedAt = testNow
	t.inserted = append(t.inserted, b)
	return nil
}

func (t *memTx) InsertLineItems(ctx context.Context, bookingID int64, items []LineItem) error {
	if t.items == nil {
		t.items = map[int64][]LineItem{}
	}
	for i := range items {
		items[i].BookingID = bookingID
		items[i].ID = int64(i + 1)
	}
	t.items[bookingID] = append([]LineItem(nil), items...)
	return nil
}

func (t *memTx) IncrementPromoUses(ctx context.Context, promoID int64) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	if limit, ok := t.repo.promoMax[promoID]; ok && t.repo.promoUses[promoID] >= limit {
		return false, nil
	}
	t.repo.promoUses[promoID]++
	t.promoIncs = append(t.promoIncs, promoID)
	return true, nil
}

func (t *memTx) UpdateSchedule(ctx context.Context, id int64, date time.Time, start, end schedule.Clock) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	b, ok := t.repo.bookings[id]
	if !ok || !b.Status.Occupies() {
		return false, nil
	}
	t.reschedule = append(t.reschedule, func() {
		b.ScheduledDate, b.StartTime, b.EndTime = date, start, end
	})
	return true, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	b, ok := t.repo.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	t.statuses = append(t.statuses, func() { b.Status = to })
	return true, nil
}

func (t *memTx) commit() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, b := range t.inserted {
		cp := *b
		cp.LineItems = nil
		t.repo.bookings[b.ID] = &cp
		t.repo.refs[b.ReferenceNumber] = true
	}
	for id, items := range t.items {
		t.repo.items[id] = items
	}
	for _, apply := range t.reschedule {
		apply()
	}
	for _, apply := range t.statuses {
		apply()
	}
}

func (t *memTx) rollback() {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, id := range t.promoIncs {
		t.repo.promoUses[id]--
	}
}

type stubProjects struct {
	project   *schedule.Project
	locations []*schedule.Location
}

func (s *stubProjects) GetProject(ctx context.Context, id int64) (*schedule.Project, error) {
	if s.project == nil || s.project.ID != id {
		return nil, schedule.ErrProjectNotFound
	}
	return s.project, nil
}

func (s *stubProjects) ResolveLocation(ctx context.Context, projectID int64, locationID *int64) (*schedule.Location, error) {
	for _, l := range s.locations {
		if locationID != nil && l.ID == *locationID {
			if !l.IsActive {
				return nil, schedule.ErrLocationNotFound
			}
			return l, nil
		}
		if locationID == nil && l.IsActive {
			return l, nil
		}
	}
	if locationID != nil {
		return nil, schedule.ErrLocationNotFound
	}
	return nil, schedule.ErrNoActiveLocation
}

type stubSlots struct {
	byDay   map[int][]schedule.TimeSlot
	blocked map[string]bool
}

func (s *stubSlots) ListActiveTimeSlots(ctx context.Context, locationID int64, dayOfWeek int) ([]schedule.TimeSlot, error) {
	return s.byDay[dayOfWeek], nil
}

func (s *stubSlots) IsDateBlocked(ctx context.Context, locationID int64, date time.Time) (bool, error) {
	return s.blocked[date.Format(schedule.DateLayout)], nil
}

type stubCatalog map[int64]catalog.Service

func (s stubCatalog) ResolveServices(ctx context.Context, projectID int64, ids []int64) (map[int64]catalog.Service, error) {
	out := map[int64]catalog.Service{}
	for _, id := range ids {
		if svc, ok := s[id]; ok {
			out[id] = svc
		}
	}
	return out, nil
}

type stubPromos map[string]*promo.PromoCode

func (s stubPromos) FindByCode(ctx context.Context, projectID int64, code string) (*promo.PromoCode, error) {
	p, ok := s[promo.NormalizeCode(code)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(ctx context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) names() []EventName {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]EventName, len(n.events))
	for i, e := range n.events {
		out[i] = e.Name
	}
	return out
}
