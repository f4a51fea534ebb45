package test

import (
	"context"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
)

// MemoryStore is an in-memory implementation of every repository. Writes
// are serialized by one mutex; a transaction works on a snapshot that
// replaces the live state only when fn succeeds.
//
// fn passed to WithinTransaction must use the handed Tx only; calling the
// store's own methods from inside fn deadlocks.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time

	// TxCount counts finished transactions, committed or not.
	TxCount int
}

type memState struct {
	users     map[int64]model.User
	nextUser  int64
	drafts    map[int64]model.Draft
	nextDraft int64
	orders    map[int64]model.Order
	nextOrder int64
	payments  []model.Payment
	sessions  map[string]model.PaymentSession
	items     map[model.ItemRef]model.CatalogItem
	districts map[string]model.District
}

// NewMemoryStore builds an empty store using time.Now for session liveness.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:     make(map[int64]model.User),
			drafts:    make(map[int64]model.Draft),
			orders:    make(map[int64]model.Order),
			sessions:  make(map[string]model.PaymentSession),
			items:     make(map[model.ItemRef]model.CatalogItem),
			districts: make(map[string]model.District),
		},
		now: time.Now,
	}
}

// SetClock overrides the clock used for session expiry checks.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutItem inserts or replaces a catalog item.
func (s *MemoryStore) PutItem(item model.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.items[item.Ref] = item
}

// Stock returns the current stock of ref, or -1 when unknown.
func (s *MemoryStore) Stock(ref model.ItemRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.state.items[ref]
	if !ok {
		return -1
	}
	return item.Stock
}

// PutDistrict registers a delivery district.
func (s *MemoryStore) PutDistrict(d model.District) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.districts[d.Slug] = d
}

// OrderCount returns the number of committed orders.
func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// AllPayments returns every recorded payment in insertion order.
func (s *MemoryStore) AllPayments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Payment(nil), s.state.payments...)
}

// Users returns the user repository view.
func (s *MemoryStore) Users() repository.UserRepository { return memUsers{s} }

// Drafts returns the draft repository view.
func (s *MemoryStore) Drafts() repository.DraftRepository { return memDrafts{s} }

// Orders returns the order repository view.
func (s *MemoryStore) Orders() repository.OrderRepository { return memOrders{s} }

// Payments returns the payment repository view.
func (s *MemoryStore) Payments() repository.PaymentRepository { return memPayments{s} }

// Sessions returns the session repository view.
func (s *MemoryStore) Sessions() repository.SessionRepository { return memSessions{s} }

// Catalog returns the catalog view.
func (s *MemoryStore) Catalog() repository.Catalog { return memCatalog{s} }

// Districts returns the district view.
func (s *MemoryStore) Districts() repository.DistrictRepository { return memDistricts{s} }

// Unit returns the unit of work.
func (s *MemoryStore) Unit() repository.UnitOfWork { return s }

// WithinTransaction runs fn against a private snapshot and publishes it on success.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.TxCount++ }()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(ctx, &memTx{state: snapshot}); err != nil {
		return err
	}
	s.state = snapshot
	return nil
}

func (st *memState) clone() *memState {
	out := &memState{
		users:     make(map[int64]model.User, len(st.users)),
		nextUser:  st.nextUser,
		drafts:    make(map[int64]model.Draft, len(st.drafts)),
		nextDraft: st.nextDraft,
		orders:    make(map[int64]model.Order, len(st.orders)),
		nextOrder: st.nextOrder,
		payments:  append([]model.Payment(nil), st.payments...),
		sessions:  make(map[string]model.PaymentSession, len(st.sessions)),
		items:     make(map[model.ItemRef]model.CatalogItem, len(st.items)),
		districts: make(map[string]model.District, len(st.districts)),
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.drafts {
		out.drafts[k] = copyDraft(v)
	}
	for k, v := range st.orders {
		out.orders[k] = copyOrder(v)
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	for k, v := range st.items {
		out.items[k] = v
	}
	for k, v := range st.districts {
		out.districts[k] = v
	}
	return out
}

func copyDraft(d model.Draft) model.Draft {
	d.Cart = append([]model.CartLine(nil), d.Cart...)
	if d.ConvertedOrderID != nil {
		id := *d.ConvertedOrderID
		d.ConvertedOrderID = &id
	}
	return d
}

func copyOrder(o model.Order) model.Order {
	o.Lines = append([]model.LineItem(nil), o.Lines...)
	o.History = append([]model.StatusEntry(nil), o.History...)
	if o.UserID != nil {
		id := *o.UserID
		o.UserID = &id
	}
	return o
}

func (st *memState) draftByNumber(number string) (model.Draft, bool) {
	for _, d := range st.drafts {
		if d.ReservationNumber == number {
			return d, true
		}
	}
	return model.Draft{}, false
}

func (st *memState) orderByNumber(number string) (model.Order, bool) {
	for _, o := range st.orders {
		if o.Number == number {
			return o, true
		}
	}
	return model.Order{}, false
}

type memUsers struct{ s *MemoryStore }

func (r memUsers) Create(ctx context.Context, login, passwordHash string, role model.Role) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if u.Login == login {
			return nil, domainErrors.ErrAlreadyExists
		}
	}
	r.s.state.nextUser++
	u := model.User{ID: r.s.state.nextUser, Login: login, PasswordHash: passwordHash, Role: role, CreatedAt: r.s.now()}
	r.s.state.users[u.ID] = u
	return &u, nil
}

func (r memUsers) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.state.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.state.users[id]; ok {
		return &u, nil
	}
	return nil, domainErrors.ErrNotFound
}

type memDrafts struct{ s *MemoryStore }

func (r memDrafts) Create(ctx context.Context, draft *model.Draft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.state.draftByNumber(draft.ReservationNumber); exists {
		return domainErrors.ErrAlreadyExists
	}
	r.s.state.nextDraft++
	draft.ID = r.s.state.nextDraft
	r.s.state.drafts[draft.ID] = copyDraft(*draft)
	return nil
}

func (r memDrafts) GetByReservationNumber(ctx context.Context, number string) (*model.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.state.draftByNumber(number)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyDraft(d)
	return &out, nil
}

type memOrders struct{ s *MemoryStore }

func (r memOrders) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state.orders[id]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (r memOrders) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.state.orderByNumber(number)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (r memOrders) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Order
	for id := r.s.state.nextOrder; id > 0; id-- {
		o, ok := r.s.state.orders[id]
		if ok && o.UserID != nil && *o.UserID == userID {
			result = append(result, copyOrder(o))
		}
	}
	return result, nil
}

type memPayments struct{ s *MemoryStore }

func (r memPayments) Record(ctx context.Context, payment *model.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.state.recordPayment(payment, r.s.now())
}

func (r memPayments) ListByDraft(ctx context.Context, draftID int64) ([]model.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []model.Payment
	for _, p := range r.s.state.payments {
		if p.DraftID == draftID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r memPayments) HasStockConflict(ctx context.Context, draftID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.state.stockConflicted(draftID), nil
}

func (st *memState) stockConflicted(draftID int64) bool {
	for _, p := range st.payments {
		if p.DraftID == draftID && p.StockConflict() {
			return true
		}
	}
	return false
}

func (st *memState) recordPayment(p *model.Payment, now time.Time) error {
	if p.Status == model.PaymentStatusCompleted && p.OrderID != nil {
		for _, existing := range st.payments {
			if existing.Status == model.PaymentStatusCompleted && existing.OrderID != nil && *existing.OrderID == *p.OrderID {
				return domainErrors.ErrAlreadyExists
			}
		}
	}
	p.ID = int64(len(st.payments) + 1)
	p.CreatedAt = now
	st.payments = append(st.payments, *p)
	return nil
}

type memSessions struct{ s *MemoryStore }

func (r memSessions) Get(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.state.sessions[reservationNumber]
	if !ok || !sess.Live(r.s.now()) {
		return nil, domainErrors.ErrNotFound
	}
	return &sess, nil
}

func (r memSessions) Save(ctx context.Context, session *model.PaymentSession) (*model.PaymentSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing, ok := r.s.state.sessions[session.ReservationNumber]; ok && existing.Live(r.s.now()) {
		return &existing, nil
	}
	r.s.state.sessions[session.ReservationNumber] = *session
	stored := *session
	return &stored, nil
}

func (r memSessions) Delete(ctx context.Context, reservationNumber string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.state.sessions, reservationNumber)
	return nil
}

func (r memSessions) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var purged int64
	for k, sess := range r.s.state.sessions {
		if !sess.Live(now) {
			delete(r.s.state.sessions, k)
			purged++
		}
	}
	return purged, nil
}

func (r memSessions) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var result []model.PaymentSession
	for _, sess := range r.s.state.sessions {
		if len(result) >= limit {
			break
		}
		d, ok := r.s.state.drafts[sess.DraftID]
		if !ok || d.Converted() || !sess.Live(now) || sess.CreatedAt.After(olderThan) || r.s.state.stockConflicted(d.ID) {
			continue
		}
		result = append(result, sess)
	}
	return result, nil
}

type memCatalog struct{ s *MemoryStore }

func (r memCatalog) GetItem(ctx context.Context, ref model.ItemRef) (*model.CatalogItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.state.items[ref]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	return &item, nil
}

type memDistricts struct{ s *MemoryStore }

func (r memDistricts) Find(ctx context.Context, district string) (*model.District, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(strings.TrimSpace(district))
	for _, d := range r.s.state.districts {
		if d.Slug == key || strings.ToLower(d.Name) == key {
			return &d, nil
		}
	}
	return nil, domainErrors.ErrNotFound
}

type memTx struct {
	state *memState
}

func (t *memTx) DecrementStock(ctx context.Context, ref model.ItemRef, qty int) error {
	item, ok := t.state.items[ref]
	if !ok {
		return domainErrors.ErrNotFound
	}
	if item.Stock < qty {
		return domainErrors.ErrInsufficientStock
	}
	item.Stock -= qty
	t.state.items[ref] = item
	return nil
}

func (t *memTx) IncrementStock(ctx context.Context, ref model.ItemRef, qty int) error {
	item, ok := t.state.items[ref]
	if !ok {
		return domainErrors.ErrNotFound
	}
	item.Stock += qty
	t.state.items[ref] = item
	return nil
}

func (t *memTx) LockDraft(ctx context.Context, draftID int64) (*model.Draft, error) {
	d, ok := t.state.drafts[draftID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyDraft(d)
	return &out, nil
}

func (t *memTx) MarkDraftConverted(ctx context.Context, draftID, orderID int64) error {
	d, ok := t.state.drafts[draftID]
	if !ok || d.Converted() {
		return domainErrors.ErrAlreadyConverted
	}
	d.ConvertedOrderID = &orderID
	t.state.drafts[draftID] = d
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *model.Order) error {
	for _, o := range t.state.orders {
		if o.SourceDraftID == order.SourceDraftID {
			return domainErrors.ErrAlreadyConverted
		}
		if o.Number == order.Number {
			return domainErrors.ErrAlreadyExists
		}
	}
	t.state.nextOrder++
	order.ID = t.state.nextOrder
	t.state.orders[order.ID] = copyOrder(*order)
	return nil
}

func (t *memTx) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	o, ok := t.state.orders[orderID]
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (t *memTx) LockOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	o, ok := t.state.orderByNumber(number)
	if !ok {
		return nil, domainErrors.ErrNotFound
	}
	out := copyOrder(o)
	return &out, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	o, ok := t.state.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	o.Status = status
	t.state.orders[orderID] = o
	return nil
}

func (t *memTx) AppendStatus(ctx context.Context, orderID int64, entry model.StatusEntry) error {
	o, ok := t.state.orders[orderID]
	if !ok {
		return domainErrors.ErrNotFound
	}
	o.History = append(append([]model.StatusEntry(nil), o.History...), entry)
	t.state.orders[orderID] = o
	return nil
}

func (t *memTx) RecordPayment(ctx context.Context, payment *model.Payment) error {
	return t.state.recordPayment(payment, time.Now())
}

func (t *memTx) HasStockConflict(ctx context.Context, draftID int64) (bool, error) {
	return t.state.stockConflicted(draftID), nil
}

var (
	_ repository.Factory    = (*MemoryStore)(nil)
	_ repository.UnitOfWork = (*MemoryStore)(nil)
	_ repository.Tx         = (*memTx)(nil)
)
