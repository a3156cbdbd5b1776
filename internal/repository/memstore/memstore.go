// Package memstore provides an in-memory repository.Store for tests.
// It enforces the same uniqueness and finalization rules as the Postgres
// schema, and InTx rolls back every change when fn fails.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"gitlab.com/yelinaung/lease-engine/internal/models"
	"gitlab.com/yelinaung/lease-engine/internal/repository"
)

type state struct {
	nextID          int64
	users           map[int64]models.User
	properties      map[int64]models.Property
	leases          map[int64]models.Lease
	periods         map[int64]models.LeaseFinancialPeriod
	expenses        map[int64]models.Expense
	regularizations map[int64]models.Regularization
	index           map[string]models.IndexPoint
}

func newState() *state {
	return &state{
		users:           make(map[int64]models.User),
		properties:      make(map[int64]models.Property),
		leases:          make(map[int64]models.Lease),
		periods:         make(map[int64]models.LeaseFinancialPeriod),
		expenses:        make(map[int64]models.Expense),
		regularizations: make(map[int64]models.Regularization),
		index:           make(map[string]models.IndexPoint),
	}
}

func (s *state) clone() *state {
	return &state{
		nextID:          s.nextID,
		users:           maps.Clone(s.users),
		properties:      maps.Clone(s.properties),
		leases:          maps.Clone(s.leases),
		periods:         maps.Clone(s.periods),
		expenses:        maps.Clone(s.expenses),
		regularizations: maps.Clone(s.regularizations),
		index:           maps.Clone(s.index),
	}
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Store is an in-memory repository.Store.
type Store struct {
	mu     *sync.Mutex
	st     **state
	inTx   bool
	now    func() time.Time
	failOn map[string]error
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	st := newState()
	return &Store{
		mu:     &sync.Mutex{},
		st:     &st,
		now:    time.Now,
		failOn: make(map[string]error),
	}
}

// FailOn makes the named operation (e.g. "expenses.Finalize") return err.
// Used to exercise rollback paths.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) fail(op string) error {
	return s.failOn[op]
}

func (s *Store) Users() repository.UserStore                     { return users{s} }
func (s *Store) Properties() repository.PropertyStore            { return properties{s} }
func (s *Store) Expenses() repository.ExpenseStore               { return expenses{s} }
func (s *Store) Leases() repository.LeaseStore                   { return leases{s} }
func (s *Store) Regularizations() repository.RegularizationStore { return regularizations{s} }
func (s *Store) Index() repository.IndexStore                    { return index{s} }

// InTx serializes fn against every other store call and restores the
// previous state if fn returns an error.
func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.st).clone()
	tx := &Store{mu: s.mu, st: s.st, inTx: true, now: s.now, failOn: s.failOn}
	if err := fn(tx); err != nil {
		*s.st = snapshot
		return err
	}
	return nil
}

type users struct{ s *Store }

func (r users) Upsert(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	st := *r.s.st
	now := r.s.now()
	if existing, ok := st.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	st.users[user.ID] = *user
	return nil
}

func (r users) GetByID(_ context.Context, id int64) (*models.User, error) {
	defer r.s.lock()()
	u, ok := (*r.s.st).users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", models.ErrNotFound)
	}
	return &u, nil
}

type properties struct{ s *Store }

func (r properties) Create(_ context.Context, p *models.Property) error {
	defer r.s.lock()()
	st := *r.s.st
	if _, ok := st.users[p.OwnerID]; !ok {
		return fmt.Errorf("failed to create property: owner %d does not exist", p.OwnerID)
	}
	p.ID = st.id()
	p.CreatedAt = r.s.now()
	st.properties[p.ID] = *p
	return nil
}

func (r properties) GetByID(_ context.Context, id int64) (*models.Property, error) {
	defer r.s.lock()()
	p, ok := (*r.s.st).properties[id]
	if !ok {
		return nil, fmt.Errorf("property: %w", models.ErrNotFound)
	}
	return &p, nil
}

type expenses struct{ s *Store }

func (r expenses) Create(_ context.Context, e *models.Expense) error {
	defer r.s.lock()()
	if err := r.s.fail("expenses.Create"); err != nil {
		return err
	}
	st := *r.s.st
	if e.Frequency == "" {
		e.Frequency = models.FrequencyOnce
	}
	e.ID = st.id()
	e.IsFinalized = false
	e.CreatedAt = r.s.now()
	e.UpdatedAt = e.CreatedAt
	st.expenses[e.ID] = *e
	return nil
}

func (r expenses) GetByID(_ context.Context, id int64) (*models.Expense, error) {
	defer r.s.lock()()
	e, ok := (*r.s.st).expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense: %w", models.ErrNotFound)
	}
	return &e, nil
}

func (r expenses) GetByIDForUpdate(ctx context.Context, id int64) (*models.Expense, error) {
	return r.GetByID(ctx, id)
}

func (r expenses) GetByIDsForUpdate(_ context.Context, ids []int64) ([]models.Expense, error) {
	defer r.s.lock()()
	st := *r.s.st
	var out []models.Expense
	for _, id := range ids {
		if e, ok := st.expenses[id]; ok {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b models.Expense) int { return cmp.Compare(a.ID, b.ID) })
	return slices.CompactFunc(out, func(a, b models.Expense) bool { return a.ID == b.ID }), nil
}

func (r expenses) GetByPropertyAndDateRange(_ context.Context, propertyID int64, start, end time.Time) ([]models.Expense, error) {
	defer r.s.lock()()
	var out []models.Expense
	for _, e := range (*r.s.st).expenses {
		if e.PropertyID != propertyID || e.DateOccurred.Before(start) || !e.DateOccurred.Before(end) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Expense) int {
		if c := a.DateOccurred.Compare(b.DateOccurred); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r expenses) Update(_ context.Context, e *models.Expense) error {
	defer r.s.lock()()
	if err := r.s.fail("expenses.Update"); err != nil {
		return err
	}
	st := *r.s.st
	old, ok := st.expenses[e.ID]
	if !ok {
		return fmt.Errorf("expense: %w", models.ErrNotFound)
	}
	if old.IsFinalized && financialChange(&old, e) {
		return &models.LockedError{ExpenseID: e.ID}
	}
	e.IsFinalized = old.IsFinalized
	e.CreatedAt = old.CreatedAt
	e.UpdatedAt = r.s.now()
	st.expenses[e.ID] = *e
	return nil
}

func financialChange(old, e *models.Expense) bool {
	return old.Category != e.Category ||
		old.AmountTotal != e.AmountTotal ||
		old.IsRecoverable != e.IsRecoverable ||
		old.AmountRecoverable != e.AmountRecoverable ||
		old.AmountDeductible != e.AmountDeductible ||
		!old.DateOccurred.Equal(e.DateOccurred) ||
		old.PropertyID != e.PropertyID ||
		!equalPtr(old.RentalUnitID, e.RentalUnitID)
}

func equalPtr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r expenses) Delete(_ context.Context, id int64) error {
	defer r.s.lock()()
	st := *r.s.st
	e, ok := st.expenses[id]
	if !ok {
		return fmt.Errorf("expense: %w", models.ErrNotFound)
	}
	if e.IsFinalized {
		return &models.LockedError{ExpenseID: id}
	}
	delete(st.expenses, id)
	return nil
}

func (r expenses) Finalize(_ context.Context, ids []int64) (int, error) {
	defer r.s.lock()()
	if err := r.s.fail("expenses.Finalize"); err != nil {
		return 0, err
	}
	st := *r.s.st
	n := 0
	for _, id := range ids {
		e, ok := st.expenses[id]
		if !ok || e.IsFinalized {
			continue
		}
		e.IsFinalized = true
		e.UpdatedAt = r.s.now()
		st.expenses[id] = e
		n++
	}
	return n, nil
}

type leases struct{ s *Store }

func (r leases) Create(_ context.Context, l *models.Lease) error {
	defer r.s.lock()()
	st := *r.s.st
	if _, ok := st.properties[l.PropertyID]; !ok {
		return fmt.Errorf("failed to create lease: property %d does not exist", l.PropertyID)
	}
	l.ID = st.id()
	l.CreatedAt = r.s.now()
	st.leases[l.ID] = *l
	return nil
}

func (r leases) GetByID(_ context.Context, id int64) (*models.Lease, error) {
	defer r.s.lock()()
	l, ok := (*r.s.st).leases[id]
	if !ok {
		return nil, fmt.Errorf("lease: %w", models.ErrNotFound)
	}
	return &l, nil
}

func (r leases) GetByIDForUpdate(ctx context.Context, id int64) (*models.Lease, error) {
	return r.GetByID(ctx, id)
}

func (r leases) Periods(_ context.Context, leaseID int64) ([]models.LeaseFinancialPeriod, error) {
	defer r.s.lock()()
	var out []models.LeaseFinancialPeriod
	for _, p := range (*r.s.st).periods {
		if p.LeaseID == leaseID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.LeaseFinancialPeriod) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r leases) CreatePeriod(_ context.Context, p *models.LeaseFinancialPeriod) error {
	defer r.s.lock()()
	if err := r.s.fail("leases.CreatePeriod"); err != nil {
		return err
	}
	st := *r.s.st
	for _, existing := range st.periods {
		if existing.LeaseID == p.LeaseID && existing.StartDate.Equal(p.StartDate) {
			return &models.DuplicateRevisionError{LeaseID: p.LeaseID, EffectiveDate: p.StartDate}
		}
	}
	if p.Source == "" {
		p.Source = models.PeriodSourceSigning
	}
	p.ID = st.id()
	p.CreatedAt = r.s.now()
	st.periods[p.ID] = *p
	return nil
}

func (r leases) ClosePeriod(_ context.Context, periodID int64, end time.Time) error {
	defer r.s.lock()()
	st := *r.s.st
	p, ok := st.periods[periodID]
	if !ok || p.EndDate != nil {
		return fmt.Errorf("open financial period %d: %w", periodID, models.ErrNotFound)
	}
	p.EndDate = &end
	st.periods[periodID] = p
	return nil
}

type regularizations struct{ s *Store }

func (r regularizations) Create(_ context.Context, rec *models.Regularization) error {
	defer r.s.lock()()
	if err := r.s.fail("regularizations.Create"); err != nil {
		return err
	}
	st := *r.s.st
	for _, existing := range st.regularizations {
		original := rec.SupersedesID == nil && existing.SupersedesID == nil &&
			existing.LeaseID == rec.LeaseID && existing.Year == rec.Year
		chained := rec.SupersedesID != nil && existing.SupersedesID != nil &&
			*existing.SupersedesID == *rec.SupersedesID
		if original || chained {
			return &models.DuplicateRegularizationError{LeaseID: rec.LeaseID, Year: rec.Year}
		}
	}
	rec.ID = st.id()
	rec.CommittedAt = r.s.now()
	rec.IncludedExpenseIDs = make([]int64, 0, len(rec.Lines))
	for _, line := range rec.Lines {
		rec.IncludedExpenseIDs = append(rec.IncludedExpenseIDs, line.ExpenseID)
	}
	stored := *rec
	stored.Lines = slices.Clone(rec.Lines)
	stored.IncludedExpenseIDs = slices.Clone(rec.IncludedExpenseIDs)
	st.regularizations[rec.ID] = stored
	return nil
}

func (r regularizations) GetByID(_ context.Context, id int64) (*models.Regularization, error) {
	defer r.s.lock()()
	rec, ok := (*r.s.st).regularizations[id]
	if !ok {
		return nil, fmt.Errorf("regularization: %w", models.ErrNotFound)
	}
	return copyRegularization(rec), nil
}

func (r regularizations) GetActive(_ context.Context, leaseID int64, year int) (*models.Regularization, error) {
	defer r.s.lock()()
	st := *r.s.st
	superseded := make(map[int64]bool)
	for _, rec := range st.regularizations {
		if rec.SupersedesID != nil {
			superseded[*rec.SupersedesID] = true
		}
	}
	for _, rec := range st.regularizations {
		if rec.LeaseID == leaseID && rec.Year == year && !superseded[rec.ID] {
			return copyRegularization(rec), nil
		}
	}
	return nil, fmt.Errorf("regularization: %w", models.ErrNotFound)
}

func copyRegularization(rec models.Regularization) *models.Regularization {
	rec.Lines = slices.Clone(rec.Lines)
	rec.IncludedExpenseIDs = slices.Clone(rec.IncludedExpenseIDs)
	return &rec
}

type index struct{ s *Store }

func indexKey(series string, year, quarter int) string {
	return fmt.Sprintf("%s/%d/%d", series, year, quarter)
}

func (r index) Upsert(_ context.Context, series string, p models.IndexPoint) error {
	defer r.s.lock()()
	(*r.s.st).index[indexKey(series, p.Year, p.Quarter)] = p
	return nil
}

func (r index) Get(_ context.Context, series string, year, quarter int) (*models.IndexPoint, error) {
	defer r.s.lock()()
	p, ok := (*r.s.st).index[indexKey(series, year, quarter)]
	if !ok {
		return nil, fmt.Errorf("index value: %w", models.ErrNotFound)
	}
	return &p, nil
}

func (r index) List(_ context.Context, series string) ([]models.IndexPoint, error) {
	defer r.s.lock()()
	prefix := series + "/"
	var out []models.IndexPoint
	for k, p := range (*r.s.st).index {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.IndexPoint) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(a.Quarter, b.Quarter)
	})
	return out, nil
}
