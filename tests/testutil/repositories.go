package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tffhost/backend/internal/domain/effect"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/domain/node"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/domain/shared"
)

// TaskLog records the tasks enqueued by the in-memory repositories.
type TaskLog struct {
	mu    sync.Mutex
	tasks []*effect.Task
}

func (l *TaskLog) add(tasks []*effect.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, tasks...)
}

// Enqueue records tasks enqueued outside an aggregate transaction.
func (l *TaskLog) Enqueue(ctx context.Context, tasks ...*effect.Task) error {
	l.add(tasks)
	return nil
}

// Tasks returns every enqueued task.
func (l *TaskLog) Tasks() []*effect.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*effect.Task(nil), l.tasks...)
}

// Types returns the effect types of every enqueued task in order, nil when none was.
func (l *TaskLog) Types() []effect.Type {
	var types []effect.Type
	for _, t := range l.Tasks() {
		types = append(types, t.EffectType)
	}
	return types
}

// Find returns the first enqueued task of the given type.
func (l *TaskLog) Find(effectType effect.Type) *effect.Task {
	for _, t := range l.Tasks() {
		if t.EffectType == effectType {
			return t
		}
	}
	return nil
}

// Reset forgets the recorded tasks.
func (l *TaskLog) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = nil
}

// NodeRepository is an in-memory node.Repository.
type NodeRepository struct {
	TaskLog
	mu      sync.Mutex
	Nodes   map[string]*node.Node
	SaveErr error
	// ListErr fails ListIDs
	ListErr error
}

// NewNodeRepository creates an empty node repository.
func NewNodeRepository(nodes ...*node.Node) *NodeRepository {
	r := &NodeRepository{Nodes: make(map[string]*node.Node)}
	for _, n := range nodes {
		r.Nodes[n.ID] = n
	}
	return r
}

func (r *NodeRepository) sorted(keep func(*node.Node) bool) []*node.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*node.Node
	for _, n := range r.Nodes {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *NodeRepository) FindByID(ctx context.Context, id string) (*node.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.Nodes[id]; ok {
		return n, nil
	}
	return nil, shared.ErrNotFound
}

func (r *NodeRepository) FindByIDs(ctx context.Context, ids []string) ([]*node.Node, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return r.sorted(func(n *node.Node) bool { return want[n.ID] }), nil
}

func (r *NodeRepository) FindWithOwner(ctx context.Context) ([]*node.Node, error) {
	return r.sorted(func(n *node.Node) bool { return n.HasOwner() }), nil
}

func (r *NodeRepository) FindByUsername(ctx context.Context, username string) ([]*node.Node, error) {
	return r.sorted(func(n *node.Node) bool { return n.Username == username }), nil
}

func (r *NodeRepository) FindByStatus(ctx context.Context, status node.Status) ([]*node.Node, error) {
	return r.sorted(func(n *node.Node) bool { return status == "" || n.Status() == status }), nil
}

func (r *NodeRepository) ListIDs(ctx context.Context) ([]string, error) {
	if r.ListErr != nil {
		return nil, r.ListErr
	}
	nodes := r.sorted(func(*node.Node) bool { return true })
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids, nil
}

func (r *NodeRepository) SaveAll(ctx context.Context, nodes ...*node.Node) error {
	return r.SaveAllWithEffects(ctx, nodes, nil)
}

func (r *NodeRepository) SaveAllWithEffects(ctx context.Context, nodes []*node.Node, tasks []*effect.Task) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	for _, n := range nodes {
		r.Nodes[n.ID] = n
	}
	r.mu.Unlock()
	r.add(tasks)
	return nil
}

// ProfileRepository is an in-memory profile.Repository.
type ProfileRepository struct {
	TaskLog
	mu       sync.Mutex
	Profiles map[string]*profile.Profile
}

// NewProfileRepository creates a repository holding the given profiles.
func NewProfileRepository(profiles ...*profile.Profile) *ProfileRepository {
	r := &ProfileRepository{Profiles: make(map[string]*profile.Profile)}
	for _, p := range profiles {
		r.Profiles[p.Username] = p
	}
	return r
}

func (r *ProfileRepository) FindByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.Profiles[username]; ok {
		return p, nil
	}
	return nil, shared.ErrNotFound
}

func (r *ProfileRepository) FindByKYCStatus(ctx context.Context, status profile.KYCStatus, filter shared.Filter) ([]profile.Profile, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []profile.Profile
	for _, p := range r.Profiles {
		if p.KYC.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, int64(len(out)), nil
}

func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	return r.SaveWithEffects(ctx, p, nil)
}

func (r *ProfileRepository) SaveWithEffects(ctx context.Context, p *profile.Profile, tasks []*effect.Task) error {
	r.mu.Lock()
	r.Profiles[p.Username] = p
	r.mu.Unlock()
	r.add(tasks)
	return nil
}

// NodeOrderRepository is an in-memory hosting.NodeOrderRepository.
type NodeOrderRepository struct {
	TaskLog
	mu         sync.Mutex
	Orders     map[uuid.UUID]*hosting.NodeOrder
	nextNumber int64
	SaveErr    error
}

// NewNodeOrderRepository creates a repository holding the given orders.
func NewNodeOrderRepository(orders ...*hosting.NodeOrder) *NodeOrderRepository {
	r := &NodeOrderRepository{
		Orders:     make(map[uuid.UUID]*hosting.NodeOrder),
		nextNumber: 1_000_000_000_000_000,
	}
	for _, o := range orders {
		r.Orders[o.ID] = o
	}
	return r
}

func (r *NodeOrderRepository) list(keep func(*hosting.NodeOrder) bool) []hosting.NodeOrder {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []hosting.NodeOrder
	for _, o := range r.Orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (r *NodeOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*hosting.NodeOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.Orders[id]; ok {
		return o, nil
	}
	return nil, shared.ErrNotFound
}

func (r *NodeOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]hosting.NodeOrder, int64, error) {
	status, hasStatus := filter.Filters["status"].(hosting.OrderStatus)
	out := r.list(func(o *hosting.NodeOrder) bool { return !hasStatus || o.Status == status })
	total := int64(len(out))
	start := filter.Offset()
	if start >= len(out) {
		return []hosting.NodeOrder{}, total, nil
	}
	end := start + filter.PageSize
	if filter.PageSize <= 0 || end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *NodeOrderRepository) FindByUsername(ctx context.Context, username string) ([]hosting.NodeOrder, error) {
	return r.list(func(o *hosting.NodeOrder) bool { return o.Username == username }), nil
}

func (r *NodeOrderRepository) FindSentBefore(ctx context.Context, before time.Time) ([]hosting.NodeOrder, error) {
	return r.list(func(o *hosting.NodeOrder) bool {
		return o.Status == hosting.OrderStatusSent && o.SendTime != nil && o.SendTime.Before(before)
	}), nil
}

func (r *NodeOrderRepository) ExistsActiveForUserOrAddress(ctx context.Context, username, address string) (bool, error) {
	found := r.list(func(o *hosting.NodeOrder) bool {
		return !o.IsCanceled() && (o.Username == username || o.BillingInfo.Address == address)
	})
	return len(found) > 0, nil
}

func (r *NodeOrderRepository) ExistsBySaleOrder(ctx context.Context, saleOrderID int64) (bool, error) {
	found := r.list(func(o *hosting.NodeOrder) bool { return o.SaleOrderID == saleOrderID })
	return len(found) > 0, nil
}

func (r *NodeOrderRepository) NextNumber(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextNumber++
	return r.nextNumber, nil
}

func (r *NodeOrderRepository) SaveWithEffects(ctx context.Context, order *hosting.NodeOrder, tasks []*effect.Task) error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	r.mu.Lock()
	r.Orders[order.ID] = order
	r.mu.Unlock()
	r.add(tasks)
	return nil
}

// AgreementRepository is an in-memory investment.AgreementRepository.
type AgreementRepository struct {
	TaskLog
	mu         sync.Mutex
	Agreements map[uuid.UUID]*investment.Agreement
}

// NewAgreementRepository creates a repository holding the given agreements.
func NewAgreementRepository(agreements ...*investment.Agreement) *AgreementRepository {
	r := &AgreementRepository{Agreements: make(map[uuid.UUID]*investment.Agreement)}
	for _, a := range agreements {
		r.Agreements[a.ID] = a
	}
	return r
}

func (r *AgreementRepository) FindByID(ctx context.Context, id uuid.UUID) (*investment.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.Agreements[id]; ok {
		return a, nil
	}
	return nil, shared.ErrNotFound
}

func (r *AgreementRepository) FindAll(ctx context.Context, filter shared.Filter) ([]investment.Agreement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, hasStatus := filter.Filters["status"].(investment.AgreementStatus)
	var out []investment.Agreement
	for _, a := range r.Agreements {
		if !hasStatus || a.Status == status {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (r *AgreementRepository) FindByUsername(ctx context.Context, username string) ([]investment.Agreement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []investment.Agreement
	for _, a := range r.Agreements {
		if a.Username == username {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *AgreementRepository) PaidTokenTotal(ctx context.Context, username string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, a := range r.Agreements {
		if a.Username == username && a.Status == investment.AgreementStatusPaid {
			total = total.Add(a.TokenCountDecimal())
		}
	}
	return total, nil
}

func (r *AgreementRepository) SaveWithEffects(ctx context.Context, a *investment.Agreement, tasks []*effect.Task) error {
	r.mu.Lock()
	r.Agreements[a.ID] = a
	r.mu.Unlock()
	r.add(tasks)
	return nil
}

// TaskRepository is an in-memory effect.Repository keyed by task key.
type TaskRepository struct {
	mu    sync.Mutex
	Tasks map[string]*effect.Task
	// Err fails every query
	Err error
}

// NewTaskRepository creates a repository holding the given tasks.
func NewTaskRepository(tasks ...*effect.Task) *TaskRepository {
	r := &TaskRepository{Tasks: make(map[string]*effect.Task)}
	for _, t := range tasks {
		r.Tasks[t.Key()] = t
	}
	return r
}

func (r *TaskRepository) sorted(keep func(*effect.Task) bool) []*effect.Task {
	var out []*effect.Task
	for _, t := range r.Tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (r *TaskRepository) Enqueue(ctx context.Context, tasks ...*effect.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tasks {
		if existing, ok := r.Tasks[t.Key()]; ok {
			existing.Rearm(t.Payload)
			continue
		}
		r.Tasks[t.Key()] = t
	}
	return nil
}

func (r *TaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*effect.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	due := r.sorted(func(t *effect.Task) bool { return t.IsDue(now) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, t := range due {
		_ = t.MarkProcessing()
	}
	return due, nil
}

func (r *TaskRepository) Complete(ctx context.Context, task *effect.Task, claimedGeneration int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.MarkDone(claimedGeneration)
	return nil
}

func (r *TaskRepository) Fail(ctx context.Context, task *effect.Task, cause error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	task.MarkFailed(cause)
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*effect.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *TaskRepository) FindByKey(ctx context.Context, entityID string, effectType effect.Type) (*effect.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.Tasks[effect.Key(entityID, effectType)]; ok {
		return t, nil
	}
	return nil, shared.ErrNotFound
}

func (r *TaskRepository) FindDead(ctx context.Context, page, pageSize int) ([]*effect.Task, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, 0, r.Err
	}
	dead := r.sorted((*effect.Task).IsDead)
	total := int64(len(dead))
	start := (page - 1) * pageSize
	if start >= len(dead) {
		return nil, total, nil
	}
	return dead[start:min(start+pageSize, len(dead))], total, nil
}

func (r *TaskRepository) Retry(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.Tasks {
		if t.ID == id {
			return t.ResetForRetry()
		}
	}
	return shared.ErrNotFound
}

func (r *TaskRepository) RetryAllDead(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	var n int64
	for _, t := range r.sorted((*effect.Task).IsDead) {
		if t.ResetForRetry() == nil {
			n++
		}
	}
	return n, nil
}

func (r *TaskRepository) DeleteDoneBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, t := range r.Tasks {
		if t.Status == effect.StatusDone && t.ProcessedAt != nil && t.ProcessedAt.Before(before) {
			delete(r.Tasks, key)
			n++
		}
	}
	return n, nil
}

func (r *TaskRepository) CountByStatus(ctx context.Context) (map[effect.Status]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	counts := make(map[effect.Status]int64)
	for _, t := range r.Tasks {
		counts[t.Status]++
	}
	return counts, nil
}
