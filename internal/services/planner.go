package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tour-planning-service/internal/domain"
	"tour-planning-service/internal/platform/logger"
	"tour-planning-service/internal/platform/metrics"
	"tour-planning-service/internal/platform/obs"
	"tour-planning-service/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownDemand  = fmt.Errorf("unknown demand: %w", domain.ErrInvalidInput)
	ErrUnknownRequest = fmt.Errorf("unknown request: %w", domain.ErrInvalidInput)
	ErrNoTour         = fmt.Errorf("no computed tour: %w", domain.ErrInvalidInput)
)

// PathIndex computes shortest path tables between special nodes.
type PathIndex interface {
	ComputeAll(ctx context.Context, special []domain.IntersectionID) (*domain.PathTable, error)
}

// TourSearcher orders demands into a low-cost precedence-valid tour.
type TourSearcher interface {
	Search(ctx context.Context, depot domain.IntersectionID, demands []*domain.Demand, table *domain.PathTable) ([]*domain.Demand, SearchStats, error)
}

// DemandChange describes an edit of one demand. Nil fields are left as is.
type DemandChange struct {
	Intersection    *domain.IntersectionID
	ServiceDuration *time.Duration
}

// Planner owns one tour and its lifecycle:
//
//	Empty -> PathsComputed -> TourComputed <-> TourMutated, Reset -> Empty
//
// Every mutating call is all-or-nothing: on error the tour, the demands it
// touched and the lifecycle state are exactly as before the call.
// A Planner is not safe for concurrent use; callers serialize access.
type Planner struct {
	Name string

	// Publisher receives committed lifecycle transitions. Optional.
	Publisher ports.TransitionPublisher

	network   ports.RoadNetwork
	paths     PathIndex
	optimizer TourSearcher
	log       *zap.Logger
	now       func() time.Time

	state    domain.State
	version  uint64
	depot    domain.IntersectionID
	hasDepot bool
	startAt  time.Time
	hasStart bool
	requests []*domain.Request

	tour  domain.Tour
	table *domain.PathTable
	stats SearchStats
}

func NewPlanner(network ports.RoadNetwork, paths PathIndex, optimizer TourSearcher, log *zap.Logger) *Planner {
	return &Planner{
		Name:      "default",
		network:   network,
		paths:     paths,
		optimizer: optimizer,
		log:       logger.OrNop(log),
		now:       time.Now,
	}
}

func (p *Planner) State() domain.State { return p.state }

// Stats describes the last tour search.
func (p *Planner) Stats() SearchStats { return p.stats }

func (p *Planner) Requests() []*domain.Request { return slices.Clone(p.requests) }

func (p *Planner) Snapshot() domain.TourSnapshot {
	return domain.NewTourSnapshot(p.version, p.state, &p.tour)
}

func (p *Planner) SetDepot(id domain.IntersectionID) error {
	if p.state != domain.StateEmpty {
		return fmt.Errorf("set depot: planner is %s, reset first: %w", p.state, domain.ErrInvalidInput)
	}
	p.depot, p.hasDepot = id, true
	return nil
}

func (p *Planner) SetStartTime(t time.Time) error {
	if p.state != domain.StateEmpty {
		return fmt.Errorf("set start time: planner is %s, reset first: %w", p.state, domain.ErrInvalidInput)
	}
	if t.IsZero() {
		return fmt.Errorf("set start time: zero time: %w", domain.ErrInvalidInput)
	}
	p.startAt, p.hasStart = t, true
	return nil
}

func (p *Planner) SetRequests(reqs []*domain.Request) error {
	if p.state != domain.StateEmpty {
		return fmt.Errorf("set requests: planner is %s, reset first: %w", p.state, domain.ErrInvalidInput)
	}

	seen := make(map[uuid.UUID]struct{}, len(reqs)*3)
	for _, r := range reqs {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("set requests: %w", err)
		}
		for _, id := range []uuid.UUID{r.ID, r.Pickup.ID, r.Delivery.ID} {
			if _, dup := seen[id]; dup {
				return fmt.Errorf("set requests: duplicate id %s: %w", id, domain.ErrInvalidInput)
			}
			seen[id] = struct{}{}
		}
	}

	p.requests = slices.Clone(reqs)
	return nil
}

// ComputeBestTour indexes paths between the depot and every demand target,
// searches the best order and schedules it. Called on a computed tour it
// re-optimizes the current demands.
func (p *Planner) ComputeBestTour(ctx context.Context) (err error) {
	const op = "ComputeBestTour"
	defer p.observe(ctx, op)(&err)

	if !p.hasDepot || !p.hasStart {
		return fmt.Errorf("compute best tour: depot and start time are required: %w", domain.ErrInvalidInput)
	}

	demands := p.tour.Demands
	if !p.state.HasTour() {
		demands = make([]*domain.Demand, 0, 2*len(p.requests))
		for _, r := range p.requests {
			demands = append(demands, r.Pickup, r.Delivery)
		}
	}
	var undo undoLog
	p.labelDemands(&undo, demands)

	table, err := p.paths.ComputeAll(ctx, domain.SpecialNodes(p.depot, demands))
	if err != nil {
		undo.rollback()
		return fmt.Errorf("compute best tour: %w", err)
	}
	from := p.state
	if from == domain.StateEmpty {
		p.transition(op, domain.StatePathsComputed)
	}

	order, stats, err := p.optimizer.Search(ctx, p.depot, demands, table)
	if err != nil {
		undo.rollback()
		p.revert(op, from)
		return fmt.Errorf("compute best tour: %w", err)
	}
	sched, err := BuildSchedule(order, p.depot, table, p.startAt)
	if err != nil {
		undo.rollback()
		p.revert(op, from)
		return fmt.Errorf("compute best tour: %w", err)
	}

	p.tour = domain.Tour{Depot: p.depot, StartAt: p.startAt, Demands: order}
	sched.Apply(&p.tour)
	p.table = table
	p.stats = stats
	p.transition(op, domain.StateTourComputed)
	return nil
}

// RecomputeTour re-derives the path table for the current order and
// rebuilds the schedule. The order itself is unchanged.
func (p *Planner) RecomputeTour(ctx context.Context) (err error) {
	const op = "RecomputeTour"
	defer p.observe(ctx, op)(&err)

	if !p.state.HasTour() {
		return fmt.Errorf("recompute tour: %w", ErrNoTour)
	}
	if err := p.recompute(ctx); err != nil {
		return fmt.Errorf("recompute tour: %w", err)
	}
	p.transition(op, domain.StateTourComputed)
	return nil
}

// AddDemand appends a stand-alone demand to the tour.
func (p *Planner) AddDemand(ctx context.Context, d *domain.Demand) (err error) {
	const op = "AddDemand"
	defer p.observe(ctx, op)(&err)

	if !p.state.HasTour() {
		return fmt.Errorf("add demand: %w", ErrNoTour)
	}
	if d == nil || d.ServiceDuration < 0 {
		return fmt.Errorf("add demand: demand with non-negative duration required: %w", domain.ErrInvalidInput)
	}

	var undo undoLog
	p.labelDemands(&undo, []*domain.Demand{d})

	if err := p.tour.Insert(len(p.tour.Demands), d); err != nil {
		undo.rollback()
		return fmt.Errorf("add demand: %w", err)
	}
	undo.push(func() { p.removeByID(d.ID) })

	if err := domain.CheckOrder(p.tour.Demands); err != nil {
		undo.rollback()
		return fmt.Errorf("add demand: %v: %w", err, domain.ErrInvalidInput)
	}

	if err := p.recompute(ctx); err != nil {
		undo.rollback()
		return fmt.Errorf("add demand: %w", err)
	}

	p.transition(op, domain.StateTourMutated)
	return nil
}

// AddRequest inserts a request's pickup and delivery, either appended or at
// positions[0] (pickup) and positions[1] (delivery, counted after the pickup
// has been inserted). Both are inserted or neither.
func (p *Planner) AddRequest(ctx context.Context, req *domain.Request, positions ...int) (err error) {
	const op = "AddRequest"
	defer p.observe(ctx, op)(&err)

	if !p.state.HasTour() {
		return fmt.Errorf("add request: %w", ErrNoTour)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("add request: %w", err)
	}
	if _, at := p.findRequest(req.ID); at >= 0 {
		return fmt.Errorf("add request %s: already planned: %w", req.ID, domain.ErrInvalidInput)
	}

	n := len(p.tour.Demands)
	pickupAt, deliveryAt := n, n+1
	switch len(positions) {
	case 0:
	case 2:
		pickupAt, deliveryAt = positions[0], positions[1]
		if pickupAt < 0 || pickupAt > n || deliveryAt <= pickupAt || deliveryAt > n+1 {
			return fmt.Errorf("add request: positions (%d,%d) invalid for %d stops: %w", pickupAt, deliveryAt, n, domain.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("add request: want 0 or 2 positions, got %d: %w", len(positions), domain.ErrInvalidInput)
	}

	var undo undoLog
	p.labelDemands(&undo, []*domain.Demand{req.Pickup, req.Delivery})

	if err := p.tour.Insert(pickupAt, req.Pickup); err != nil {
		undo.rollback()
		return fmt.Errorf("add request: %w", err)
	}
	undo.push(func() { p.removeByID(req.Pickup.ID) })

	if err := p.tour.Insert(deliveryAt, req.Delivery); err != nil {
		undo.rollback()
		return fmt.Errorf("add request: %w", err)
	}
	undo.push(func() { p.removeByID(req.Delivery.ID) })

	if err := p.recompute(ctx); err != nil {
		undo.rollback()
		return fmt.Errorf("add request: %w", err)
	}

	p.requests = append(p.requests, req)
	p.transition(op, domain.StateTourMutated)
	return nil
}

// RemoveDemand drops one demand and reschedules with the existing table.
// It returns the demand's index before removal.
func (p *Planner) RemoveDemand(id uuid.UUID) (_ int, err error) {
	const op = "RemoveDemand"
	defer p.observe(context.Background(), op)(&err)

	if !p.state.HasTour() {
		return -1, fmt.Errorf("remove demand: %w", ErrNoTour)
	}
	d, at := p.tour.Find(id)
	if at < 0 {
		return -1, fmt.Errorf("remove demand %s: %w", id, ErrUnknownDemand)
	}

	p.tour.RemoveAt(at)
	if err := p.reschedule(); err != nil {
		_ = p.tour.Insert(at, d)
		return -1, fmt.Errorf("remove demand: %w", err)
	}

	p.transition(op, domain.StateTourMutated)
	return at, nil
}

// RemoveRequest drops a request's demands and reschedules with the existing
// table. It returns the pickup and delivery indices before removal; an index
// is -1 when that demand had already been removed on its own.
func (p *Planner) RemoveRequest(id uuid.UUID) (_ [2]int, err error) {
	const op = "RemoveRequest"
	defer p.observe(context.Background(), op)(&err)

	none := [2]int{-1, -1}
	if !p.state.HasTour() {
		return none, fmt.Errorf("remove request: %w", ErrNoTour)
	}
	req, ri := p.findRequest(id)
	if ri < 0 {
		return none, fmt.Errorf("remove request %s: %w", id, ErrUnknownRequest)
	}

	_, pi := p.tour.Find(req.Pickup.ID)
	_, di := p.tour.Find(req.Delivery.ID)
	if pi < 0 && di < 0 {
		return none, fmt.Errorf("remove request %s: no demand left in tour: %w", id, domain.ErrInvalidInput)
	}

	prior := slices.Clone(p.tour.Demands)
	p.tour.Demands = slices.DeleteFunc(p.tour.Demands, func(d *domain.Demand) bool {
		return d == req.Pickup || d == req.Delivery
	})
	if err := p.reschedule(); err != nil {
		p.tour.Demands = prior
		return none, fmt.Errorf("remove request: %w", err)
	}

	p.requests = slices.Delete(p.requests, ri, ri+1)
	p.transition(op, domain.StateTourMutated)
	return [2]int{pi, di}, nil
}

// ModifyDemandDuration changes a service duration. Path geometry is
// unaffected, so only the schedule is rebuilt.
func (p *Planner) ModifyDemandDuration(id uuid.UUID, dur time.Duration) (err error) {
	const op = "ModifyDemandDuration"
	defer p.observe(context.Background(), op)(&err)

	if err := p.modifyDuration(id, dur); err != nil {
		return fmt.Errorf("modify demand duration: %w", err)
	}
	p.transition(op, domain.StateTourMutated)
	return nil
}

// ModifyDemand applies a change to one demand. Moving it to another
// intersection recomputes the path table; on failure the prior intersection,
// label and duration are restored.
func (p *Planner) ModifyDemand(ctx context.Context, id uuid.UUID, change DemandChange) (err error) {
	const op = "ModifyDemand"
	defer p.observe(ctx, op)(&err)

	if !p.state.HasTour() {
		return fmt.Errorf("modify demand: %w", ErrNoTour)
	}
	d, at := p.tour.Find(id)
	if at < 0 {
		return fmt.Errorf("modify demand %s: %w", id, ErrUnknownDemand)
	}

	if change.Intersection == nil || *change.Intersection == d.Intersection {
		if change.ServiceDuration == nil {
			return nil
		}
		if err := p.modifyDuration(id, *change.ServiceDuration); err != nil {
			return fmt.Errorf("modify demand: %w", err)
		}
		p.transition(op, domain.StateTourMutated)
		return nil
	}

	if change.ServiceDuration != nil && *change.ServiceDuration < 0 {
		return fmt.Errorf("modify demand: negative duration: %w", domain.ErrInvalidInput)
	}

	var undo undoLog
	remember(&undo, &d.Intersection)
	remember(&undo, &d.IntersectionName)
	remember(&undo, &d.ServiceDuration)

	d.Intersection = *change.Intersection
	d.IntersectionName = ""
	p.labelDemands(&undo, []*domain.Demand{d})
	if change.ServiceDuration != nil {
		d.ServiceDuration = *change.ServiceDuration
	}

	if err := p.recompute(ctx); err != nil {
		undo.rollback()
		return fmt.Errorf("modify demand: %w", err)
	}

	p.transition(op, domain.StateTourMutated)
	return nil
}

// Reset clears the tour, depot, start time and requests.
func (p *Planner) Reset() {
	const op = "Reset"
	p.tour.ClearSchedule()
	p.tour = domain.Tour{}
	p.table = nil
	p.stats = SearchStats{}
	p.depot, p.hasDepot = 0, false
	p.startAt, p.hasStart = time.Time{}, false
	p.requests = nil

	metrics.PlannerOperations.WithLabelValues(op, "ok").Inc()
	p.transition(op, domain.StateEmpty)
}

// recompute indexes the special nodes of the current order and reschedules.
// Nothing is written unless both steps succeed.
func (p *Planner) recompute(ctx context.Context) error {
	table, err := p.paths.ComputeAll(ctx, p.tour.SpecialNodes())
	if err != nil {
		return err
	}
	sched, err := BuildSchedule(p.tour.Demands, p.tour.Depot, table, p.tour.StartAt)
	if err != nil {
		return err
	}

	sched.Apply(&p.tour)
	p.table = table
	return nil
}

// reschedule rebuilds the schedule against the existing table.
func (p *Planner) reschedule() error {
	sched, err := BuildSchedule(p.tour.Demands, p.tour.Depot, p.table, p.tour.StartAt)
	if err != nil {
		return err
	}
	sched.Apply(&p.tour)
	return nil
}

func (p *Planner) modifyDuration(id uuid.UUID, dur time.Duration) error {
	if !p.state.HasTour() {
		return ErrNoTour
	}
	if dur < 0 {
		return fmt.Errorf("negative duration %v: %w", dur, domain.ErrInvalidInput)
	}
	d, at := p.tour.Find(id)
	if at < 0 {
		return fmt.Errorf("demand %s: %w", id, ErrUnknownDemand)
	}

	prior := d.ServiceDuration
	d.ServiceDuration = dur
	if err := p.reschedule(); err != nil {
		d.ServiceDuration = prior
		return err
	}
	return nil
}

func (p *Planner) removeByID(id uuid.UUID) {
	if _, at := p.tour.Find(id); at >= 0 {
		p.tour.RemoveAt(at)
	}
}

func (p *Planner) findRequest(id uuid.UUID) (*domain.Request, int) {
	for i, r := range p.requests {
		if r.ID == id {
			return r, i
		}
	}
	return nil, -1
}

// labelDemands names unlabeled demands after their intersection.
func (p *Planner) labelDemands(undo *undoLog, demands []*domain.Demand) {
	if p.network == nil {
		return
	}
	for _, d := range demands {
		if d.IntersectionName != "" {
			continue
		}
		if node, ok := p.network.Intersection(d.Intersection); ok {
			remember(undo, &d.IntersectionName)
			d.IntersectionName = node.Name()
		}
	}
}

func (p *Planner) transition(op string, to domain.State) {
	from := p.state
	p.state = to
	p.version++

	t := domain.Transition{From: from, To: to, Operation: op, Version: p.version, At: p.now()}
	p.log.Debug("planner transition",
		zap.String("planner", p.Name),
		zap.String("op", op),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Uint64("version", p.version),
	)
	if p.Publisher != nil {
		p.Publisher.Publish(p.Name, t)
	}
}

// revert undoes an uncommitted PathsComputed step.
func (p *Planner) revert(op string, to domain.State) {
	if p.state != to {
		p.transition(op, to)
	}
}

func (p *Planner) observe(ctx context.Context, op string) func(errp *error) {
	done := obs.Time(ctx, "planner."+op)
	return func(errp *error) {
		done(errp)
		metrics.PlannerOperations.WithLabelValues(op, outcome(*errp)).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInfeasible):
		return "infeasible"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}

// undoLog records restore actions and replays them in reverse.
type undoLog []func()

func (u *undoLog) push(f func()) { *u = append(*u, f) }

func (u undoLog) rollback() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

// remember saves the current value of *ptr for rollback.
func remember[T any](u *undoLog, ptr *T) {
	prior := *ptr
	u.push(func() { *ptr = prior })
}
