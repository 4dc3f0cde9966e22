package core

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beetlebot/skitrip-cli/internal/cost"
	"github.com/beetlebot/skitrip-cli/internal/geo"
	"github.com/beetlebot/skitrip-cli/internal/limiter"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

// SmallResortPopularity is the popularity at or below which a resort only
// shows when the query asks for small mountains.
const SmallResortPopularity = 1.5

var (
	ErrStopped        = errors.New("orchestrator is not running")
	ErrAlreadyRunning = errors.New("orchestrator is already running")
	ErrNoQuery        = errors.New("no query submitted")
	ErrBusy           = errors.New("price lookups still in flight")
)

type Options struct {
	Catalog        Catalog
	Lodging        LodgingAdapter
	Concurrency    int
	RevealInterval time.Duration
	DriveSpeedKmh  float64
	Fuel           cost.FuelInput
}

// Orchestrator is the ranking engine's driver. One goroutine, Run, owns all
// state; every other method sends it a command and waits for the reply.
type Orchestrator struct {
	catalog     Catalog
	lodging     LodgingAdapter
	concurrency int
	driveSpeed  float64
	fuel        cost.FuelInput

	cmds    chan func()
	results chan priceResult
	stopped chan struct{}
	running atomic.Bool

	st          state
	revealTimer *time.Timer
	revealC     <-chan time.Time
	subs        map[int]chan View
	nextSub     int
}

type state struct {
	submitted      bool
	epoch          uint64
	query          Query
	origin         geo.Location
	originFallback bool
	nights         int
	candidates     []PricedResort
	index          map[string]int
	fetch          map[string]FetchState
	errs           map[string]string
	reveal         *RevealScheduler
	batchCtx       context.Context
	cancel         context.CancelFunc
}

type priceResult struct {
	epoch  uint64
	key    string
	result pricing.Result
}

type fetchJob struct {
	key string
	req pricing.Request
}

func NewOrchestrator(opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = limiter.DefaultLimit
	}
	if opts.DriveSpeedKmh <= 0 {
		opts.DriveSpeedKmh = geo.DefaultDrivingSpeedKmh
	}
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &Orchestrator{
		catalog:     opts.Catalog,
		lodging:     opts.Lodging,
		concurrency: opts.Concurrency,
		driveSpeed:  opts.DriveSpeedKmh,
		fuel:        opts.Fuel,
		cmds:        make(chan func()),
		results:     make(chan priceResult),
		stopped:     make(chan struct{}),
		st: state{
			reveal: NewRevealScheduler(opts.RevealInterval),
			index:  map[string]int{},
			fetch:  map[string]FetchState{},
			errs:   map[string]string{},
		},
		revealTimer: t,
		subs:        map[int]chan View{},
	}
}

// Run processes commands, price completions and reveal ticks until ctx is
// done. It may only be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-o.cmds:
			cmd()
		case r := <-o.results:
			o.handleResult(r)
		case now := <-o.revealC:
			o.handleRevealTick(now)
		}
	}
}

func (o *Orchestrator) shutdown() {
	if o.st.cancel != nil {
		o.st.cancel()
	}
	o.revealTimer.Stop()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	close(o.stopped)
}

// do runs fn on the loop and waits for it to finish.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case o.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
}

// Submit starts a new query. Lookups for the previous query are canceled and
// their late results ignored. It returns the new epoch.
func (o *Orchestrator) Submit(ctx context.Context, q Query) (uint64, error) {
	q = q.WithDefaults(time.Now())
	if err := q.Validate(); err != nil {
		return 0, err
	}
	q.Sort, _ = ParseSortKey(string(q.Sort))
	q.Direction, _ = ParseDirection(string(q.Direction))
	var epoch uint64
	err := o.do(ctx, func() {
		o.handleSubmit(q)
		epoch = o.st.epoch
	})
	return epoch, err
}

// SetSort re-ranks the current candidates without refetching anything.
func (o *Orchestrator) SetSort(ctx context.Context, key SortKey, dir SortDirection) error {
	key, err := ParseSortKey(string(key))
	if err != nil {
		return err
	}
	dir, err = ParseDirection(string(dir))
	if err != nil {
		return err
	}
	return o.do(ctx, func() {
		o.st.query.Sort = key
		o.st.query.Direction = dir
		o.rerank()
		o.publish()
	})
}

// SetIncludeSmall toggles the small-mountain filter. Already-priced resorts
// the filter newly lets through join the reveal queue.
func (o *Orchestrator) SetIncludeSmall(ctx context.Context, include bool) error {
	return o.do(ctx, func() {
		if o.st.query.IncludeSmall == include {
			return
		}
		o.st.query.IncludeSmall = include
		if include {
			for _, r := range o.st.candidates {
				if _, ok := r.Lodging.Value(); ok {
					o.st.reveal.Enqueue(r.Key())
				}
			}
		} else {
			o.st.reveal.Retain(func(key string) bool {
				i, ok := o.st.index[key]
				return ok && o.passesFilter(o.st.candidates[i])
			})
		}
		o.scheduleReveal()
		o.publish()
	})
}

// Retry reissues lookups that failed in the current epoch. It returns the
// number of resorts requeued.
func (o *Orchestrator) Retry(ctx context.Context) (int, error) {
	var n int
	var retryErr error
	err := o.do(ctx, func() {
		n, retryErr = o.handleRetry()
	})
	if err != nil {
		return 0, err
	}
	return n, retryErr
}

func (o *Orchestrator) Snapshot(ctx context.Context) (View, error) {
	var v View
	err := o.do(ctx, func() { v = o.buildView() })
	return v, err
}

// Subscribe returns a channel that always holds the latest View. A slow
// reader misses intermediate views, never the newest one, and never stalls
// the loop. The channel is closed by cancel, when ctx is done, or when Run
// returns.
func (o *Orchestrator) Subscribe(ctx context.Context) (<-chan View, func(), error) {
	ch := make(chan View, 1)
	var id int
	err := o.do(ctx, func() {
		id = o.nextSub
		o.nextSub++
		o.subs[id] = ch
		ch <- o.buildView()
	})
	if err != nil {
		return nil, func() {}, err
	}

	unsubscribed := make(chan struct{})
	cancel := sync.OnceFunc(func() {
		close(unsubscribed)
		_ = o.do(context.Background(), func() {
			if c, ok := o.subs[id]; ok {
				close(c)
				delete(o.subs, id)
			}
		})
	})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-unsubscribed:
		case <-o.stopped:
		}
	}()
	return ch, cancel, nil
}

// WaitFor blocks until a View satisfies cond and returns it.
func (o *Orchestrator) WaitFor(ctx context.Context, cond func(View) bool) (View, error) {
	subCtx, stop := context.WithCancel(ctx)
	defer stop()

	views, cancel, err := o.Subscribe(subCtx)
	if err != nil {
		return View{}, err
	}
	defer cancel()

	for {
		select {
		case v, ok := <-views:
			if !ok {
				if ctx.Err() != nil {
					return View{}, ctx.Err()
				}
				return View{}, ErrStopped
			}
			if cond(v) {
				return v, nil
			}
		case <-ctx.Done():
			return View{}, ctx.Err()
		}
	}
}

func (o *Orchestrator) handleSubmit(q Query) {
	st := &o.st
	if st.cancel != nil {
		st.cancel()
	}
	st.epoch++
	st.submitted = true
	st.query = q
	st.nights = cost.Nights(q.CheckIn, q.CheckOut)
	st.origin, st.originFallback = o.resolveOrigin(q)
	st.fetch = map[string]FetchState{}
	st.errs = map[string]string{}
	st.reveal.Reset()

	resorts := DedupeResorts(o.catalog.Resorts(q.Region))
	st.candidates = make([]PricedResort, 0, len(resorts))
	var jobs []fetchJob
	for _, r := range resorts {
		pr := PricedResort{Resort: r, Lodging: UnknownPrice()}
		loc, ok := r.Location()
		if !ok {
			pr.Lodging = UnavailablePrice()
			st.fetch[r.Key()] = Resolved
			st.candidates = append(st.candidates, pr)
			continue
		}
		pr.DistanceKm = geo.DistanceKm(st.origin, loc)
		pr.DistanceKnown = true
		pr.DrivingTime = geo.DrivingTimeLabel(st.origin, loc, o.driveSpeed)
		st.candidates = append(st.candidates, pr)

		if o.lodging == nil {
			continue
		}
		st.fetch[r.Key()] = InFlight
		jobs = append(jobs, fetchJob{key: r.Key(), req: o.priceRequest(loc, q)})
	}

	st.batchCtx, st.cancel = context.WithCancel(context.Background())
	o.rerank()

	slog.Info("query submitted",
		"epoch", st.epoch,
		"region", q.Region,
		"candidates", len(st.candidates),
		"lookups", len(jobs),
		"origin_fallback", st.originFallback,
	)
	o.launch(st.batchCtx, st.epoch, jobs)
	o.scheduleReveal()
	o.publish()
}

// resolveOrigin picks the query origin. An unknown zip falls back to the
// region's centroid, or to the default origin, and is flagged.
func (o *Orchestrator) resolveOrigin(q Query) (geo.Location, bool) {
	if q.Origin != nil {
		return *q.Origin, false
	}
	if loc, ok := o.catalog.Zip(q.OriginZip); ok {
		return loc, false
	}
	if loc, ok := geo.RegionCentroid(q.Region); ok {
		return loc, true
	}
	return geo.DefaultOrigin, true
}

func (o *Orchestrator) priceRequest(loc geo.Location, q Query) pricing.Request {
	return pricing.Request{
		Lat:      loc.Latitude,
		Lon:      loc.Longitude,
		Guests:   q.Guests,
		CheckIn:  q.CheckIn,
		CheckOut: q.CheckOut,
	}
}

func (o *Orchestrator) launch(ctx context.Context, epoch uint64, jobs []fetchJob) {
	if len(jobs) == 0 {
		return
	}
	go func() {
		_, err := limiter.RunBounded(ctx, jobs, o.concurrency, func(ctx context.Context, _ int, j fetchJob) struct{} {
			res := o.lodging.LookupPrice(ctx, j.req)
			select {
			case o.results <- priceResult{epoch: epoch, key: j.key, result: res}:
			case <-o.stopped:
			}
			return struct{}{}
		})
		if err != nil {
			slog.Debug("price batch stopped", "epoch", epoch, "error", err)
		}
	}()
}

func (o *Orchestrator) handleResult(r priceResult) {
	st := &o.st
	if r.epoch != st.epoch {
		slog.Debug("dropping stale price", "epoch", r.epoch, "current", st.epoch, "resort", r.key)
		return
	}
	if st.fetch[r.key] != InFlight {
		return
	}
	i, ok := st.index[r.key]
	if !ok {
		return
	}

	switch {
	case r.result.OK:
		st.fetch[r.key] = Resolved
		delete(st.errs, r.key)
		st.candidates[i].Lodging = ResolvedPrice(r.result.Price)
		if o.passesFilter(st.candidates[i]) {
			st.reveal.Enqueue(r.key)
		}
	case r.result.Canceled():
		slog.Debug("price lookup canceled", "epoch", r.epoch, "resort", r.key)
		st.fetch[r.key] = NotRequested
	default:
		st.fetch[r.key] = Failed
		st.errs[r.key] = r.result.Error()
		slog.Warn("price lookup failed",
			"epoch", r.epoch,
			"resort", r.key,
			"kind", r.result.Kind,
			"error", r.result.Error(),
		)
	}

	o.rerank()
	o.scheduleReveal()
	o.publish()
}

func (o *Orchestrator) handleRetry() (int, error) {
	st := &o.st
	if !st.submitted {
		return 0, ErrNoQuery
	}
	if o.countState(InFlight) > 0 {
		return 0, ErrBusy
	}

	var jobs []fetchJob
	for _, r := range st.candidates {
		key := r.Key()
		if s := st.fetch[key]; s != Failed && s != NotRequested {
			continue
		}
		loc, ok := r.Location()
		if !ok || o.lodging == nil {
			continue
		}
		st.fetch[key] = InFlight
		delete(st.errs, key)
		jobs = append(jobs, fetchJob{key: key, req: o.priceRequest(loc, st.query)})
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	slog.Info("retrying price lookups", "epoch", st.epoch, "lookups", len(jobs))
	o.launch(st.batchCtx, st.epoch, jobs)
	o.publish()
	return len(jobs), nil
}

func (o *Orchestrator) handleRevealTick(now time.Time) {
	o.revealC = nil
	if _, ok := o.st.reveal.Admit(now); ok {
		o.publish()
	}
	o.scheduleReveal()
}

// scheduleReveal arms the reveal timer for the next queued key, or disarms
// it when the queue is empty.
func (o *Orchestrator) scheduleReveal() {
	d, ok := o.st.reveal.Delay(time.Now())
	if !ok {
		o.revealTimer.Stop()
		o.revealC = nil
		return
	}
	o.revealTimer.Reset(d)
	o.revealC = o.revealTimer.C
}

func (o *Orchestrator) rerank() {
	st := &o.st
	st.candidates = Sort(st.candidates, st.query.Sort, st.query.Direction, o.tripTotal)
	st.index = make(map[string]int, len(st.candidates))
	for i, r := range st.candidates {
		st.index[r.Key()] = i
	}
}

func (o *Orchestrator) passesFilter(r PricedResort) bool {
	return o.st.query.IncludeSmall || r.Popularity > SmallResortPopularity
}

// tripCost prices every part of a trip for the current query.
func (o *Orchestrator) tripCost(r PricedResort) cost.TripCost {
	ticket, ticketOK := cost.TicketTotal(r.TicketCost, o.st.nights)
	lodging, lodgingOK := r.Lodging.Value()
	fuelIn := o.fuel
	fuelIn.DrivingTime = r.DrivingTime
	fuel := 0.0
	if r.DrivingTime != "" {
		fuel = cost.FuelCost(fuelIn)
	}
	return cost.TripTotal(ticket, ticketOK, lodging, lodgingOK, fuel, o.st.query.Guests)
}

func (o *Orchestrator) tripTotal(r PricedResort) (float64, bool) {
	c := o.tripCost(r)
	return c.Total, c.Known
}

func (o *Orchestrator) countState(s FetchState) int {
	n := 0
	for _, fs := range o.st.fetch {
		if fs == s {
			n++
		}
	}
	return n
}

func (o *Orchestrator) buildView() View {
	st := &o.st
	v := View{
		Epoch:          st.epoch,
		Query:          st.query,
		OriginFallback: st.originFallback,
		Nights:         st.nights,
		Ranked:         make([]Trip, 0, len(st.candidates)),
		Visible:        []Trip{},
		Pending:        st.reveal.Len(),
		InFlight:       o.countState(InFlight),
		UpdatedAt:      time.Now().UTC(),
	}

	for _, r := range st.candidates {
		key := r.Key()
		trip := Trip{
			PricedResort: r,
			Cost:         o.tripCost(r),
			FetchState:   st.fetch[key],
			Visible:      st.reveal.Shown(key) && o.passesFilter(r),
			Error:        st.errs[key],
		}
		v.Ranked = append(v.Ranked, trip)
		if trip.Visible {
			v.Visible = append(v.Visible, trip)
		}
	}

	switch {
	case !st.submitted:
		v.Status = StatusIdle
	case len(st.candidates) == 0:
		v.Status = StatusEmpty
	case v.InFlight > 0:
		v.Status = StatusLoading
	default:
		v.Status = StatusReady
	}
	v.Settled = st.submitted && v.InFlight == 0 && v.Pending == 0
	return v
}

func (o *Orchestrator) publish() {
	if len(o.subs) == 0 {
		return
	}
	v := o.buildView()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
