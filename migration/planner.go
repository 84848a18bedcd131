package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/schemaforge/schema"
	"github.com/GoCodeAlone/schemaforge/store"
)

// State is the planning state of one table, derived from its history.
type State string

const (
	StateNoHistory        State = "NO_HISTORY"
	StateHistoryNoRecords State = "HISTORY_NO_RECORDS"
	StatePendingCreate    State = "PENDING_CREATE"
	StateBaseSettled      State = "BASE_SETTLED"
	StatePendingAlter     State = "PENDING_ALTER"
)

// Transition is what a planning run did to a table's history.
type Transition string

const (
	TransitionNone          Transition = "none"
	TransitionCreate        Transition = "create"
	TransitionRewriteCreate Transition = "rewrite-create"
	TransitionAlter         Transition = "alter"
	TransitionRewriteAlter  Transition = "rewrite-alter"
	TransitionDropAlter     Transition = "drop-alter"
	TransitionRegister      Transition = "register"
)

// Options controls a Planner.
type Options struct {
	// Smart consults the applied log. Without it every non-virtual latest
	// record counts as pending.
	Smart bool
	// DryRun computes plans without emitting documents or writing history.
	DryRun bool
	// OutputDir prefixes the path of every new migration document.
	OutputDir string
}

// Result describes one planning run for one table.
type Result struct {
	Table      string
	Source     string
	State      State
	Transition Transition
	// Record is the created, rewritten, registered or removed record.
	Record   *store.MigrationRecord
	Delta    *Delta
	Apply    []Operation
	Revert   []Operation
	Warnings []schema.Warning

	history *store.TableHistory
	snap    *schema.Snapshot
}

// Changed reports whether the run produced or removed a migration.
func (r *Result) Changed() bool {
	return r.Transition != TransitionNone
}

// Document returns the plan document for the run's record.
func (r *Result) Document() Document {
	doc := Document{
		Table:    r.Table,
		Apply:    r.Apply,
		Revert:   r.Revert,
		Warnings: r.Warnings,
	}
	if r.Record != nil {
		doc.Name = r.Record.Name
		doc.ClassName = r.Record.ClassName
		doc.Create = r.Record.IsCreate
	}
	return doc
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithLogger sets the planner's logger.
func WithLogger(l *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithEmitter sets where plan documents are written.
func WithEmitter(e Emitter) PlannerOption {
	return func(p *Planner) { p.emitter = e }
}

// WithAppliedLog sets the oracle used in smart mode.
func WithAppliedLog(a AppliedLog) PlannerOption {
	return func(p *Planner) { p.applied = a }
}

// WithMetrics records every planning result in m.
func WithMetrics(m *Metrics) PlannerOption {
	return func(p *Planner) { p.metrics = m }
}

// Planner decides, per table, whether to create, rewrite, append or drop a
// migration and keeps the history store in step.
type Planner struct {
	history store.HistoryStore
	applied AppliedLog
	emitter Emitter
	metrics *Metrics
	logger  *slog.Logger
	opts    Options
}

// NewPlanner creates a Planner over history.
func NewPlanner(history store.HistoryStore, opts Options, popts ...PlannerOption) *Planner {
	p := &Planner{
		history: history,
		logger:  slog.Default(),
		opts:    opts,
	}
	for _, o := range popts {
		o(p)
	}
	return p
}

// State derives the planning state of a table from its history; h is nil
// when the table has none.
func (p *Planner) State(ctx context.Context, h *store.TableHistory) (State, error) {
	if h == nil {
		return StateNoHistory, nil
	}
	latest, ok := h.Latest()
	if !ok {
		return StateHistoryNoRecords, nil
	}
	if latest.IsVirtual {
		return StateBaseSettled, nil
	}
	applied, err := p.isApplied(ctx, latest.Name)
	if err != nil {
		return "", err
	}
	switch {
	case applied:
		return StateBaseSettled, nil
	case latest.IsCreate:
		return StatePendingCreate, nil
	default:
		return StatePendingAlter, nil
	}
}

// Plan reconciles the history of snap's table with snap. source names where
// the spec came from and is stored with a new history.
func (p *Planner) Plan(ctx context.Context, snap *schema.Snapshot, source string) (*Result, error) {
	start := time.Now()
	res, err := p.prepare(ctx, snap, source)
	if err != nil {
		return nil, err
	}
	if !p.opts.DryRun {
		if err := p.commit(ctx, res); err != nil {
			return nil, fmt.Errorf("plan %s: %w", res.Table, err)
		}
	}
	p.report(res, time.Since(start))
	return res, nil
}

// PlanAll plans every provider's spec in order. Every spec is loaded and
// planned before anything is written, so a fatal error in any of them
// leaves the history and the documents untouched. A table declared by two
// providers is an error.
func (p *Planner) PlanAll(ctx context.Context, providers ...SpecProvider) ([]*Result, error) {
	// Log lines of one batch share a run id.
	run := *p
	run.logger = p.logger.With("run_id", uuid.NewString())

	seen := make(map[string]string, len(providers))
	snaps := make([]*schema.Snapshot, len(providers))
	for i, prov := range providers {
		snap, err := loadSnapshot(prov)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[snap.Table()]; dup {
			return nil, fmt.Errorf("table %s is declared by both %s and %s", snap.Table(), other, prov.Source())
		}
		seen[snap.Table()] = prov.Source()
		snaps[i] = snap
	}

	results := make([]*Result, len(snaps))
	elapsed := make([]time.Duration, len(snaps))
	for i, snap := range snaps {
		start := time.Now()
		res, err := run.prepare(ctx, snap, providers[i].Source())
		if err != nil {
			return nil, err
		}
		results[i] = res
		elapsed[i] = time.Since(start)
	}

	if !p.opts.DryRun {
		for i, res := range results {
			start := time.Now()
			if err := run.commit(ctx, res); err != nil {
				return results[:i], fmt.Errorf("plan %s: %w", res.Table, err)
			}
			elapsed[i] += time.Since(start)
		}
	}
	for i, res := range results {
		run.report(res, elapsed[i])
	}
	return results, nil
}

// Register records snap as the settled starting point of a table that
// already exists in the database. The create record is virtual and no
// document is emitted.
func (p *Planner) Register(ctx context.Context, snap *schema.Snapshot, source string) (*Result, error) {
	table := snap.Table()
	h, err := p.load(ctx, table)
	if err != nil {
		return nil, err
	}
	state := StateNoHistory
	if h != nil {
		if len(h.Migrations) > 0 {
			return nil, fmt.Errorf("register %s: %w: table already has migration history", table, store.ErrDuplicate)
		}
		state = StateHistoryNoRecords
	}

	rec := p.newRecord(snap, RoleCreate, 1, BuildCreate(snap))
	rec.IsVirtual = true
	warnings, _ := schema.Validate(snap.Spec())
	res := &Result{
		Table:      table,
		Source:     source,
		State:      state,
		Transition: TransitionRegister,
		Record:     &rec,
		Warnings:   warnings,
		history:    h,
		snap:       snap,
	}
	if !p.opts.DryRun {
		if err := p.persist(ctx, res); err != nil {
			return nil, fmt.Errorf("register %s: %w", table, err)
		}
	}
	p.logger.Info("table registered", "table", table, "migration", rec.Name, "dry_run", p.opts.DryRun)
	return res, nil
}

// prepare derives the state of snap's table and computes its plan. It
// reads the history but never writes anything.
func (p *Planner) prepare(ctx context.Context, snap *schema.Snapshot, source string) (*Result, error) {
	table := snap.Table()
	h, err := p.load(ctx, table)
	if err != nil {
		return nil, err
	}
	state, err := p.State(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", table, err)
	}

	// The snapshot already validated, so only warnings can come back.
	warnings, _ := schema.Validate(snap.Spec())
	res := &Result{Table: table, Source: source, State: state, Warnings: warnings, history: h, snap: snap}

	switch state {
	case StateNoHistory, StateHistoryNoRecords:
		p.create(snap, res)
	case StatePendingCreate:
		p.rewriteCreate(h, snap, res)
	case StateBaseSettled:
		err = p.alter(h, snap, res)
	case StatePendingAlter:
		err = p.rewriteAlter(h, snap, res)
	}
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", table, err)
	}
	return res, nil
}

// commit emits the document of a prepared result, then writes its history
// change. A removed pending alter discards its document instead.
func (p *Planner) commit(ctx context.Context, res *Result) error {
	switch res.Transition {
	case TransitionNone:
		return nil
	case TransitionDropAlter:
		if p.emitter != nil {
			if err := p.emitter.Discard(ctx, res.Record.Path); err != nil {
				return err
			}
		}
		return p.history.ForgetMigration(ctx, res.Table, res.Record.Name)
	}

	if err := p.emit(ctx, res); err != nil {
		return err
	}
	switch res.Transition {
	case TransitionCreate:
		return p.persist(ctx, res)
	case TransitionAlter:
		return p.history.AddMigration(ctx, res.Table, *res.Record)
	default:
		return p.history.UpdateMigration(ctx, res.Table, *res.Record)
	}
}

func (p *Planner) report(res *Result, elapsed time.Duration) {
	for _, w := range res.Warnings {
		p.logger.Warn("schema warning", "table", res.Table, "warning", w.Message)
	}
	attrs := []any{"table", res.Table, "state", res.State, "transition", res.Transition, "dry_run", p.opts.DryRun}
	if res.Record != nil {
		attrs = append(attrs, "migration", res.Record.Name)
	}
	p.logger.Info("migration planned", attrs...)
	if p.metrics != nil {
		p.metrics.Observe(res, elapsed)
	}
}

func (p *Planner) create(snap *schema.Snapshot, res *Result) {
	ops := BuildCreate(snap)
	rec := p.newRecord(snap, RoleCreate, 1, ops)
	res.Transition = TransitionCreate
	res.Record = &rec
	res.Apply = ops
}

// rewriteCreate replaces the pending create record in place, folding every
// edit made before deployment into one creation migration.
func (p *Planner) rewriteCreate(h *store.TableHistory, snap *schema.Snapshot, res *Result) {
	latest, _ := h.Latest()
	ops := BuildCreate(snap)
	rec := p.rewrite(latest, snap, ops)
	res.Transition = TransitionRewriteCreate
	res.Record = &rec
	res.Apply = ops
}

func (p *Planner) alter(h *store.TableHistory, snap *schema.Snapshot, res *Result) error {
	latest, _ := h.Latest()
	prev, err := recordSnapshot(h.Table, latest)
	if err != nil {
		return err
	}
	delta := Diff(prev, snap)
	res.Delta = &delta
	if !delta.HasChange() {
		res.Transition = TransitionNone
		if w, ok := untrackedChange(prev, snap); ok {
			res.Warnings = append(res.Warnings, w)
		}
		return nil
	}

	apply, revert, err := BuildAlter(h.Table, delta)
	if err != nil {
		return err
	}
	rec := p.newRecord(snap, RoleAlter, p.nextSeq(h), apply)
	res.Transition = TransitionAlter
	res.Record = &rec
	res.Apply = apply
	res.Revert = revert
	return nil
}

// rewriteAlter diffs against the record before the pending alter. An empty
// result means the edits cancelled out, so the pending alter is dropped.
func (p *Planner) rewriteAlter(h *store.TableHistory, snap *schema.Snapshot, res *Result) error {
	n := len(h.Migrations)
	if n < 2 {
		return fmt.Errorf("%w: table %s has an alter record without a base", store.ErrCorruptHistory, h.Table)
	}
	latest, base := h.Migrations[n-1], h.Migrations[n-2]
	prev, err := recordSnapshot(h.Table, base)
	if err != nil {
		return err
	}
	delta := Diff(prev, snap)
	res.Delta = &delta

	if !delta.HasChange() {
		res.Transition = TransitionDropAlter
		res.Record = &latest
		if w, ok := untrackedChange(prev, snap); ok {
			res.Warnings = append(res.Warnings, w)
		}
		return nil
	}

	apply, revert, err := BuildAlter(h.Table, delta)
	if err != nil {
		return err
	}
	rec := p.rewrite(latest, snap, apply)
	res.Transition = TransitionRewriteAlter
	res.Record = &rec
	res.Apply = apply
	res.Revert = revert
	return nil
}

func (p *Planner) load(ctx context.Context, table string) (*store.TableHistory, error) {
	h, err := p.history.Get(ctx, table)
	if errors.Is(err, store.ErrTableNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", table, err)
	}
	return h, nil
}

func (p *Planner) persist(ctx context.Context, res *Result) error {
	if res.history == nil {
		return p.history.Add(ctx, store.TableHistory{
			Table:  res.Table,
			Model:  res.snap.Model(),
			Source: res.Source,
		}, res.Record)
	}
	return p.history.AddMigration(ctx, res.Table, *res.Record)
}

func (p *Planner) emit(ctx context.Context, res *Result) error {
	if p.emitter == nil {
		return nil
	}
	return p.emitter.Emit(ctx, res.Record.Path, res.Document())
}

func (p *Planner) isApplied(ctx context.Context, name string) (bool, error) {
	if !p.opts.Smart || p.applied == nil {
		return false, nil
	}
	ok, err := p.applied.IsApplied(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check applied %s: %w", name, err)
	}
	return ok, nil
}

// nextSeq is one past the record count, skipping names already taken.
func (p *Planner) nextSeq(h *store.TableHistory) int {
	seq := len(h.Migrations) + 1
	for h.Find(MigrationName(h.Table, RoleAlter, seq)) >= 0 {
		seq++
	}
	return seq
}

func (p *Planner) newRecord(snap *schema.Snapshot, role Role, seq int, ops []Operation) store.MigrationRecord {
	name := MigrationName(snap.Table(), role, seq)
	return store.MigrationRecord{
		Name:        name,
		ClassName:   ClassName(snap.Table(), role, seq),
		Path:        ArtifactPath(p.opts.OutputDir, name),
		Spec:        snap.Spec(),
		IsCreate:    role == RoleCreate,
		Timestamps:  snap.UsesTimestamps(),
		SoftDeletes: snap.UsesSoftDelete(),
		Checksum:    checksum(ops),
	}
}

// rewrite keeps the identity of rec and replaces what it was built from.
func (p *Planner) rewrite(rec store.MigrationRecord, snap *schema.Snapshot, ops []Operation) store.MigrationRecord {
	out := rec.Clone()
	out.Spec = snap.Spec()
	out.Timestamps = snap.UsesTimestamps()
	out.SoftDeletes = snap.UsesSoftDelete()
	out.Checksum = checksum(ops)
	return out
}

func recordSnapshot(table string, rec store.MigrationRecord) (*schema.Snapshot, error) {
	snap, _, err := schema.NewSnapshot(rec.Spec)
	if err != nil {
		return nil, fmt.Errorf("%w: table %s record %s: %v", store.ErrCorruptHistory, table, rec.Name, err)
	}
	return snap, nil
}

func loadSnapshot(prov SpecProvider) (*schema.Snapshot, error) {
	spec, err := prov.Spec()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", prov.Source(), err)
	}
	snap, _, err := schema.NewSnapshot(*spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", prov.Source(), err)
	}
	return snap, nil
}

// untrackedChange reports edits that the diff deliberately ignores, so the
// user learns why no alter was generated.
func untrackedChange(prev, cur *schema.Snapshot) (schema.Warning, bool) {
	var what string
	switch {
	case prev.Engine() != cur.Engine():
		what = "engine"
	case !slices.Equal(prev.ForeignKeys(), cur.ForeignKeys()):
		what = "foreign key"
	default:
		return schema.Warning{}, false
	}
	return schema.Warning{
		Table:   cur.Table(),
		Message: what + " changes are not diffed; no alter operations were generated for them",
	}, true
}
