// Package agentruntime implements AgentRuntime (spec.md §4.5): the
// component every watched.* wrapper method calls into, and the external
// API a debugger (here, the HTTP server in internal/server) drives.
package agentruntime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fieldwatch-agent/pkg/catalog"
	"fieldwatch-agent/pkg/containerlock"
	"fieldwatch-agent/pkg/historystore"
	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/multiset"
	"fieldwatch-agent/pkg/rewriter"
	"fieldwatch-agent/pkg/stack"
	"fieldwatch-agent/pkg/watched"
)

// Metrics is the narrow recorder interface Runtime reports to. Left
// satisfiable by a no-op so pkg/agentruntime has no hard dependency on
// internal/metrics; internal/app wires the real prometheus-backed
// implementation in.
type Metrics interface {
	FieldWriteCaptured()
	ContainerModificationAppended()
	RewriteFailure()
}

type noopMetrics struct{}

func (noopMetrics) FieldWriteCaptured()             {}
func (noopMetrics) ContainerModificationAppended()  {}
func (noopMetrics) RewriteFailure()                 {}

// Exporter is the narrow fan-out interface a Runtime reports every
// recorded modification to, in addition to HistoryStore. Left satisfiable
// by a no-op so pkg/agentruntime has no hard dependency on any particular
// downstream sink; internal/app wires the real Kafka-backed
// pkg/export.Publisher in when exporting is enabled.
type Exporter interface {
	PublishFieldModification(locator historystore.FieldLocator, now time.Time)
	PublishContainerModification(mod historystore.ContainerModification, now time.Time)
}

type noopExporter struct{}

func (noopExporter) PublishFieldModification(historystore.FieldLocator, time.Time)      {}
func (noopExporter) PublishContainerModification(historystore.ContainerModification, time.Time) {}

// Runtime is the process-wide AgentRuntime: it owns the Catalog,
// HistoryStore, rewriter Registry, and the per-container lock table, and
// implements watched.Hooks so every instrumented wrapper call routes here.
type Runtime struct {
	catalog  *catalog.Catalog
	history  *historystore.Store
	registry *rewriter.Registry
	log      *logrus.Logger
	metrics  Metrics

	exporter Exporter

	locksMu sync.Mutex
	locks   map[identitykey.Key]*containerlock.Lock

	saveStackDefault bool
}

// Option configures a Runtime at construction.
type Option func(*Runtime)

// WithLogger overrides the default logrus.Logger (one with logrus's
// standard defaults) the teacher's own components are configured with.
func WithLogger(l *logrus.Logger) Option { return func(r *Runtime) { r.log = l } }

// WithMetrics wires a Metrics recorder; defaults to a no-op.
func WithMetrics(m Metrics) Option { return func(r *Runtime) { r.metrics = m } }

// WithStackCaptureDefault stores a default stack-capture setting on the
// Runtime. No entry point reads it: CaptureFieldWrite captures a stack
// exactly when its saveStack argument is true.
func WithStackCaptureDefault(v bool) Option { return func(r *Runtime) { r.saveStackDefault = v } }

// WithExporter wires a downstream Exporter that every successfully
// recorded modification is also published to, in addition to being kept
// in HistoryStore; defaults to a no-op.
func WithExporter(e Exporter) Option { return func(r *Runtime) { r.exporter = e } }

// init marks this module's own packages as agent-internal, so stacks
// captured on the hot path leave out the agent's frames.
func init() {
	stack.SetOwnPackagePrefixes("fieldwatch-agent/")
}

// New builds a Runtime bound to cat and installs it as the process-wide
// watched.Hooks implementation.
func New(cat *catalog.Catalog, history *historystore.Store, opts ...Option) *Runtime {
	r := &Runtime{
		catalog:  cat,
		history:  history,
		registry: rewriter.NewRegistry(cat),
		log:      logrus.New(),
		metrics:  noopMetrics{},
		exporter: noopExporter{},
		locks:    make(map[identitykey.Key]*containerlock.Lock),
	}
	for _, opt := range opts {
		opt(r)
	}
	watched.Install(r)
	return r
}

// Registry exposes the bound rewriter.Registry, for callers that need to
// Prepare a type explicitly.
func (r *Runtime) Registry() *rewriter.Registry { return r.registry }

// Catalog exposes the bound Catalog, for callers registering tracked
// fields at startup.
func (r *Runtime) Catalog() *catalog.Catalog { return r.catalog }

// History exposes the bound HistoryStore, for callers (internal/server)
// that need to query by a previously-observed identitykey.Key rather than
// a live container reference — the HTTP API has no way to hand back a Go
// pointer, so it hands back opaque ids that round-trip to a Key instead.
func (r *Runtime) History() *historystore.Store { return r.history }

func (r *Runtime) lockFor(key identitykey.Key) *containerlock.Lock {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = containerlock.New()
		r.locks[key] = l
	}
	return l
}

// recoverHotPath implements spec.md §7's HotPathException handling:
// CaptureFieldWrite, CaptureInline, CaptureMutator and LeaveWithCopies
// defer it, so a panic inside them is logged once and the call returns
// normally rather than propagating into the target program. Enter, Leave
// and EnterWithCopies do not defer it; a panic in them reaches the caller.
func (r *Runtime) recoverHotPath(op string) {
	if rec := recover(); rec != nil {
		r.log.WithFields(logrus.Fields{"op": op, "panic": rec}).Error("agentruntime: recovered panic on hot path")
	}
}

// CaptureFieldWrite implements the five-step sequence of spec.md §4.5: look
// up the locator, skip silently if inactive (LookupMiss), register the new
// container as tracked by this locator, capture a stack if asked, and
// append the FieldModification.
func (r *Runtime) CaptureFieldWrite(ctx context.Context, container, owner any, ownerClass, field string, saveStack bool) {
	defer r.recoverHotPath("CaptureFieldWrite")

	locator := historystore.FieldLocator{Class: ownerClass, Field: field, Owner: identitykey.Of(owner)}
	if !r.history.IsActive(locator) {
		return
	}

	var containerKey identitykey.Key
	if container != nil {
		containerKey = identitykey.Of(container)
		r.history.RegisterTracker(containerKey, locator)
		r.lockFor(containerKey)
	}

	var frames stack.Frames
	if saveStack {
		frames = r.captureStack()
	}

	r.history.AppendFieldModification(locator, historystore.FieldModification{Stack: frames, Container: containerKey})
	r.metrics.FieldWriteCaptured()
	r.exporter.PublishFieldModification(locator, time.Now())
}

// captureStack never lets a stack-capture failure (spec.md's
// StackCaptureFailure) reach the caller: a panic inside Capture is caught
// and logged at debug level, yielding an empty Frames.
func (r *Runtime) captureStack() (frames stack.Frames) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", rec).Debug("agentruntime: stack capture failed")
			frames = nil
		}
	}()
	return stack.Capture(3)
}

// CaptureInline implements the Documented-method capture path: report
// element's insertion or removal against container's identity if any
// tracker of it is currently active.
func (r *Runtime) CaptureInline(ctx context.Context, container, element any, isAddition bool) {
	defer r.recoverHotPath("CaptureInline")

	key := identitykey.Of(container)
	if !r.history.IsContainerActive(key) {
		return
	}
	mod := historystore.ContainerModification{
		Stack:      r.captureStack(),
		Element:    element,
		IsAddition: isAddition,
	}
	r.history.AppendContainerModification(key, mod)
	r.metrics.ContainerModificationAppended()
	r.exporter.PublishContainerModification(mod, time.Now())
}

// CaptureMutator implements the Default-method capture path: diff before
// against after and append one ContainerModification per delta, in the
// removals-before-additions order multiset.Diff produces.
func (r *Runtime) CaptureMutator(ctx context.Context, container any, before, after watched.Snapshot) {
	defer r.recoverHotPath("CaptureMutator")

	key := identitykey.Of(container)
	if !r.history.IsContainerActive(key) {
		return
	}
	frames := r.captureStack()
	for _, delta := range multiset.Diff(before, after) {
		mod := historystore.ContainerModification{
			Stack:      frames,
			Element:    delta.Element,
			IsAddition: delta.IsAdd,
		}
		r.history.AppendContainerModification(key, mod)
		r.metrics.ContainerModificationAppended()
		r.exporter.PublishContainerModification(mod, time.Now())
	}
}

// Enter implements spec.md §4.2's `enter(synchronize?)` for a single
// container, delegating to that container's ContainerLock.
func (r *Runtime) Enter(ctx context.Context, container any, synchronize bool) (bool, context.Context) {
	key := identitykey.Of(container)
	return r.lockFor(key).Enter(ctx, synchronize)
}

// Leave implements spec.md §4.2's `leave(synchronize?)`.
func (r *Runtime) Leave(ctx context.Context, container any, synchronize bool) {
	key := identitykey.Of(container)
	r.lockFor(key).Leave(ctx, synchronize)
}

// EnterWithCopies implements the nestmate/static-method prologue: enter the
// container's lock and, the first time this container is seen in copies,
// record its entry bag snapshot.
func (r *Runtime) EnterWithCopies(ctx context.Context, container *watched.Generic, copies watched.CopiesMap) context.Context {
	key := identitykey.Of(container)
	_, ctx = r.lockFor(key).Enter(ctx, true)
	if _, ok := copies[key]; !ok {
		copies[key] = watched.NewCopyState(container, container.BagSnapshot())
	}
	return ctx
}

// LeaveWithCopies implements the nestmate/static-method epilogue: for every
// tracked container, diff its current contents against the entry snapshot
// and leave its lock.
func (r *Runtime) LeaveWithCopies(ctx context.Context, copies watched.CopiesMap) {
	defer r.recoverHotPath("LeaveWithCopies")

	for key, cs := range copies {
		container, before := cs.Container(), cs.Before()
		after := container.BagSnapshot()
		if r.history.IsContainerActive(key) {
			frames := r.captureStack()
			for _, delta := range multiset.Diff(before, after) {
				mod := historystore.ContainerModification{
					Stack:      frames,
					Element:    delta.Element,
					IsAddition: delta.IsAdd,
				}
				r.history.AppendContainerModification(key, mod)
				r.metrics.ContainerModificationAppended()
				r.exporter.PublishContainerModification(mod, time.Now())
			}
		}
		r.lockFor(key).Leave(ctx, true)
	}
}
