// Package render drives the display: every render tick it picks the active
// screen from the wall clock, starts any due data refreshes in the
// background, draws the screen and hands the frame to the sink.
package render

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"matrixboard/canvas"
	"matrixboard/schedule"
	"matrixboard/screen"
	"matrixboard/sink"
	"matrixboard/source"
)

const (
	defaultRenderTick   = 500 * time.Millisecond
	defaultFetchTimeout = 10 * time.Second
)

// SourceSpec pairs a data source with its refresh interval.
type SourceSpec struct {
	Source   source.Source
	Interval time.Duration
}

// Options configures a Loop.
type Options struct {
	Registry     *screen.Registry
	Store        *source.Store
	Sources      []SourceSpec
	Sink         sink.Sink
	Text         *canvas.Text
	Rotation     schedule.Rotation
	Width        int
	Height       int
	RenderTick   time.Duration
	FetchTimeout time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

// Loop owns the canvas, the refresh state of every source, and the sink.
type Loop struct {
	registry     *screen.Registry
	ids          []screen.ID
	store        *source.Store
	sources      []SourceSpec
	sink         sink.Sink
	text         *canvas.Text
	rotation     schedule.Rotation
	canvas       *canvas.Canvas
	tick         time.Duration
	fetchTimeout time.Duration
	logger       *log.Logger
	now          func() time.Time

	fetches sync.WaitGroup

	// touched only by the goroutine calling Tick
	failing map[screen.ID]bool

	clearOnce sync.Once
	clearErr  error
}

// Purpose: Build a render loop from screens, sources and a sink.
// Key aspects: Validates geometry and screen/source wiring, registers sources
// with the store, and freezes the registry so rotation order is fixed.
// Upstream: main startup.
// Downstream: source.Store.Register, screen.Registry.Freeze.
func New(opts Options) (*Loop, error) {
	if opts.Registry == nil || opts.Registry.Len() == 0 {
		return nil, errors.New("render: no screens registered")
	}
	if opts.Sink == nil {
		return nil, errors.New("render: nil sink")
	}
	if opts.Rotation.Slices() == 0 {
		return nil, fmt.Errorf("render: %w", schedule.ErrInvalidRotation)
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("render: invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	if opts.RenderTick <= 0 {
		opts.RenderTick = defaultRenderTick
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Store == nil {
		opts.Store = source.NewStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	for _, spec := range opts.Sources {
		if spec.Source == nil {
			return nil, errors.New("render: nil source")
		}
		if spec.Interval <= 0 {
			return nil, fmt.Errorf("render: source %q has no refresh interval", spec.Source.Name())
		}
		if err := opts.Store.Register(spec.Source.Name()); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}
	known := make(map[string]bool)
	for _, name := range opts.Store.Names() {
		known[name] = true
	}
	for _, s := range opts.Registry.Screens() {
		if s.Source != "" && !known[s.Source] {
			return nil, fmt.Errorf("render: screen %q uses unknown source %q", s.ID, s.Source)
		}
	}

	opts.Registry.Freeze()
	l := &Loop{
		registry:     opts.Registry,
		ids:          opts.Registry.IDs(),
		store:        opts.Store,
		sources:      opts.Sources,
		sink:         opts.Sink,
		text:         opts.Text,
		rotation:     opts.Rotation,
		canvas:       canvas.New(opts.Width, opts.Height),
		tick:         opts.RenderTick,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
		now:          opts.Now,
		failing:      make(map[screen.ID]bool),
	}
	if slices := opts.Rotation.Slices(); slices < len(l.ids) {
		l.logf("Render: warning: %d screens but only %d slices; %v never shown", len(l.ids), slices, l.ids[slices:])
	}
	l.logf("Render: %d screens %v, %ds slices in a %ds rotation", len(l.ids), l.ids, opts.Rotation.Slice(), opts.Rotation.Period())
	return l, nil
}

// Store exposes the refresh state the loop maintains.
func (l *Loop) Store() *source.Store { return l.store }

// ActiveScreen returns the screen that owns now's slice.
func (l *Loop) ActiveScreen(now time.Time) screen.ID {
	return schedule.ActiveScreen(now, l.ids, l.rotation)
}

// Purpose: Drive the display until shutdown.
// Key aspects: Ticks immediately, then on the render cadence; a cancelled
// context is a clean exit, a sink failure is returned. The sink is cleared
// exactly once before Run returns.
// Upstream: main after wiring.
// Downstream: Tick, Teardown.
func (l *Loop) Run(ctx context.Context) (err error) {
	defer func() {
		if cerr := l.Teardown(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := l.Tick(ctx, l.now()); err != nil {
		return err
	}
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				return nil
			}
			if err := l.Tick(ctx, l.now()); err != nil {
				return err
			}
		}
	}
}

// Teardown clears the sink. Only the first call reaches the sink.
func (l *Loop) Teardown() error {
	l.clearOnce.Do(func() {
		if err := l.sink.Clear(); err != nil {
			l.clearErr = fmt.Errorf("render: clear display: %w", err)
		}
	})
	return l.clearErr
}

// Purpose: Run one render iteration at now.
// Key aspects: Never waits on a fetch; render failures become a placeholder
// frame and only a sink failure is returned.
// Upstream: Run, tests.
// Downstream: dispatchRefreshes, renderScreen, sink.Present.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	l.dispatchRefreshes(ctx, now)

	id := l.ActiveScreen(now)
	scr, ok := l.registry.Lookup(id)
	l.canvas.Clear()
	if !ok {
		screen.Placeholder(l.canvas, l.text, id)
	} else {
		l.renderScreen(scr, now)
	}
	if err := l.sink.Present(l.canvas); err != nil {
		return fmt.Errorf("render: present %s: %w", id, err)
	}
	return nil
}

// WaitFetches blocks until every dispatched fetch has completed.
func (l *Loop) WaitFetches() {
	l.fetches.Wait()
}

func (l *Loop) renderScreen(s screen.Screen, now time.Time) {
	view := screen.View{Now: now}
	if s.Source != "" {
		view.Snapshot = l.store.Snapshot(s.Source)
	}
	err := safeRender(s, l.canvas, view)
	if err == nil {
		if l.failing[s.ID] {
			l.logf("Render: %s recovered", s.ID)
			delete(l.failing, s.ID)
		}
		return
	}
	if !l.failing[s.ID] {
		l.logf("Render: %s failed, showing placeholder: %v", s.ID, err)
		l.failing[s.ID] = true
	}
	screen.Placeholder(l.canvas, l.text, s.ID)
}

func safeRender(s screen.Screen, c *canvas.Canvas, v screen.View) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Render(c, v)
}

// Purpose: Start a background fetch for every due source.
// Key aspects: The attempt is recorded before the goroutine starts, so a slow
// fetch is never dispatched twice.
// Upstream: Tick.
// Downstream: source.Store.Due/BeginAttempt, fetch goroutines.
func (l *Loop) dispatchRefreshes(ctx context.Context, now time.Time) {
	for _, spec := range l.sources {
		name := spec.Source.Name()
		if !l.store.Due(name, now, spec.Interval) {
			continue
		}
		if !l.store.BeginAttempt(name, now) {
			continue
		}
		l.fetches.Add(1)
		go l.fetch(ctx, spec.Source, now)
	}
}

func (l *Loop) fetch(ctx context.Context, src source.Source, attemptAt time.Time) {
	defer l.fetches.Done()
	name := src.Name()

	payload, err := l.boundedFetch(ctx, src, attemptAt)
	if err == nil && payload == nil {
		err = errors.New("source returned no payload")
	}

	done := l.now()
	prev, serr := l.store.Complete(name, done, payload, err)
	if serr != nil {
		l.logf("Refresh: %v", serr)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		kept := "no data yet"
		if !prev.LastSuccess.IsZero() {
			kept = "keeping data from " + humanize.RelTime(prev.LastSuccess, done, "ago", "from now")
		}
		l.logf("Refresh: %s failed (%s): %v", name, kept, err)
		return
	}
	if prev.LastSuccess.IsZero() {
		l.logf("Refresh: %s data loaded", name)
		return
	}
	l.logf("Refresh: %s data updated (previous %s)", name, humanize.RelTime(prev.LastSuccess, done, "ago", "from now"))
}

type fetchResult struct {
	payload source.Payload
	err     error
}

// boundedFetch gives up after fetchTimeout even when the source ignores its
// context. The abandoned call finishes in the background and its result is
// dropped.
func (l *Loop) boundedFetch(ctx context.Context, src source.Source, now time.Time) (source.Payload, error) {
	reqCtx, cancel := context.WithTimeout(ctx, l.fetchTimeout)
	defer cancel()
	done := make(chan fetchResult, 1)
	go func() {
		p, err := safeFetch(reqCtx, src, now)
		done <- fetchResult{payload: p, err: err}
	}()
	select {
	case r := <-done:
		return r.payload, r.err
	case <-reqCtx.Done():
		return nil, fmt.Errorf("abandoned after %v: %w", l.fetchTimeout, reqCtx.Err())
	}
}

func safeFetch(ctx context.Context, src source.Source, now time.Time) (p source.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Fetch(ctx, now)
}

func (l *Loop) logf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}
