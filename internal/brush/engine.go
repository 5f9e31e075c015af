package brush

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/rectindex"
)

// DefaultDebounce is how long the paint buffer waits for more changes before
// flushing.
const DefaultDebounce = 300 * time.Millisecond

// DefaultMaxSelection caps the selection at the largest acquisition a single
// purchase may cover.
const DefaultMaxSelection = 10000

var (
	// ErrStrokeActive is returned by Begin while another stroke is in progress.
	ErrStrokeActive = errors.New("stroke already in progress")
	// ErrNoPrincipal is returned when a tool needs a wallet and none is set.
	ErrNoPrincipal = errors.New("wallet required")
	// ErrOutOfBounds is returned for stroke points outside the grid.
	ErrOutOfBounds = errors.New("point outside grid")
	// ErrNoDraft is returned when a placement tool is used without a draft size.
	ErrNoDraft = errors.New("no placement draft")
)

// NoFreeCellError reports a selection stroke that could not start because
// every cell under the brush already has an owner.
type NoFreeCellError struct {
	BlockedOwn   int
	BlockedOther int
}

func (e *NoFreeCellError) Error() string {
	switch {
	case e.BlockedOther > 0:
		return "pixels owned by other wallets"
	case e.BlockedOwn > 0:
		return "you already own these pixels"
	default:
		return "no free pixels here"
	}
}

// ColorSink persists buffered color changes.
type ColorSink interface {
	FlushColors(ctx context.Context, wallet string, changes []grid.ColorChange) error
}

// ColorSinkFunc adapts a function to ColorSink.
type ColorSinkFunc func(ctx context.Context, wallet string, changes []grid.ColorChange) error

// FlushColors calls f.
func (f ColorSinkFunc) FlushColors(ctx context.Context, wallet string, changes []grid.ColorChange) error {
	return f(ctx, wallet, changes)
}

// StrokeStats summarizes the cells a stroke touched.
type StrokeStats struct {
	Changed      int `json:"changed"`
	BlockedOwn   int `json:"blockedOwn"`
	BlockedOther int `json:"blockedOther"`
	Capped       int `json:"capped,omitempty"`
}

func (s *StrokeStats) add(o StrokeStats) {
	s.Changed += o.Changed
	s.BlockedOwn += o.BlockedOwn
	s.BlockedOther += o.BlockedOther
	s.Capped += o.Capped
}

// Options configures an Engine.
type Options struct {
	Debounce     time.Duration
	MaxSelection int
	Logger       *slog.Logger
}

// Engine is the per-principal interaction state machine: idle → dragging → idle
// with one active tool. It is safe for concurrent use; the debounce timer
// flushes from its own goroutine.
type Engine struct {
	mu sync.Mutex

	snap   *grid.Snapshot
	wallet string
	self   grid.OwnerID

	tool  Tool
	shape Shape
	size  int
	color grid.Color

	dragging bool
	doSelect bool
	stroke   StrokeStats

	selection    *selectionMask
	maxSelection int

	// painted overlays snapshot colors with unflushed local changes.
	painted  map[int]grid.Color
	buffer   []grid.ColorChange
	timer    *time.Timer
	debounce time.Duration
	sink     ColorSink

	draft      grid.Rect
	dragOffset grid.Coord

	rects  *rectindex.Cache
	logger *slog.Logger
}

// NewEngine creates an engine acting as wallet over snap. An empty wallet may
// only select. sink receives paint flushes and may be nil when painting is not
// used.
func NewEngine(snap *grid.Snapshot, wallet string, sink ColorSink, opts Options) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxSelection <= 0 {
		opts.MaxSelection = DefaultMaxSelection
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		wallet:       wallet,
		size:         MinSize,
		color:        grid.White,
		selection:    newSelectionMask(),
		maxSelection: opts.MaxSelection,
		painted:      make(map[int]grid.Color),
		debounce:     opts.Debounce,
		sink:         sink,
		rects:        rectindex.NewCache(),
		logger:       opts.Logger,
	}
	e.setSnapshot(snap)
	return e
}

// SetTool switches the active tool. Switching is ignored mid-stroke.
func (e *Engine) SetTool(t Tool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dragging {
		e.tool = t
	}
}

// SetBrush sets shape and size, clamping the size.
func (e *Engine) SetBrush(shape Shape, size int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shape = shape
	e.size = ClampSize(size)
}

// SetColor sets the paint color.
func (e *Engine) SetColor(c grid.Color) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.color = c
}

// SetDraftSize sets the size of the media or link-button draft and moves it to
// its default placement.
func (e *Engine) SetDraftSize(w, h int) grid.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = grid.Rect{Width: w, Height: h}
	if at, ok := e.index().FindFirstFullyOwnedRect(w, h); ok {
		e.draft.X, e.draft.Y = at.X, at.Y
	}
	e.draft = e.draft.Clamp()
	return e.draft
}

// Draft returns the current placement draft.
func (e *Engine) Draft() grid.Rect {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft
}

// Dragging reports whether a stroke is in progress.
func (e *Engine) Dragging() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dragging
}

// Begin starts a stroke at point with the active tool.
func (e *Engine) Begin(point grid.Coord) (StrokeStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dragging {
		return StrokeStats{}, ErrStrokeActive
	}
	if !point.Valid() {
		return StrokeStats{}, ErrOutOfBounds
	}

	switch e.tool {
	case ToolSelect:
		doSelect, blocked, ok := e.resolveSelection(point)
		if !ok {
			return blocked, &NoFreeCellError{BlockedOwn: blocked.BlockedOwn, BlockedOther: blocked.BlockedOther}
		}
		e.doSelect = doSelect
	case ToolPaint:
		if e.self == grid.Unowned {
			return StrokeStats{}, ErrNoPrincipal
		}
	case ToolMedia, ToolLinkButton:
		if e.draft.Area() == 0 {
			return StrokeStats{}, ErrNoDraft
		}
		if e.draft.Contains(point) {
			e.dragOffset = grid.Coord{X: point.X - e.draft.X, Y: point.Y - e.draft.Y}
		} else {
			e.dragOffset = grid.Coord{}
		}
	}

	e.dragging = true
	e.stroke = StrokeStats{}
	e.apply(point)
	return e.stroke, nil
}

// Move continues the stroke at point. Points outside the grid are ignored.
func (e *Engine) Move(point grid.Coord) StrokeStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.dragging || !point.Valid() {
		return StrokeStats{}
	}
	return e.apply(point)
}

// End finishes the stroke and flushes any buffered paint.
func (e *Engine) End(ctx context.Context) (StrokeStats, error) {
	e.mu.Lock()
	wasPaint := e.dragging && e.tool == ToolPaint
	stats := e.stroke
	e.dragging = false
	e.stroke = StrokeStats{}
	e.mu.Unlock()

	if !wasPaint {
		return stats, nil
	}
	return stats, e.Flush(ctx)
}

// Flush sends buffered paint changes to the sink now.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	changes := e.takeBuffer()
	e.mu.Unlock()

	if len(changes) == 0 || e.sink == nil {
		return nil
	}
	return e.sink.FlushColors(ctx, e.wallet, changes)
}

// Pending returns the number of buffered paint changes.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// Close stops the debounce timer and flushes what is left.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.dragging = false
	e.mu.Unlock()
	return e.Flush(ctx)
}

// Selection returns the selected cells in row-major order.
func (e *Engine) Selection() []grid.Coord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection.coords()
}

// SelectionCount returns the number of selected cells.
func (e *Engine) SelectionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selection.count
}

// ClearSelection deselects every cell.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.clear()
}

// CommitAcquired installs the snapshot taken after a successful acquisition
// and clears the selection.
func (e *Engine) CommitAcquired(snap *grid.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selection.clear()
	e.setSnapshot(snap)
}

// UpdateSnapshot installs a newer snapshot. Selected cells that gained an
// owner are deselected.
func (e *Engine) UpdateSnapshot(snap *grid.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setSnapshot(snap)
	for _, c := range e.selection.coords() {
		if snap.OwnerOf(c) != grid.Unowned {
			e.selection.set(c.Index(), false)
		}
	}
}

// ValidatePlacement reports whether the acting wallet owns every cell of r.
func (e *Engine) ValidatePlacement(r grid.Rect) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index().FullyOwned(r)
}

// DefaultPlacement returns the first w × h rectangle the wallet fully owns.
func (e *Engine) DefaultPlacement(w, h int) (grid.Coord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index().FindFirstFullyOwnedRect(w, h)
}

// CountOwned counts the wallet's cells inside a rectangle.
func (e *Engine) CountOwned(x, y, w, h int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index().CountOwned(x, y, w, h)
}

func (e *Engine) index() *rectindex.Index {
	return e.rects.Get(e.snap, e.wallet)
}

func (e *Engine) setSnapshot(snap *grid.Snapshot) {
	e.snap = snap
	e.self = grid.Unowned
	if id, ok := snap.IDOf(e.wallet); ok && e.wallet != "" {
		e.self = id
	}
	// Flushed changes are part of the new snapshot; unflushed ones stay.
	pending := make(map[int]grid.Color, len(e.buffer))
	for _, ch := range e.buffer {
		pending[ch.Coord().Index()] = ch.Color
	}
	e.painted = pending
}

// resolveSelection picks the toggle direction from the first free cell under
// the brush: a selected cell means the stroke deselects, otherwise it selects.
func (e *Engine) resolveSelection(point grid.Coord) (doSelect bool, blocked StrokeStats, ok bool) {
	for _, c := range Cells(point, e.size, e.shape) {
		switch e.snap.OwnerOf(c) {
		case grid.Unowned:
			return !e.selection.has(c.Index()), StrokeStats{}, true
		case e.self:
			blocked.BlockedOwn++
		default:
			blocked.BlockedOther++
		}
	}
	return false, blocked, false
}

// apply runs the active tool at point. Must be called with mu held.
func (e *Engine) apply(point grid.Coord) StrokeStats {
	var stats StrokeStats
	switch e.tool {
	case ToolSelect:
		stats = e.applySelection(point)
	case ToolPaint:
		stats = e.applyPaint(point)
	case ToolMedia, ToolLinkButton:
		e.draft.X = point.X - e.dragOffset.X
		e.draft.Y = point.Y - e.dragOffset.Y
		e.draft = e.draft.Clamp()
	}
	e.stroke.add(stats)
	return stats
}

func (e *Engine) applySelection(point grid.Coord) StrokeStats {
	var stats StrokeStats
	for _, c := range Cells(point, e.size, e.shape) {
		switch e.snap.OwnerOf(c) {
		case grid.Unowned:
		case e.self:
			stats.BlockedOwn++
			continue
		default:
			stats.BlockedOther++
			continue
		}
		idx := c.Index()
		if e.doSelect && !e.selection.has(idx) && e.selection.count >= e.maxSelection {
			stats.Capped++
			continue
		}
		if e.selection.set(idx, e.doSelect) {
			stats.Changed++
		}
	}
	return stats
}

func (e *Engine) applyPaint(point grid.Coord) StrokeStats {
	var stats StrokeStats
	for _, c := range Cells(point, e.size, e.shape) {
		idx := c.Index()
		if e.snap.OwnerOf(c) != e.self {
			stats.BlockedOther++
			continue
		}
		if e.currentColor(idx) == e.color {
			continue
		}
		e.painted[idx] = e.color
		e.buffer = append(e.buffer, grid.ColorChange{X: c.X, Y: c.Y, Color: e.color})
		stats.Changed++
	}
	if stats.Changed > 0 {
		e.schedule()
	}
	return stats
}

func (e *Engine) currentColor(idx int) grid.Color {
	if c, ok := e.painted[idx]; ok {
		return c
	}
	return e.snap.Colors[idx]
}

// schedule restarts the debounce timer. Must be called with mu held.
func (e *Engine) schedule() {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, e.debouncedFlush)
}

func (e *Engine) debouncedFlush() {
	e.mu.Lock()
	e.timer = nil
	changes := e.takeBuffer()
	e.mu.Unlock()

	if len(changes) == 0 || e.sink == nil {
		return
	}
	if err := e.sink.FlushColors(context.Background(), e.wallet, changes); err != nil {
		e.logger.Error("failed to flush paint buffer",
			slog.String("wallet", e.wallet),
			slog.Int("changes", len(changes)),
			slog.String("error", err.Error()))
	}
}

// takeBuffer drains the paint buffer, keeping the last color per cell.
// Must be called with mu held.
func (e *Engine) takeBuffer() []grid.ColorChange {
	if len(e.buffer) == 0 {
		return nil
	}
	pos := make(map[grid.Coord]int, len(e.buffer))
	out := make([]grid.ColorChange, 0, len(e.buffer))
	for _, ch := range e.buffer {
		if i, ok := pos[ch.Coord()]; ok {
			out[i] = ch
			continue
		}
		pos[ch.Coord()] = len(out)
		out = append(out, ch)
	}
	e.buffer = nil
	return out
}
