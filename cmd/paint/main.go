// Package main paints a brush stroke onto a running pixelclaim server the way
// the web client does: it loads the grid snapshot, drives a brush engine along
// a line and sends the buffered changes to the paint endpoint.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/onnwee/pixelclaim/internal/api"
	"github.com/onnwee/pixelclaim/internal/brush"
	"github.com/onnwee/pixelclaim/internal/grid"
	"github.com/onnwee/pixelclaim/internal/middleware"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 2
	exitRemote  = 3
	exitRefused = 4
)

const requestTimeout = 15 * time.Second

type options struct {
	server string
	token  string
	wallet string
	color  string
	shape  string
	size   int
	from   string
	to     string
	place  string
}

func main() {
	var opts options
	help := flag.Bool("help", false, "display help message")
	flag.StringVar(&opts.server, "server", "http://localhost:8080", "pixelclaim server base URL")
	flag.StringVar(&opts.token, "token", os.Getenv("PIXELCLAIM_TOKEN"), "bearer token from POST /api/auth (default $PIXELCLAIM_TOKEN)")
	flag.StringVar(&opts.wallet, "wallet", "", "wallet the token was issued for")
	flag.StringVar(&opts.color, "color", "#000000", "paint color as #rrggbb")
	flag.StringVar(&opts.shape, "shape", "square", "brush shape: square or circle")
	flag.IntVar(&opts.size, "size", 1, "brush size in cells")
	flag.StringVar(&opts.from, "from", "", "stroke start as x,y")
	flag.StringVar(&opts.to, "to", "", "stroke end as x,y (default: same as -from)")
	flag.StringVar(&opts.place, "place", "", "also report the first owned WxH placement, e.g. 23x23")
	flag.Parse()

	if *help {
		fmt.Println("Pixelclaim brush client")
		fmt.Println()
		fmt.Println("Usage: paint -wallet WALLET -token JWT -from X,Y [-to X,Y] [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(exitOK)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logger := middleware.NewLogger("development")
	os.Exit(run(ctx, os.Stdout, &http.Client{Timeout: requestTimeout}, opts, logger))
}

func run(ctx context.Context, out io.Writer, client *http.Client, opts options, logger *slog.Logger) int {
	if opts.wallet == "" || opts.token == "" || opts.from == "" {
		fmt.Fprintln(out, "wallet, token and a stroke start are required")
		return exitUsage
	}
	if opts.to == "" {
		opts.to = opts.from
	}
	from, err := parsePoint(opts.from)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	to, err := parsePoint(opts.to)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	color, err := grid.ParseColor(opts.color)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	shape, err := brush.ParseShape(opts.shape)
	if err != nil {
		fmt.Fprintln(out, err)
		return exitUsage
	}
	var placeW, placeH int
	if opts.place != "" {
		if placeW, placeH, err = parseSize(opts.place); err != nil {
			fmt.Fprintln(out, err)
			return exitUsage
		}
	}

	c := &remote{client: client, server: strings.TrimRight(opts.server, "/"), token: opts.token}
	snap, err := c.snapshot(ctx)
	if err != nil {
		logger.Error("failed to load grid", "error", err)
		return exitRemote
	}

	engine := brush.NewEngine(snap, opts.wallet, c, brush.Options{Logger: logger})
	defer func() { _ = engine.Close(context.Background()) }()
	engine.SetTool(brush.ToolPaint)
	engine.SetBrush(shape, opts.size)
	engine.SetColor(color)

	stats, err := stroke(ctx, engine, line(from, to))
	switch {
	case errors.Is(err, brush.ErrNoPrincipal):
		fmt.Fprintf(out, "%s owns no cells\n", opts.wallet)
		return exitRefused
	case err != nil:
		logger.Error("paint failed", "error", err)
		return exitRemote
	}
	fmt.Fprintf(out, "painted %d cells (%d owned by others skipped)\n", stats.Changed, stats.BlockedOther)

	if placeW > 0 {
		if at, ok := engine.DefaultPlacement(placeW, placeH); ok {
			fmt.Fprintf(out, "first %dx%d placement at %s\n", placeW, placeH, at)
		} else {
			fmt.Fprintf(out, "no fully owned %dx%d area\n", placeW, placeH)
		}
	}
	return exitOK
}

// stroke drags the engine through points and flushes on release.
func stroke(ctx context.Context, e *brush.Engine, points []grid.Coord) (brush.StrokeStats, error) {
	if _, err := e.Begin(points[0]); err != nil {
		return brush.StrokeStats{}, err
	}
	for _, p := range points[1:] {
		e.Move(p)
	}
	return e.End(ctx)
}

// line returns the cells from a to b inclusive (Bresenham).
func line(a, b grid.Coord) []grid.Coord {
	dx, sx := abs(b.X-a.X), sign(b.X-a.X)
	dy, sy := -abs(b.Y-a.Y), sign(b.Y-a.Y)
	errAcc := dx + dy
	points := []grid.Coord{a}
	for p := a; p != b; {
		e2 := 2 * errAcc
		if e2 >= dy {
			errAcc += dy
			p.X += sx
		}
		if e2 <= dx {
			errAcc += dx
			p.Y += sy
		}
		points = append(points, p)
	}
	return points
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

func parsePoint(s string) (grid.Coord, error) {
	xs, ys, ok := strings.Cut(s, ",")
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	c := grid.Coord{X: x, Y: y}
	if !ok || errX != nil || errY != nil || !c.Valid() {
		return grid.Coord{}, fmt.Errorf("invalid point %q: want x,y inside the %dx%d grid", s, grid.Size, grid.Size)
	}
	return c, nil
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	w, errW := strconv.Atoi(ws)
	h, errH := strconv.Atoi(hs)
	if !ok || errW != nil || errH != nil || w <= 0 || h <= 0 || w > grid.Size || h > grid.Size {
		return 0, 0, fmt.Errorf("invalid size %q: want WxH", s)
	}
	return w, h, nil
}

// remote talks to the pixelclaim HTTP API. It is the engine's ColorSink.
type remote struct {
	client *http.Client
	server string
	token  string
}

func (r *remote) snapshot(ctx context.Context) (*grid.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.server+"/api/grid/snapshot", nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get snapshot: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	_, cells, err := grid.DecodeCells(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	state := grid.NewState()
	state.Load(cells)
	return state.Snapshot(), nil
}

// FlushColors sends changes in batches the server accepts.
func (r *remote) FlushColors(ctx context.Context, _ string, changes []grid.ColorChange) error {
	for start := 0; start < len(changes); start += api.MaxPixelsPerPaint {
		end := min(start+api.MaxPixelsPerPaint, len(changes))
		if err := r.paint(ctx, changes[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *remote) paint(ctx context.Context, changes []grid.ColorChange) error {
	body, err := json.Marshal(struct {
		Pixels []grid.ColorChange `json:"pixels"`
	}{changes})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.server+"/api/paint", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("paint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paint: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
