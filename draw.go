package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/serroba/online-canvas/internal/canvas"
	"github.com/serroba/online-canvas/internal/config"
	"github.com/serroba/online-canvas/internal/discovery"
	"github.com/serroba/online-canvas/internal/geom"
	"github.com/serroba/online-canvas/internal/provider"
)

var (
	errNoRelay     = errors.New("no relay found on the local network")
	errTooFewPoint = errors.New("a gesture needs at least two points")
	errDrawTool    = errors.New("draw supports pen, rectangle, diamond and circle")
)

var (
	drawTool     string
	drawPoints   []string
	drawDiscover bool
)

var drawCmd = &cobra.Command{
	Use:   "draw",
	Short: "Join a canvas, draw one element and leave",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()
		cc := cfg.Client

		tool := canvas.Tool(drawTool)
		if !isDrawTool(tool) {
			return errDrawTool
		}

		points, err := parsePoints(drawPoints)
		if err != nil {
			return err
		}

		if drawDiscover {
			relays, err := discovery.Browse(ctx, discovery.BrowseConfig{Timeout: cfg.Discovery.Timeout, Logger: logger})
			if err != nil {
				return err
			}

			if len(relays) == 0 {
				return errNoRelay
			}

			cc.ServerURL = relays[0].BaseURL()
			logger.Info("using discovered relay", "instance", relays[0].Instance, "addr", relays[0].Addr)
		}

		session := newSession(cc, logger)

		if err := session.Open(ctx, cc.CanvasID); err != nil {
			return err
		}

		session.SetTool(tool)
		session.PointerDown(points[0])

		for _, p := range points[1:] {
			session.PointerMove(p)
		}

		session.PointerUp(points[len(points)-1])

		set := session.Elements()
		fmt.Fprintf(cmd.OutOrStdout(), "canvas %s: %d paths, %d shapes, %d texts\n",
			cc.CanvasID, len(set.Strokes), len(set.Shapes), len(set.Texts))

		return session.Close()
	},
}

func newSession(cc config.ClientConfig, logger *slog.Logger) *canvas.Session {
	return canvas.New(canvas.Config{
		ClientID:     cc.ClientID,
		Logger:       logger,
		HistoryDepth: cc.HistoryDepth,
		Color:        cc.Color,
		Width:        cc.Width,
		Connect: provider.Connector(provider.Config{
			URL:         cc.WebSocketURL(),
			MaxAttempts: cc.MaxAttempts,
			RetryDelay:  cc.RetryDelay,
			Logger:      logger,
		}),
		Seed: provider.NewSeedClient(provider.SeedConfig{BaseURL: cc.ServerURL, Logger: logger}),
	})
}

func isDrawTool(t canvas.Tool) bool {
	switch t {
	case canvas.ToolPen, canvas.ToolRectangle, canvas.ToolDiamond, canvas.ToolCircle:
		return true
	default:
		return false
	}
}

// parsePoints reads canvas points written as "x,y".
func parsePoints(raw []string) ([]geom.Point, error) {
	if len(raw) < 2 {
		return nil, errTooFewPoint
	}

	points := make([]geom.Point, 0, len(raw))

	for _, r := range raw {
		xs, ys, ok := strings.Cut(r, ",")
		if !ok {
			return nil, fmt.Errorf("point %q: want x,y", r)
		}

		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", r, err)
		}

		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("point %q: %w", r, err)
		}

		points = append(points, geom.Point{X: x, Y: y})
	}

	return points, nil
}

func init() {
	drawCmd.Flags().String("server", "http://localhost:8080", "Relay HTTP address")
	drawCmd.Flags().String("canvas", "default", "Canvas to join")
	drawCmd.Flags().String("client-id", "", "Peer id (random when empty)")
	drawCmd.Flags().String("color", "#000000", "Stroke color")
	drawCmd.Flags().Float64("width", 2, "Stroke width")
	drawCmd.Flags().StringVar(&drawTool, "tool", string(canvas.ToolPen), "pen, rectangle, diamond or circle")
	drawCmd.Flags().StringSliceVar(&drawPoints, "points", []string{"0,0", "50,50", "100,100"},
		"Canvas points of the gesture, as x,y")
	drawCmd.Flags().BoolVar(&drawDiscover, "discover", false, "Use the first relay found over mDNS")

	bindFlag(settings, drawCmd, "client.server_url", "server")
	bindFlag(settings, drawCmd, "client.canvas_id", "canvas")
	bindFlag(settings, drawCmd, "client.client_id", "client-id")
	bindFlag(settings, drawCmd, "client.color", "color")
	bindFlag(settings, drawCmd, "client.width", "width")

	rootCmd.AddCommand(drawCmd)
}
