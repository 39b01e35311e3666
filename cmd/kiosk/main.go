// Command kiosk is a terminal driver for the sketchbook client core. It wires
// the drawing surface, the turn controller, and the HTTP relay together the
// same way the tablet frontend does, which makes it useful for exercising a
// running backend end to end.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magicsketchbook/server/adapters/stt"
	"github.com/magicsketchbook/server/internal/config"
	"github.com/magicsketchbook/server/relay"
	"github.com/magicsketchbook/server/sketch"
	"github.com/magicsketchbook/server/turn"
)

// view is the active screen of the kiosk. The sketch only accompanies a turn
// while the child is drawing or showing a photo; once the chat view is up the
// conversation stands on its own.
type view string

const (
	viewDraw   view = "draw"
	viewCamera view = "camera"
	viewChat   view = "chat"
)

type kiosk struct {
	surface *sketch.Surface
	ctrl    *turn.Controller
	logger  *zap.Logger

	view  view
	photo []byte
}

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg := config.Load(logger)
	sessionID := uuid.NewString()

	surface, err := sketch.NewSurface(1024, 768)
	if err != nil {
		logger.Fatal("Failed to create surface", zap.Error(err))
	}

	k := &kiosk{
		surface: surface,
		logger:  logger,
		view:    viewDraw,
	}

	backend := relay.New(cfg.BackendBaseURL, logger)
	k.ctrl = turn.NewController(
		turn.Config{
			SessionID:      sessionID,
			Language:       cfg.Language,
			SilenceTimeout: cfg.SilenceTimeout,
		},
		backend,
		stt.NewMockRecognizer(logger),
		logger,
	)
	k.ctrl.Visual = k.visual
	k.ctrl.OnEvent = k.onEvent

	fmt.Printf("session %s, backend %s\n", sessionID, cfg.BackendBaseURL)
	fmt.Println(`commands: stroke x1,y1 x2,y2 ...  undo  clear  resize WxH  save FILE
          view draw|camera|chat  photo FILE  say TEXT  listen  stop  magic  quit`)

	k.repl()
}

// visual supplies the turn controller's visual context for the current view.
func (k *kiosk) visual() ([]byte, bool) {
	if k.view == viewChat {
		return nil, false
	}
	if k.view == viewCamera {
		return k.photo, k.photo != nil
	}
	data, err := k.surface.Export()
	if err != nil {
		k.logger.Warn("Sketch export failed", zap.Error(err))
		return nil, false
	}
	return data, true
}

func (k *kiosk) onEvent(e turn.Event) {
	switch e.Type {
	case turn.EventTranscript:
		fmt.Printf("\r… %s", e.Text)
	case turn.EventUserTurn:
		fmt.Printf("\nyou: %s\n", e.Text)
	case turn.EventAgentReply:
		fmt.Printf("agent: %s\n", e.Text)
	case turn.EventResultImage:
		fmt.Printf("image ready (%d bytes of data URL); /result to save\n", len(e.Text))
	case turn.EventNotice:
		fmt.Printf("notice: %s\n", e.Text)
	case turn.EventState:
		// Quiet; state shows through the prompts above.
	}
}

func (k *kiosk) repl() {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%s]> ", k.view)
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")
		if !k.dispatch(cmd, strings.TrimSpace(rest)) {
			return
		}
	}
}

// dispatch runs one command; returning false exits the loop.
func (k *kiosk) dispatch(cmd, rest string) bool {
	ctx := context.Background()

	switch cmd {
	case "quit", "exit":
		return false

	case "stroke":
		k.stroke(rest)

	case "undo":
		k.surface.Undo()
		fmt.Printf("history depth %d\n", k.surface.HistoryLen())

	case "clear":
		k.surface.Clear()

	case "resize":
		w, h, ok := parseSize(rest)
		if !ok {
			fmt.Println("usage: resize WxH")
			return true
		}
		if err := k.surface.Resize(w, h); err != nil {
			fmt.Println("resize:", err)
		}

	case "save":
		if rest == "" {
			fmt.Println("usage: save FILE")
			return true
		}
		data, err := k.surface.Export()
		if err == nil {
			err = os.WriteFile(rest, data, 0o644)
		}
		if err != nil {
			fmt.Println("save:", err)
		}

	case "view":
		switch view(rest) {
		case viewDraw, viewCamera, viewChat:
			k.view = view(rest)
		default:
			fmt.Println("usage: view draw|camera|chat")
		}

	case "photo":
		data, err := os.ReadFile(rest)
		if err != nil {
			fmt.Println("photo:", err)
			return true
		}
		k.photo = data
		k.view = viewCamera

	case "say":
		if rest == "" {
			fmt.Println("usage: say TEXT")
			return true
		}
		if err := k.ctrl.SendTurn(ctx, rest); err != nil {
			fmt.Println("say:", err)
		}

	case "listen":
		if err := k.ctrl.StartListening(ctx); err != nil {
			fmt.Println("listen:", err)
			return true
		}
		// The mock recognizer fabricates a transcript from volume alone.
		k.ctrl.WriteAudio(make([]byte, 30000))

	case "stop":
		k.ctrl.StopListening(ctx)

	case "magic":
		if err := k.ctrl.TriggerGeneration(ctx); err != nil {
			fmt.Println("magic:", err)
		}

	case "result":
		k.saveResult(rest)

	case "history":
		for _, entry := range k.ctrl.History() {
			fmt.Printf("%s: %s\n", entry.Role, entry.Text)
		}

	default:
		fmt.Println("unknown command:", cmd)
	}
	return true
}

// stroke draws one polyline from space-separated x,y pairs.
func (k *kiosk) stroke(rest string) {
	points := strings.Fields(rest)
	if len(points) == 0 {
		fmt.Println("usage: stroke x1,y1 x2,y2 ...")
		return
	}
	for i, raw := range points {
		p, ok := parsePoint(raw)
		if !ok {
			fmt.Println("bad point:", raw)
			return
		}
		if i == 0 {
			k.surface.BeginStroke(p)
		} else {
			k.surface.ExtendStroke(p)
		}
	}
	k.surface.EndStroke()
}

func (k *kiosk) saveResult(path string) {
	dataURL := k.ctrl.ResultImage()
	if dataURL == "" {
		fmt.Println("no generated image yet")
		return
	}
	if path == "" {
		path = "result.txt"
	}
	if err := os.WriteFile(path, []byte(dataURL), 0o644); err != nil {
		fmt.Println("result:", err)
	}
}

func parsePoint(raw string) (sketch.Point, bool) {
	xs, ys, ok := strings.Cut(raw, ",")
	if !ok {
		return sketch.Point{}, false
	}
	x, err1 := strconv.ParseFloat(xs, 64)
	y, err2 := strconv.ParseFloat(ys, 64)
	if err1 != nil || err2 != nil {
		return sketch.Point{}, false
	}
	return sketch.Point{X: x, Y: y}, true
}

func parseSize(raw string) (int, int, bool) {
	ws, hs, ok := strings.Cut(raw, "x")
	if !ok {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(ws)
	h, err2 := strconv.Atoi(hs)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
