// Package websocket streams the simulated world's state to connected
// clients and feeds their drive commands back into the simulation.
package websocket

import (
	"context"
	"io"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/robosim/stagehand/geom"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const defaultFrameDuration = 100 * time.Millisecond

// ModelState is the per-model slice of a state frame.
type ModelState struct {
	ID    int       `json:"id"`
	Name  string    `json:"name"`
	Pose  geom.Pose `json:"pose"`
	Stall bool      `json:"stall"`
	Color uint32    `json:"color"`
}

// StateFrame is one world snapshot pushed to every connected client.
type StateFrame struct {
	RunID   string       `json:"run_id"`
	SimTime string       `json:"sim_time"`
	Updates uint64       `json:"updates"`
	Models  []ModelState `json:"models"`
}

// DriveCommand is the only inbound message: a velocity request for one
// model, given in its body frame.
type DriveCommand struct {
	ModelID  int           `json:"model_id"`
	Velocity geom.Velocity `json:"velocity"`
}

// RealtimeHandler manages one client connection: it pushes state frames at
// the configured rate and applies inbound drive commands. Snapshot and
// Drive are called from this handler's goroutines; they must synchronize
// with the simulation loop themselves.
type RealtimeHandler struct {
	// FrameDuration is the time between two pushed state frames. Zero
	// selects 100ms.
	FrameDuration time.Duration

	// Snapshot captures the current world state.
	Snapshot func() StateFrame

	// Drive applies a client drive command to the world.
	Drive func(DriveCommand) error

	clientID string
}

// Handle runs the connection until ctx is canceled, the client
// disconnects, or a frame cannot be sent.
func (h *RealtimeHandler) Handle(ctx context.Context, conn *websocket.Conn) {
	h.clientID = uuid.NewString()

	connectedClients.Inc()
	defer connectedClients.Dec()

	logs.WithTag("client_id", h.clientID).Info("client connected")
	defer logs.WithTag("client_id", h.clientID).Info("client disconnected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go h.readCommands(ctx, cancel, conn)

	frameDuration := h.FrameDuration
	if frameDuration <= 0 {
		frameDuration = defaultFrameDuration
	}

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := h.sendFrame(conn); err != nil {
				logs.WithTag("client_id", h.clientID).
					Warn(errors.New("sending state frame failed").Wrap(err))
				return
			}
		}
	}
}

func (h *RealtimeHandler) sendFrame(conn *websocket.Conn) error {
	frame := h.Snapshot()

	body, err := json.Marshal(frame)
	if err != nil {
		return errors.New("encoding state frame failed").Wrap(err)
	}

	if err := websocket.Message.Send(conn, string(body)); err != nil {
		return err
	}

	sentFrames.Inc()
	sentBytes.Add(float64(len(body)))
	return nil
}

func (h *RealtimeHandler) readCommands(ctx context.Context, cancel func(), conn *websocket.Conn) {
	defer cancel()

	for {
		var body string
		if err := websocket.Message.Receive(conn, &body); err != nil {
			if err != io.EOF && ctx.Err() == nil {
				logs.WithTag("client_id", h.clientID).
					Warn(errors.New("receiving command failed").Wrap(err))
			}
			return
		}

		receivedMsgs.Inc()

		cmd, err := decodeDriveCommand([]byte(body))
		if err != nil {
			logs.WithTag("client_id", h.clientID).Warn(err)
			continue
		}

		if err := h.Drive(cmd); err != nil {
			logs.WithTag("client_id", h.clientID).
				WithTag("model_id", cmd.ModelID).
				Warn(errors.New("applying drive command failed").Wrap(err))
		}
	}
}

func decodeDriveCommand(body []byte) (DriveCommand, error) {
	var cmd DriveCommand
	if err := json.Unmarshal(body, &cmd); err != nil {
		return DriveCommand{}, errors.New("decoding drive command failed").Wrap(err)
	}
	if cmd.ModelID == 0 {
		return DriveCommand{}, errors.New("drive command has no model id")
	}
	return cmd, nil
}
