package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stagehand_ws_connected_clients",
		Help: "The number of connected clients.",
	})

	sentFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_ws_sent_frames_total",
		Help: "The number of state frames sent over WebSocket connections.",
	})

	sentBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_ws_sent_bytes_total",
		Help: "The number of state frame bytes sent over WebSocket connections.",
	})

	receivedMsgs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_ws_received_msgs_total",
		Help: "The number of messages received from WebSocket connections.",
	})
)
