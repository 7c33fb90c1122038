package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robosim/stagehand/featureflag"
	"github.com/robosim/stagehand/geom"
	stagehandhttp "github.com/robosim/stagehand/http"
	"github.com/robosim/stagehand/sensors"
	"github.com/robosim/stagehand/sim"
	"github.com/robosim/stagehand/smoketest"
	"github.com/robosim/stagehand/trace"
	stagehandws "github.com/robosim/stagehand/websocket"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Stagehand version number. Set at build.
	version = "v0.3.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "stagehand_info",
		Help:        "Stagehand information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without
// it, the keys would get obfuscated causing the cli package to generate
// garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr          string        `cli:""        env:"STAGEHAND_ADDR"           help:"Listening address for client connections."`
	AdminAddr     string        `cli:""        env:"STAGEHAND_ADMIN_ADDR"     help:"Admin listening address."`
	LogLevel      string        `cli:""        env:"STAGEHAND_LOG_LEVEL"      help:"Log level (debug|info|warning|error)."`
	LogIndent     bool          `cli:""        env:"STAGEHAND_LOG_INDENT"     help:"Indent logs."`
	WorldName     string        `cli:""        env:"STAGEHAND_WORLD_NAME"     help:"The simulated world's name."`
	FrameDuration time.Duration `cli:",hidden" env:"STAGEHAND_FRAME_DURATION" help:"The simulated time per world tick."`
	Resolution    float64       `cli:",hidden" env:"STAGEHAND_RESOLUTION"     help:"The occupancy grid cell size in meters."`
	ArenaSize     float64       `cli:""        env:"STAGEHAND_ARENA_SIZE"     help:"The demo arena's side length in meters."`
	RobotCount    int           `cli:""        env:"STAGEHAND_ROBOT_COUNT"    help:"The number of demo robots."`
	TraceDir      string        `cli:""        env:"STAGEHAND_TRACE_DIR"      help:"Directory for pose trace files. Empty disables tracing."`
	Events        eventsConfig  `cli:",hidden" env:"-"                        help:"Event pusher configuration."`
	FeatureFlags  []string      `cli:",hidden" env:"STAGEHAND_FEATURE_FLAGS"  help:"Comma separated feature flags."`
	SmokeTest     bool          `cli:""        env:"-"                        help:"Run the smoke test scenario and exit."`
	Version       bool          `cli:""        env:"-"                        help:"Show version."`
	Help          bool          `cli:""        env:"-"                        help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"STAGEHAND_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"STAGEHAND_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"STAGEHAND_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"STAGEHAND_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:          ":4000",
		AdminAddr:     ":18190",
		LogLevel:      logs.InfoLevel.String(),
		WorldName:     "arena",
		FrameDuration: time.Millisecond * 100,
		Resolution:    0.05,
		ArenaSize:     16,
		RobotCount:    4,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts the Stagehand multi-robot simulator.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "stagehand",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	if conf.SmokeTest {
		if _, err := smoketest.Run(ctx, smoketest.Options{}); err != nil {
			logs.Fatal(errors.New("smoke test failed").Wrap(err))
		}
		os.Exit(0)
	}

	flags := featureflag.New(conf.FeatureFlags)

	var mu sync.Mutex
	world, err := buildArena(conf, flags)
	if err != nil {
		logs.Fatal(errors.New("building arena failed").Wrap(err))
	}

	var traceWriter *trace.Writer
	if conf.TraceDir != "" && !flags.IsSet(featureflag.FlagDisableTrace) {
		traceWriter, err = trace.NewWriter(conf.TraceDir, world.RunID())
		if err != nil {
			logs.Fatal(errors.New("creating trace writer failed").Wrap(err))
		}
		defer traceWriter.Close()

		logs.WithTag("path", traceWriter.Path()).Info("tracing poses")
	}

	world.Start()

	running := make(chan struct{})
	go runWorld(ctx, &mu, world, traceWriter, conf.FrameDuration, running)

	var service http.ServeMux
	service.Handle("/health", stagehandhttp.HandleWithCORS(http.HandlerFunc(stagehandhttp.HandleHealthCheck)))
	service.Handle("/version", stagehandhttp.HandleWithCORS(stagehandhttp.HandleVersion(version)))

	readinessCheck := func() bool {
		select {
		case <-running:
			return true
		default:
			return false
		}
	}
	service.Handle("/ready", stagehandhttp.HandleWithCORS(stagehandhttp.HandleReadyCheck(readinessCheck)))

	service.Handle("/status", stagehandhttp.HandleWithCORS(stagehandhttp.HandleWorldStatus(func() stagehandhttp.WorldStatus {
		mu.Lock()
		defer mu.Unlock()

		return stagehandhttp.WorldStatus{
			Name:          world.Name(),
			RunID:         world.RunID(),
			SimTime:       world.SimTime().String(),
			Updates:       world.Updates(),
			Models:        len(world.Models()),
			Subscriptions: world.TotalSubscriptions(),
		}
	})))

	flags.IfNotSet(featureflag.FlagDisableRealtimeFeed, func() {
		service.Handle("/", websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				h := stagehandws.RealtimeHandler{
					FrameDuration: conf.FrameDuration,
					Snapshot: func() stagehandws.StateFrame {
						mu.Lock()
						defer mu.Unlock()
						return snapshotWorld(world)
					},
					Drive: func(cmd stagehandws.DriveCommand) error {
						mu.Lock()
						defer mu.Unlock()

						m := world.ModelByID(cmd.ModelID)
						if m == nil {
							return errors.New("model not found").
								WithTag("model_id", cmd.ModelID)
						}
						m.SetVelocity(cmd.Velocity)
						return nil
					},
				}
				h.Handle(ctx, conn)
			},
		})
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", stagehandhttp.HandleHealthCheck)
	admin.HandleFunc("/ready", stagehandhttp.HandleReadyCheck(readinessCheck))
	admin.HandleFunc("/smoke-test", handleSmokeTest(ctx))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("world", world.Name()).
		WithTag("run_id", world.RunID()).
		WithTag("robots", conf.RobotCount).
		Info("starting stagehand server")

	stagehandhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			stagehandhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// handleSmokeTest runs the smoke test scenario on demand and reports its
// results. The scenario runs on its own world and never touches the live
// simulation.
func handleSmokeTest(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := smoketest.Run(ctx, smoketest.Options{})
		if err != nil {
			logs.Warn(errors.New("smoke test failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		body, err := json.Marshal(res)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}

// runWorld drives the simulation at the configured frame rate until ctx is
// canceled. running is closed once the first tick completed.
func runWorld(ctx context.Context, mu *sync.Mutex, world *sim.World, traceWriter *trace.Writer, frameDuration time.Duration, running chan struct{}) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	first := true
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			mu.Lock()
			world.Update()
			if traceWriter != nil {
				writeTrace(world, traceWriter)
			}
			mu.Unlock()

			if first {
				close(running)
				first = false
			}
		}
	}
}

func writeTrace(world *sim.World, w *trace.Writer) {
	simTime := world.SimTime().String()
	for _, m := range world.Children() {
		err := w.Write(trace.Record{
			SimTime: simTime,
			Updates: world.Updates(),
			ModelID: m.ID(),
			Name:    m.Name(),
			Pose:    m.Pose(),
			Stall:   m.Stall(),
		})
		if err != nil {
			logs.WithTag("model", m.Name()).
				Warn(errors.New("writing trace record failed").Wrap(err))
		}
	}
}

func snapshotWorld(world *sim.World) stagehandws.StateFrame {
	models := world.Children()
	frame := stagehandws.StateFrame{
		RunID:   world.RunID(),
		SimTime: world.SimTime().String(),
		Updates: world.Updates(),
		Models:  make([]stagehandws.ModelState, len(models)),
	}

	for i, m := range models {
		frame.Models[i] = stagehandws.ModelState{
			ID:    m.ID(),
			Name:  m.Name(),
			Pose:  m.Pose(),
			Stall: m.Stall(),
			Color: uint32(m.Color()),
		}
	}
	return frame
}

// buildArena creates the demo world: four boundary walls and a set of
// wandering robots, each carrying a scanning laser on a child model.
func buildArena(conf config, flags featureflag.FeatureFlag) (*sim.World, error) {
	world := sim.NewWorld(conf.WorldName, conf.Resolution, conf.FrameDuration)

	half := conf.ArenaSize / 2
	wallThickness := 0.2

	walls := []struct {
		name string
		pose geom.Pose
		size geom.Size
	}{
		{"wall-north", geom.Pose{Y: half}, geom.Size{X: conf.ArenaSize, Y: wallThickness, Z: 1}},
		{"wall-south", geom.Pose{Y: -half}, geom.Size{X: conf.ArenaSize, Y: wallThickness, Z: 1}},
		{"wall-east", geom.Pose{X: half}, geom.Size{X: wallThickness, Y: conf.ArenaSize, Z: 1}},
		{"wall-west", geom.Pose{X: -half}, geom.Size{X: wallThickness, Y: conf.ArenaSize, Z: 1}},
	}
	for _, wd := range walls {
		wall := world.NewModel(nil, wd.name)
		wall.SetGeometry(sim.Geometry{Size: wd.size})
		wall.SetPose(wd.pose)
	}

	bounds := geom.Rect{
		MinX: -half + 1,
		MinY: -half + 1,
		MaxX: half - 1,
		MaxY: half - 1,
	}

	for i := 0; i < conf.RobotCount; i++ {
		robot := world.NewModel(nil, fmt.Sprintf("robot-%d", i))
		robot.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.4, Y: 0.4, Z: 0.3}})
		robot.SetColor(sim.Color(0xFF000000 | uint32(rand.Int31())))
		robot.SetBehavior(&wanderBehavior{speed: 0.4})

		flags.IfNotSet(featureflag.FlagDisableSensors, func() {
			laser := world.NewModel(robot, fmt.Sprintf("robot-%d-laser", i))
			laser.SetGeometry(sim.Geometry{Size: geom.Size{X: 0.1, Y: 0.1, Z: 0.1}})
			laser.SetObstacleReturn(false)
			laser.SetBehavior(&sensors.Laser{})
		})

		if flags.IsSet(featureflag.FlagDisableRandomPlacement) {
			robot.SetPose(geom.Pose{X: float64(i) - float64(conf.RobotCount)/2})
			continue
		}

		robot.SetPose(geom.Pose{})
		if err := robot.PlaceInFreeSpace(bounds, 0); err != nil {
			return nil, err
		}
	}

	return world, nil
}

// wanderBehavior drives a robot forward and turns it away from whatever it
// bumped into.
type wanderBehavior struct {
	speed float64
}

func (b *wanderBehavior) Setup(m *sim.Model) {
	m.SetVelocity(geom.Velocity{X: b.speed})
}

func (b *wanderBehavior) Update(m *sim.Model) {
	if !m.Stall() {
		return
	}

	m.AddToPose(0, 0, 0, (rand.Float64()-0.5)*2)
	m.SetVelocity(geom.Velocity{X: b.speed})
}

func (b *wanderBehavior) Shutdown(m *sim.Model) {
	m.SetVelocity(geom.Velocity{})
}
