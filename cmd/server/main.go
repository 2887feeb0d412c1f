package main

import (
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/KernelFreeze/photondb/pagestore"
	"github.com/KernelFreeze/photondb/simulator"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// ClientMessage is a command from the browser client.
type ClientMessage struct {
	Type   string               `json:"type"`
	Config *simulator.SimConfig `json:"config,omitempty"`
}

// ServerMessage is an update pushed to the browser client.
type ServerMessage struct {
	Type     string                 `json:"type"`
	Running  *bool                  `json:"running,omitempty"`
	Config   *simulator.SimConfig   `json:"config,omitempty"`
	Stats    *pagestore.StoreStats  `json:"stats,omitempty"`
	Interval *pagestore.StoreStats  `json:"interval,omitempty"`
	Display  string                 `json:"display,omitempty"`
	State    map[string]interface{} `json:"state,omitempty"`
}

// simState manages the simulation state and UI pacing.
type simState struct {
	sim     *simulator.Simulator
	running bool
	paused  bool
	mu      sync.Mutex
	stopCh  chan struct{}
}

func newSimState(config simulator.SimConfig) (*simState, error) {
	sim, err := simulator.NewSimulator(config)
	if err != nil {
		return nil, err
	}
	return &simState{sim: sim, stopCh: make(chan struct{})}, nil
}

func (s *simState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.paused = false
}

func (s *simState) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

func (s *simState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim.Reset()
	s.running = false
	s.paused = false
}

// updateConfig swaps in a simulator with the new configuration.
func (s *simState) updateConfig(config simulator.SimConfig) error {
	sim, err := simulator.NewSimulator(config)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim = sim
	s.running = false
	s.paused = false
	return nil
}

func (s *simState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && !s.paused
}

func (s *simState) getConfig() simulator.SimConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sim.Config()
}

// tick advances the simulation by one epoch and returns the fresh stats,
// interval and state for publishing.
func (s *simState) tick() (pagestore.StoreStats, pagestore.StoreStats, map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sim.Step()
	return s.sim.Stats(), s.sim.IntervalStats(), s.sim.State()
}

func (s *simState) stop() {
	close(s.stopCh)
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent writes.
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// uiUpdateLoop steps the simulation and pushes updates to the client. It
// runs in its own goroutine and controls UI pacing.
func uiUpdateLoop(log *zap.SugaredLogger, conn *safeConn, state *simState) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-state.stopCh:
			log.Info("UI update loop stopping")
			return

		case <-ticker.C:
			if !state.isRunning() {
				continue
			}
			stats, interval, storeState := state.tick()
			updatePrometheusMetrics(stats, storeState)

			msg := ServerMessage{
				Type:     "update",
				Stats:    &stats,
				Interval: &interval,
				Display:  stats.String(),
				State:    storeState,
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Errorw("error sending update", "err", err)
				return
			}
		}
	}
}

func handleWebSocket(log *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Errorw("error upgrading connection", "err", err)
			return
		}
		defer conn.Close()

		safeConn := &safeConn{Conn: conn}
		log.Info("client connected")

		config := simulator.DefaultConfig()
		state, err := newSimState(config)
		if err != nil {
			log.Errorw("error creating simulator", "err", err)
			return
		}
		state.sim.LogEvent = func(msg string) {
			log.Debugw("simulator", "event", msg)
		}

		running := false
		statusMsg := ServerMessage{Type: "status", Running: &running, Config: &config}
		if err := safeConn.WriteJSON(statusMsg); err != nil {
			log.Errorw("error sending status", "err", err)
			return
		}

		go uiUpdateLoop(log, safeConn, state)

		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Errorw("error reading message", "err", err)
				}
				break
			}

			log.Infow("received command", "type", msg.Type)

			switch msg.Type {
			case "start":
				state.start()
			case "pause":
				state.pause()
			case "reset":
				state.reset()
			case "config_update":
				if msg.Config != nil {
					if err := state.updateConfig(*msg.Config); err != nil {
						log.Errorw("error updating config", "err", err)
					}
				}
			}

			running := state.isRunning()
			cfg := state.getConfig()
			statusMsg := ServerMessage{Type: "status", Running: &running, Config: &cfg}
			safeConn.WriteJSON(statusMsg)
		}

		state.stop()
		log.Info("client disconnected")
	}
}

func run(c *cli.Context) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	initPrometheusMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handleWebSocket(log))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := c.String("addr")
	log.Infow("server starting", "addr", addr, "ws", "/ws", "metrics", "/metrics")
	return http.ListenAndServe(addr, mux)
}

func main() {
	app := &cli.App{
		Name:  "photondb-server",
		Usage: "Live view of the page store reclaim simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":8080",
				Usage: "HTTP listen address",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}
