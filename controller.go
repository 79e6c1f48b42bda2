package sbhsd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/CruiseDevice/sbhsd/sbhs"
	"github.com/mdouchement/logger"
)

type Controller struct {
	boards    Boards
	shaper    Shaper
	publisher Publisher
	events    chan event
	done      chan struct{}
	listeners []net.Listener
	socket    string
	ticker    *time.Ticker
	settings  map[sbhs.USB]BoardSetting
	regulator *regulator
}

func New(cfg Config, boards Boards, shaper Shaper, publisher Publisher) (*Controller, error) {
	c := newController(cfg.Boards(), boards, shaper, publisher)
	c.ticker = time.NewTicker(cfg.Monitor.Interval.Duration)

	if cfg.Socket != "" {
		err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755)
		if err != nil {
			return nil, fmt.Errorf("socket: %w", err)
		}

		if _, err := os.Stat(cfg.Socket); err == nil {
			fmt.Printf("Removing existing %s\n", cfg.Socket)
			os.Remove(cfg.Socket)
		}

		l, err := net.Listen("unix", cfg.Socket)
		if err != nil {
			return nil, fmt.Errorf("socket: %w", err)
		}
		c.socket = cfg.Socket
		c.listeners = append(c.listeners, l)
	}

	if cfg.Listen != "" {
		l, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			c.close()
			return nil, fmt.Errorf("listen: %w", err)
		}
		c.listeners = append(c.listeners, l)
	}

	if len(c.listeners) == 0 {
		return nil, errors.New("neither socket nor listen address configured")
	}

	return c, nil
}

func newController(settings map[sbhs.USB]BoardSetting, boards Boards, shaper Shaper, publisher Publisher) *Controller {
	return &Controller{
		boards:    boards,
		shaper:    shaper,
		publisher: publisher,
		events:    make(chan event, 10),
		done:      make(chan struct{}),
		settings:  settings,
		regulator: newRegulator(settings),
	}
}

func (c *Controller) Launch(ctx context.Context) {
	log := logger.LogWith(ctx)

	go c.eventLoop(ctx)

	router := c.Router(log)
	for _, listener := range c.listeners {
		go func() {
			for {
				log.Info("Starting HTTP server on", listener.Addr().String())
				err := http.Serve(listener, router)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					log.WithError(err).Error("Could not serve HTTP")
				}
				time.Sleep(2 * time.Second)
			}
		}()
	}

	readingsCh := make(chan []Reading, 1)
	go c.gatherTemperatures(ctx, log, readingsCh)
	go c.regulate(log, readingsCh)

	go func() {
		<-ctx.Done()
		c.ticker.Stop()
		c.close()
		if c.publisher != nil {
			c.publisher.Close()
		}
	}()
}

func (c *Controller) close() {
	for _, l := range c.listeners {
		if err := l.Close(); err != nil {
			fmt.Printf("Could not close listener %s: %s\n", l.Addr(), err)
		}
	}

	if c.socket != "" {
		if err := os.Remove(c.socket); err != nil && !errors.Is(err, os.ErrNotExist) {
			// listener.Close() should remove the socket but ceinture et bretelles!
			fmt.Printf("Could not remove socket %s: %s\n", c.socket, err)
		}
	}
}

// emit gives up once the event loop is stopped.
func (c *Controller) emit(e event) {
	select {
	case c.events <- e:
	case <-c.done:
	}
}

func (c *Controller) eventLoop(ctx context.Context) {
	log := logger.LogWith(ctx)
	active := map[sbhs.USB]Reading{}
	watchers := map[int64]chan<- []byte{}

	refresh := func() {
		readings := make([]Reading, 0, len(active))
		for _, usb := range slices.Sorted(maps.Keys(active)) {
			readings = append(readings, active[usb])
		}

		payload, err := json.Marshal(readings)
		if err != nil {
			log.WithError(err).Error("Could not serialize readings") // Should never happen
			return
		}

		for id, watcher := range watchers {
			select {
			case watcher <- payload:
			default:
				log.Warnf("Monitor %d is too slow, dropping readings", id)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			close(c.done)
			for _, watcher := range watchers {
				close(watcher)
			}
			return
		case e := <-c.events:
			switch e.name {
			case eventUpdateReading:
				r := e.reading
				if prev, ok := active[r.USB]; ok {
					r.Fan, r.Heat = prev.Fan, prev.Heat
				}
				active[r.USB] = r
			case eventUpdateSetpoint:
				r, ok := active[e.usb]
				if !ok {
					setting, monitored := c.settings[e.usb]
					if !monitored {
						continue
					}
					r = Reading{USB: e.usb, Label: setting.Label}
				}
				if e.fan != nil {
					r.Fan = e.fan
				}
				if e.heat != nil {
					r.Heat = e.heat
				}
				active[e.usb] = r
				refresh()
			case eventRefreshWatchers:
				refresh()
			case eventWatch:
				watchers[e.monitorID] = e.monitor
				refresh()
			case eventUnwatch:
				if watcher, ok := watchers[e.monitorID]; ok {
					close(watcher)
					delete(watchers, e.monitorID)
				}
			}
		}
	}
}

func (c *Controller) gatherTemperatures(ctx context.Context, log logger.Logger, ch chan<- []Reading) {
	defer close(ch)

	usbs := slices.Sorted(maps.Keys(c.settings))
	if len(usbs) == 0 {
		log.Info("No board_settings, temperature monitoring disabled")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ticker.C:
		}

		readings := make([]Reading, 0, len(usbs))
		for _, usb := range usbs {
			r := Reading{
				USB:         usb,
				Label:       c.settings[usb].Label,
				Temperature: c.boards.Temperature(usb),
				ReadAt:      time.Now(),
			}
			log.Debugf("%s(%s): %.1f°C", usb, r.Label, r.Temperature)

			readings = append(readings, r)
		}

		ch <- readings
	}
}

func (c *Controller) regulate(log logger.Logger, ch <-chan []Reading) {
	for readings := range ch {
		for _, r := range readings {
			c.emit(event{name: eventUpdateReading, reading: r})

			if c.publisher == nil {
				continue
			}
			if err := c.publisher.Publish(r); err != nil {
				log.WithError(err).Warnf("Could not publish reading of %s", r.USB)
			}
		}

		evals := c.shaper.Eval(readings)
		for _, usb := range slices.Sorted(maps.Keys(evals)) {
			eval := evals[usb]
			if !c.regulator.due(eval) {
				continue
			}

			log.Infof("Set fan %d%% for %s(%s) at %.1f°C", eval.Fan, usb, eval.Label, eval.Temperature)
			if err := c.boards.SetFan(usb, eval.Fan); err != nil {
				log.WithError(err).Errorf("Could not set fan for %s", usb)
				continue
			}

			c.regulator.applied[usb] = eval.Fan
			c.emit(event{name: eventUpdateSetpoint, usb: usb, fan: ToPtr(eval.Fan)})
		}

		c.emit(event{name: eventRefreshWatchers})
	}
}

// A regulator delays fan changes according to the fan_step_up/fan_step_down settings.
type regulator struct {
	settings map[sbhs.USB]BoardSetting
	applied  map[sbhs.USB]int
	pending  map[sbhs.USB]Evaluation
}

func newRegulator(settings map[sbhs.USB]BoardSetting) *regulator {
	return &regulator{
		settings: settings,
		applied:  make(map[sbhs.USB]int),
		pending:  make(map[sbhs.USB]Evaluation),
	}
}

// due reports whether eval must be applied now.
func (r *regulator) due(eval Evaluation) bool {
	fan, ok := r.applied[eval.USB]
	if !ok {
		// Nothing known about the board state yet.
		return true
	}

	if eval.Fan == fan {
		// No change, just reset everything.
		delete(r.pending, eval.USB)
		return false
	}

	d := r.settings[eval.USB].FanStepUp.Duration
	if eval.Fan < fan {
		d = r.settings[eval.USB].FanStepDown.Duration
	}

	if d <= 0 {
		return true
	}

	p, ok := r.pending[eval.USB]
	if !ok {
		// First change, store for later.
		r.pending[eval.USB] = eval
		return false
	}

	if eval.EvaluedAt.Sub(p.EvaluedAt) < d {
		// Still awaiting the specified delay.
		return false
	}

	delete(r.pending, eval.USB)
	return true
}
