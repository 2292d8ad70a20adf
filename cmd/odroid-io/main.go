// Command odroid-io watches ODROID-C2 header pins and I2C devices and
// publishes their changes to MQTT and a websocket status page.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/odroid-io/internal/analog"
	"github.com/sweeney/odroid-io/internal/board"
	"github.com/sweeney/odroid-io/internal/gpio"
	"github.com/sweeney/odroid-io/internal/mqtt"
	"github.com/sweeney/odroid-io/internal/pins"
	"github.com/sweeney/odroid-io/internal/status"
	"github.com/sweeney/odroid-io/internal/web"
)

// expectedHardware is the /proc/cpuinfo Hardware value of a C2.
const expectedHardware = "ODROID-C2"

type config struct {
	samplingMs int
	i2cBus     int
	gpioChip   string
	gpioBase   int
	analogRoot string
	digital    []string
	analog     []string
	i2cReads   []i2cWatch
	led        string
	broker     string
	httpAddr   string
	printState bool
}

func main() {
	var cfg config
	flag.IntVar(&cfg.samplingMs, "sampling-interval", board.DefaultSamplingInterval, "Report sampling interval in milliseconds (0-65535)")
	flag.IntVar(&cfg.i2cBus, "i2c-bus", board.DefaultI2CBus, "Default I2C bus number")
	flag.StringVar(&cfg.gpioChip, "gpio-chip", gpio.DefaultChip, "GPIO character device")
	flag.IntVar(&cfg.gpioBase, "gpio-base", gpio.DefaultBase, "sysfs number of the chip's first line")
	flag.StringVar(&cfg.analogRoot, "analog-root", analog.DefaultRoot, "SAR-ADC sysfs directory")
	digital := flag.String("digital", "", "Comma separated pins to watch as digital inputs (e.g. 0,GPIO238)")
	analogPins := flag.String("analog", "", "Comma separated pins to watch as analog inputs (e.g. A0,A1)")
	i2cReads := flag.String("i2c-read", "", "Comma separated I2C devices to poll as addr[/reg]:size (e.g. 0x48/0x00:2)")
	flag.StringVar(&cfg.led, "led", "", "sysfs LED directory to expose as pin LED0 (empty to disable)")
	flag.StringVar(&cfg.broker, "broker", "tcp://localhost:1883", "MQTT broker address (empty to disable)")
	flag.StringVar(&cfg.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.BoolVar(&cfg.printState, "print-state", false, "Print the first sample of every watched pin and exit")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")

	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("invalid -log-level: %v", err)
	}
	log.SetLevel(level)

	cfg.digital = splitList(*digital)
	cfg.analog = splitList(*analogPins)
	for _, s := range splitList(*i2cReads) {
		w, err := parseI2CWatch(s)
		if err != nil {
			log.Fatalf("invalid -i2c-read: %v", err)
		}
		cfg.i2cReads = append(cfg.i2cReads, w)
	}

	if err := run(cfg, log); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config, log *logrus.Logger) error {
	hardware := detectHardware(log)

	chip := gpio.NewRealChip(cfg.gpioChip, cfg.gpioBase)
	defer chip.Close()

	table := pins.OdroidC2()
	if cfg.led != "" {
		table = pins.WithLED(table, "LED0", cfg.led)
	}
	b := board.New(
		board.WithLogger(log),
		board.WithPins(table),
		board.WithGPIO(chip),
		board.WithAnalog(analog.NewSysfs(cfg.analogRoot)),
		board.WithSamplingInterval(cfg.samplingMs),
		board.WithDefaultI2CBus(cfg.i2cBus),
	)
	defer b.Close()

	if cfg.printState {
		return printState(b, cfg)
	}

	events := make(chan board.Event, 256)
	forward := func(ev board.Event) {
		select {
		case events <- ev:
		default:
			log.Warnf("event queue full, dropping %s", ev.Name)
		}
	}
	b.Subscribe(func(ev board.Event) {
		if ev.Kind != board.KindError {
			forward(ev)
		}
	})
	b.OnError(func(err error) {
		forward(board.Event{Name: board.EventError, Kind: board.KindError, Err: err, Time: time.Now()})
	})

	tracker := status.NewTracker(time.Now(), status.Config{
		SamplingMs: b.SamplingInterval(),
		I2CBus:     cfg.i2cBus,
		GPIOChip:   cfg.gpioChip,
		Broker:     cfg.broker,
		HTTPAddr:   cfg.httpAddr,
	})
	tracker.SetBoard(b.Name(), hardware, b)

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.broker, "odroid-io", log)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	startup := mqtt.SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Board: hardware}
	if err := publisher.PublishSystem(startup); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	}

	broadcast := func(board.Event) {}
	if cfg.httpAddr != "" {
		srv := web.New(cfg.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		broadcast = srv.Broadcast
		log.Infof("http status server listening on %s", cfg.httpAddr)
	}

	if err := watch(b, cfg); err != nil {
		return err
	}
	log.Infof("started: board=%s sampling=%dms digital=%v analog=%v i2c=%d broker=%q",
		hardware, b.SamplingInterval(), cfg.digital, cfg.analog, len(cfg.i2cReads), cfg.broker)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(log, publisher, mqttStatus, tracker, broadcast, events, ticker.C, sigCh)
}

// watch starts the report loops and I2C polls cfg asks for.
func watch(b *board.Board, cfg config) error {
	for _, s := range cfg.digital {
		if err := b.DigitalRead(pins.ParseRef(s), nil); err != nil {
			return fmt.Errorf("watch digital %s: %w", s, err)
		}
	}
	for _, s := range cfg.analog {
		if err := b.AnalogRead(pins.ParseRef(s), nil); err != nil {
			return fmt.Errorf("watch analog %s: %w", s, err)
		}
	}
	for _, w := range cfg.i2cReads {
		if err := b.I2CConfig(w.address); err != nil {
			return fmt.Errorf("configure i2c 0x%02x: %w", w.address, err)
		}
		var err error
		if w.hasReg {
			err = b.I2CReadRegister(w.address, w.register, w.size, nil)
		} else {
			err = b.I2CRead(w.address, w.size, nil)
		}
		if err != nil {
			return fmt.Errorf("poll i2c 0x%02x: %w", w.address, err)
		}
	}
	return nil
}

func runLoop(log logrus.FieldLogger, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, broadcast func(board.Event), events <-chan board.Event, tick <-chan time.Time, sig <-chan os.Signal) error {
	refresh := func() {
		if tracker != nil && mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
	refresh()

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			event := mqtt.SystemEvent{
				Timestamp: time.Now(),
				Event:     "SHUTDOWN",
				Reason:    signalName(s),
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Warnf("failed to publish shutdown event: %v", err)
			}
			return nil

		case ev := <-events:
			if tracker != nil {
				tracker.Record(ev)
			}
			broadcast(ev)

			if ev.Kind == board.KindError {
				log.Errorf("board: %v", ev.Err)
				sys := mqtt.SystemEvent{Timestamp: ev.Time, Event: "ERROR", Reason: ev.Err.Error()}
				if err := publisher.PublishSystem(sys); err != nil {
					log.Warnf("publish error: %v", err)
				}
				continue
			}

			log.Debugf("event: %s value=%d data=%v", ev.Name, ev.Value, ev.Data)
			if err := publisher.Publish(ev); err != nil {
				// Don't crash on publish failure
				log.Warnf("publish error: %v", err)
			}

		case <-tick:
			refresh()
		}
	}
}

func printState(b *board.Board, cfg config) error {
	if err := watch(b, cfg); err != nil {
		return err
	}
	want := len(cfg.digital) + len(cfg.analog)
	deadline := time.Now().Add(time.Second + time.Duration(b.SamplingInterval())*time.Millisecond)
	for {
		known := 0
		for _, p := range b.Pins() {
			if p.Report != 0 && p.Known {
				known++
			}
		}
		if known >= want || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, p := range b.Pins() {
		if p.Report == 0 {
			continue
		}
		v := "UNKNOWN"
		if p.Known {
			v = strconv.Itoa(p.Value)
		}
		fmt.Printf("%d (%s) %s: %s\n", p.Position, strings.Join(p.IDs, ","), p.Mode, v)
	}
	return nil
}

func detectHardware(log logrus.FieldLogger) string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		log.Warnf("cannot read cpuinfo: %v", err)
		return "UNKNOWN"
	}
	defer f.Close()

	hw, err := board.DetectBoard(f)
	if err != nil {
		log.Warnf("%v", err)
		return "UNKNOWN"
	}
	if hw != expectedHardware {
		log.Warnf("this is not an %s board (Hardware: %s); pin numbers may be wrong", expectedHardware, hw)
	}
	return hw
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// i2cWatch is one -i2c-read entry.
type i2cWatch struct {
	address  uint8
	register uint8
	hasReg   bool
	size     int
}

// parseI2CWatch parses addr[/reg]:size. Numbers accept 0x prefixes.
func parseI2CWatch(s string) (i2cWatch, error) {
	var w i2cWatch
	target, size, ok := strings.Cut(s, ":")
	if !ok {
		return w, fmt.Errorf("%q: missing :size", s)
	}
	n, err := strconv.Atoi(size)
	if err != nil || n <= 0 {
		return w, fmt.Errorf("%q: invalid size %q", s, size)
	}
	w.size = n

	addr, reg, hasReg := strings.Cut(target, "/")
	a, err := strconv.ParseUint(addr, 0, 7)
	if err != nil {
		return w, fmt.Errorf("%q: invalid address: %w", s, err)
	}
	w.address = uint8(a)
	if hasReg {
		r, err := strconv.ParseUint(reg, 0, 8)
		if err != nil {
			return w, fmt.Errorf("%q: invalid register: %w", s, err)
		}
		w.register, w.hasReg = uint8(r), true
	}
	return w, nil
}

// nopPublisher stands in when MQTT is disabled.
type nopPublisher struct{}

func (nopPublisher) Publish(board.Event) error            { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
