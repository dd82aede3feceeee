package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/matt-g-everett/ledtick/api"
	"github.com/matt-g-everett/ledtick/config"
	"github.com/matt-g-everett/ledtick/loop"
	"github.com/matt-g-everett/ledtick/schedule"
	"github.com/matt-g-everett/ledtick/stream"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const disconnectQuiesce = 250 // ms

type app struct {
	cfg  config.Config
	path string
	log  zerolog.Logger

	loop       *loop.Loop
	sched      *schedule.Scheduler
	client     mqtt.Client
	controller *stream.Controller
	calibrate  *stream.Calibrate
	streamer   *stream.Streamer
	api        *api.Api
	cron       *cron.Cron
}

// mqttLogger routes paho's logging through zerolog.
type mqttLogger struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (l mqttLogger) Println(v ...interface{}) {
	l.log.WithLevel(l.level).Msg(fmt.Sprint(v...))
}

func (l mqttLogger) Printf(format string, v ...interface{}) {
	l.log.WithLevel(l.level).Msgf(format, v...)
}

func newApp(cfg config.Config, path string, log zerolog.Logger) (*app, error) {
	a := new(app)
	a.cfg = cfg
	a.path = path
	a.log = log

	a.loop = loop.New(
		loop.WithRefresh(cfg.Scheduler.Refresh),
		loop.WithLogger(log.With().Str("component", "loop").Logger()),
	)
	sched, err := schedule.New(a.loop,
		schedule.WithDisplayRate(cfg.Scheduler.DisplayRate),
		schedule.WithAnimationFrame(cfg.Scheduler.AnimationFrame),
		schedule.WithLogger(log.With().Str("component", "scheduler").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	a.sched = sched

	clientID := cfg.Mqtt.ClientID
	if clientID == "" {
		clientID = "ledtx-" + uuid.NewString()
	}
	options := mqtt.NewClientOptions().
		AddBroker(cfg.Mqtt.URL).
		SetClientID(clientID).
		SetUsername(cfg.Mqtt.Username).
		SetPassword(cfg.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetOnConnectHandler(a.handleOnConnect).
		SetConnectionLostHandler(a.handleConnectionLost)
	a.client = mqtt.NewClient(options)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	stage := &stream.Stage{Name: "tree"}
	streamLog := log.With().Str("component", "stream").Logger()
	pixels := cfg.Strip.Pixels

	a.controller = stream.NewController(a.sched, stage, pixels, cfg.Stream.TransitionTime, rng, streamLog)
	a.calibrate = stream.NewCalibrate(a.client, cfg.Mqtt.Topics.CalibrateClient, cfg.Mqtt.Topics.CalibrateServer,
		a.loop.Post, a.sched, stage, pixels, cfg.Calibration.StepDelay, streamLog)
	a.controller.SetCalibrate(a.calibrate)
	a.streamer = stream.NewStreamer(a.client, a.controller, cfg.Mqtt.Topics.Stream,
		cfg.Stream.FrameInterval, cfg.Stream.MaxPublishRate, streamLog)

	a.api = api.NewApi(a.loop, a.sched, a.controller, a.streamer, cfg.API.Static,
		log.With().Str("component", "api").Logger())
	a.streamer.AddSink(a.api.Hub())

	a.cron = cron.New()
	if cfg.Stream.Cycle != "" {
		if _, err := a.cron.AddFunc(cfg.Stream.Cycle, a.cycle); err != nil {
			return nil, fmt.Errorf("stream.cycle: %w", err)
		}
	}

	return a, nil
}

func (a *app) handleOnConnect(client mqtt.Client) {
	a.log.Info().Str("broker", a.cfg.Mqtt.URL).Msg("connected")
	if err := a.calibrate.Subscribe(); err != nil {
		a.log.Error().Err(err).Str("topic", a.cfg.Mqtt.Topics.CalibrateClient).Msg("subscribe")
	}
}

func (a *app) handleConnectionLost(client mqtt.Client, err error) {
	a.log.Warn().Err(err).Msg("connection lost")
}

func (a *app) cycle() {
	if err := a.loop.Post(a.controller.Cycle); err != nil {
		a.log.Debug().Err(err).Msg("cycle dropped")
	}
}

// reload applies the settings that can change without a restart.
func (a *app) reload(cfg config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel())
	err := a.loop.Post(func() {
		if err := a.sched.SetDisplayRate(cfg.Scheduler.DisplayRate); err != nil {
			a.log.Warn().Err(err).Msg("display rate not applied")
		}
		a.streamer.SetMaxRate(cfg.Stream.MaxPublishRate)
		a.log.Info().
			Str("level", cfg.LogLevel().String()).
			Dur("displayRate", cfg.Scheduler.DisplayRate).
			Float64("maxPublishRate", cfg.Stream.MaxPublishRate).
			Msg("config reloaded")
	})
	if err != nil {
		a.log.Warn().Err(err).Msg("config reload dropped")
	}
}

func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loopErr := make(chan error, 1)
	go func() { loopErr <- a.loop.Run(ctx) }()

	if token := a.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	defer a.client.Disconnect(disconnectQuiesce)

	err := a.loop.Call(ctx, func() {
		a.sched.Start()
		a.controller.Start()
		a.streamer.Start(a.sched)
	})
	if err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}

	a.cron.Start()
	defer a.cron.Stop()

	watcher := config.NewWatcher(a.path, a.log.With().Str("component", "config").Logger(), a.reload)
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			a.log.Warn().Err(err).Msg("config watcher stopped")
		}
	}()

	apiErr := make(chan error, 1)
	go func() { apiErr <- a.api.Serve(ctx, a.cfg.API.Listen) }()

	select {
	case err := <-apiErr:
		if err != nil {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	case err := <-loopErr:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
}
