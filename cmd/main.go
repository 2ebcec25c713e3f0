package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/quadmap/featureflag"
	qhttp "github.com/aukilabs/quadmap/http"
	"github.com/aukilabs/quadmap/mapfile"
	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/noise"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/aukilabs/quadmap/smoketest"
	qwebsocket "github.com/aukilabs/quadmap/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The Quadmap version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "quadmap_info",
		Help:        "Quadmap information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string        `cli:""        env:"QUADMAP_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string        `cli:""        env:"QUADMAP_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string        `cli:""        env:"QUADMAP_PUBLIC_ENDPOINT"      help:"The public endpoint where this Quadmap server is reachable."`
	LogLevel           string        `cli:""        env:"QUADMAP_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"QUADMAP_LOG_INDENT"           help:"Indent logs."`
	Map                mapConfig     `cli:""        env:"-"                            help:"Map configuration."`
	KeepAliveInterval  time.Duration `cli:",hidden" env:"QUADMAP_KEEP_ALIVE_INTERVAL"  help:"Change feed keep alive (ping) message interval."`
	ClientIdleTimeout  time.Duration `cli:",hidden" env:"QUADMAP_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected"`
	LogSummaryInterval time.Duration `cli:",hidden" env:"QUADMAP_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ShutdownTimeout    time.Duration `cli:",hidden" env:"QUADMAP_SHUTDOWN_TIMEOUT"     help:"The time given to servers to gracefully shut down."`
	Events             eventsConfig  `cli:",hidden" env:"-"                            help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"QUADMAP_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                            help:"Show version."`
	Help               bool          `cli:""        env:"-"                            help:"Show help."`
}

type mapConfig struct {
	File     string `cli:"" env:"QUADMAP_MAP_FILE"      help:"JSON or TOML file describing the map to load."`
	SaveFile string `cli:"" env:"QUADMAP_MAP_SAVE_FILE" help:"JSON or TOML file where the map is saved on exit."`
	Width    int    `cli:"" env:"QUADMAP_MAP_WIDTH"     help:"The number of cell columns when no map file is given."`
	Height   int    `cli:"" env:"QUADMAP_MAP_HEIGHT"    help:"The number of cell rows when no map file is given."`
	Textures int    `cli:"" env:"QUADMAP_MAP_TEXTURES"  help:"The number of textures when no map file is given."`
	Seed     int    `cli:"" env:"QUADMAP_MAP_SEED"      help:"The terrain noise seed when no map file is given. 0 keeps the map flat."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"QUADMAP_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"QUADMAP_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"QUADMAP_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"QUADMAP_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:           ":4000",
		AdminAddr:      ":18190",
		PublicEndpoint: "http://localhost:4000",
		LogLevel:       logs.InfoLevel.String(),
		Map: mapConfig{
			Width:    256,
			Height:   256,
			Textures: 4,
		},
		KeepAliveInterval:  time.Second * 30,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ShutdownTimeout:    qhttp.DefaultShutdownTimeout,
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
		Help("Starts Quadmap server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	transport := metrics.HTTPTransport(http.DefaultTransport)

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     transport,
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "quadmap",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)

	world, err := loadWorld(conf.Map, featureFlags)
	if err != nil {
		logs.Fatal(errors.New("loading world failed").Wrap(err))
	}
	defer world.Close()

	var ready atomic.Bool
	readinessCheck := ready.Load

	var service http.ServeMux

	api := qhttp.API{
		World:        world,
		FeatureFlags: featureFlags,
	}
	api.Register(&service)

	service.HandleFunc("/health", qhttp.HandleHealthCheck)
	service.HandleFunc("/version", qhttp.HandleVersion(version))
	service.HandleFunc("/ready", qhttp.HandleReadyCheck(readinessCheck))
	service.HandleFunc("POST /smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Quadmap %s", version),
		Transport: transport,
		SendResult: func(_ context.Context, res smoketest.Results) error {
			logs.WithTag("results", res).Info("smoke test finished")
			return nil
		},
	}))

	featureFlags.IfNotSet(featureflag.FlagDisableChangeFeed, func() {
		service.Handle(smoketest.ChangesPath, websocket.Server{
			Handler: func(conn *websocket.Conn) {
				defer conn.Close()

				var h qwebsocket.Handler = &qwebsocket.FeedHandler{
					World:                   world,
					ClientKeepAliveInterval: conf.KeepAliveInterval,
					ClientIdleTimeout:       conf.ClientIdleTimeout,
				}
				h = qwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
				h = qwebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
				defer h.Close()

				qwebsocket.Handle(ctx, conn, h)
			},
		})
	})

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", qhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", qhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("width", world.Width()).
		WithTag("height", world.Height()).
		WithTag("checksum", world.Checksum()).
		WithTag("feature_flags", featureFlags.Strings()).
		Info("starting quadmap server")

	ready.Store(true)
	qhttp.ListenAndServe(ctx, conf.ShutdownTimeout,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(
			qhttp.HandleWithCORS(&service),
			qhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
	ready.Store(false)

	if conf.Map.SaveFile != "" {
		if err := mapfile.Save(conf.Map.SaveFile, mapfile.Describe(world)); err != nil {
			logs.Error(errors.New("saving map failed").Wrap(err))
		}
	}
}

func loadWorld(conf mapConfig, featureFlags featureflag.FeatureFlag) (*models.World, error) {
	var options []models.WorldOption
	featureFlags.IfSet(featureflag.FlagDisableCanvasTree, func() {
		options = append(options, models.WithoutCanvasTree())
	})

	if conf.File != "" {
		d, err := mapfile.Load(conf.File)
		if err != nil {
			return nil, err
		}
		return d.Build(options...)
	}

	options = append(options, models.WithTextureCount(conf.Textures))
	world, err := models.NewWorld(conf.Width, conf.Height, options...)
	if err != nil {
		return nil, err
	}

	if conf.Seed != 0 {
		if err := noise.New(int64(conf.Seed)).Apply(world); err != nil {
			world.Close()
			return nil, err
		}
	}
	return world, nil
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.Map.File == "" {
		if err := quadtree.CheckDimensions(conf.Map.Width, conf.Map.Height); err != nil {
			return errors.New("invalid map width or height").Wrap(err)
		}
	}

	if conf.Map.Textures < 0 {
		return errors.New("texture count can't be negative").
			WithTag("textures", conf.Map.Textures)
	}

	for _, path := range []string{conf.Map.File, conf.Map.SaveFile} {
		if path == "" {
			continue
		}
		if _, err := mapfile.FormatFromPath(path); err != nil {
			return err
		}
	}

	if conf.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive").
			WithTag("shutdown_timeout", conf.ShutdownTimeout)
	}

	return nil
}
