package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/voxelstore/changefeed"
	"github.com/aukilabs/voxelstore/featureflag"
	vshttp "github.com/aukilabs/voxelstore/http"
	"github.com/aukilabs/voxelstore/models"
	"github.com/aukilabs/voxelstore/smoketest"
	vswebsocket "github.com/aukilabs/voxelstore/websocket"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The voxelstore version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "voxelstore_info",
		Help:        "Voxelstore information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// Keeps the config field names when the binary is obfuscated. The cli package
// builds the command-line options from them.
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string           `cli:""        env:"VOXELSTORE_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string           `cli:""        env:"VOXELSTORE_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string           `cli:""        env:"VOXELSTORE_PUBLIC_ENDPOINT"      help:"The public endpoint where this server is reachable."`
	PrivateKey         string           `cli:""        env:"VOXELSTORE_PRIVATE_KEY"          help:"The private key of the Ethereum-compatible wallet that signs change feed payloads."`
	PrivateKeyFile     string           `cli:""        env:"VOXELSTORE_PRIVATE_KEY_FILE"     help:"The file that contains the private key that signs change feed payloads."`
	LogLevel           string           `cli:""        env:"VOXELSTORE_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool             `cli:""        env:"VOXELSTORE_LOG_INDENT"           help:"Indent logs."`
	RegionSize         int              `cli:""        env:"VOXELSTORE_REGION_SIZE"          help:"The edge length of a region, in voxels."`
	NodeMinSize        int              `cli:""        env:"VOXELSTORE_NODE_MIN_SIZE"        help:"The minimum edge length of a region octree node."`
	ClientIdleTimeout  time.Duration    `cli:",hidden" env:"VOXELSTORE_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle client will be disconnected."`
	LogSummaryInterval time.Duration    `cli:",hidden" env:"VOXELSTORE_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	ChangeFeed         changeFeedConfig `cli:",hidden" env:"-"                               help:"Change feed configuration."`
	Events             eventsConfig     `cli:",hidden" env:"-"                               help:"Event pusher configuration."`
	FeatureFlags       []string         `cli:",hidden" env:"VOXELSTORE_FEATURE_FLAGS"        help:"Comma separated feature flags."`
	Version            bool             `cli:""        env:"-"                               help:"Show version."`
	Help               bool             `cli:""        env:"-"                               help:"Show help."`
}

type changeFeedConfig struct {
	Endpoint  string `cli:",hidden" env:"VOXELSTORE_CHANGE_FEED_ENDPOINT"   help:"Endpoint where voxel changes are posted. Disabled when empty."`
	QueueSize int    `cli:",hidden" env:"VOXELSTORE_CHANGE_FEED_QUEUE_SIZE" help:"The number of changes queued before being dropped."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"VOXELSTORE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed. Disabled when empty."`
	FlushInterval time.Duration `cli:",hidden" env:"VOXELSTORE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"VOXELSTORE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"VOXELSTORE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	conf := config{
		Addr:               ":4000",
		AdminAddr:          ":18190",
		PublicEndpoint:     "http://localhost:4000",
		LogLevel:           logs.InfoLevel.String(),
		RegionSize:         models.DefaultRegionSize,
		NodeMinSize:        models.DefaultNodeMinSize,
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		ChangeFeed: changeFeedConfig{
			QueueSize: 1024,
		},
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
		Help("Starts a voxelstore server.").
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
			SDKType:          "voxelstore",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	regions := models.RegionStore{
		RegionSize:  conf.RegionSize,
		NodeMinSize: conf.NodeMinSize,
	}
	featureFlags := featureflag.New(conf.FeatureFlags)

	var changes chan changefeed.Change
	walletAddress := ""

	if conf.ChangeFeed.Endpoint != "" {
		privateKey, err := loadPrivateKey(conf)
		if err != nil {
			logs.Fatal(errors.New("error loading private key").Wrap(err))
		}
		walletAddress = strings.ToLower(crypto.PubkeyToAddress(privateKey.PublicKey).Hex())

		changes = make(chan changefeed.Change, conf.ChangeFeed.QueueSize)
		changeFeedHandler := changefeed.Handler{
			Endpoint:   conf.ChangeFeed.Endpoint,
			Changes:    changes,
			PrivateKey: privateKey,
			Transport:  transport,
		}
		changeFeedHandler.HandleChanges(ctx)
	}

	var service http.ServeMux

	regionHandler := vshttp.HandleWithCORS(vshttp.RegionHandler{
		Regions:      &regions,
		FeatureFlags: featureFlags,
		ChangeFeed:   changes,
	}.Router())
	service.Handle("/regions", regionHandler)
	service.Handle("/regions/", regionHandler)

	service.Handle("/health", vshttp.HandleWithCORS(http.HandlerFunc(vshttp.HandleHealthCheck)))
	service.Handle("/version", vshttp.HandleWithCORS(vshttp.HandleVersion(version)))

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.Handle("/ready", vshttp.HandleWithCORS(vshttp.HandleReadyCheck(readinessCheck)))

	smokeTest := smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Voxelstore %s", version),
		SendResult: func(ctx context.Context, res smoketest.Result) error {
			return logSmokeTestResult(res)
		},
	})
	service.Handle("/smoke-test", vshttp.HandleWithCORS(smokeTest))

	service.Handle("/", vshttp.HandleWithCORS(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			var rh vswebsocket.Handler = &vswebsocket.RealtimeHandler{
				ClientIdleTimeout: conf.ClientIdleTimeout,
				Regions:           &regions,
				FeatureFlags:      featureFlags,
				ChangeFeed:        changes,
			}
			h := vswebsocket.HandlerWithLogs(rh, conf.LogSummaryInterval)
			h = vswebsocket.HandlerWithMetrics(h, conf.PublicEndpoint)
			defer h.Close()

			vswebsocket.Handle(ctx, conn, h)
		},
	}))

	service.Handle("/ping", websocket.Server{
		Handler: func(ws *websocket.Conn) {
			defer ws.Close()
			io.Copy(ws, ws)
		},
	})

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", vshttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", vshttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("region_size", conf.RegionSize).
		WithTag("node_min_size", conf.NodeMinSize).
		WithTag("change_feed_endpoint", conf.ChangeFeed.Endpoint).
		WithTag("wallet_address", walletAddress).
		Info("starting voxelstore server")

	vshttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			vshttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

func logSmokeTestResult(res smoketest.Result) error {
	entry := logs.WithTag("to_endpoint", res.ToEndpoint).
		WithTag("latency_ms", res.LatencyMilliSec).
		WithTag("result", res)
	if !res.Success {
		entry.Warn(errors.New("smoke test failed").WithTag("error", res.Error))
		return nil
	}
	entry.Info("smoke test succeeded")
	return nil
}

func loadPrivateKey(conf config) (*ecdsa.PrivateKey, error) {
	privateKey := conf.PrivateKey

	if len(conf.PrivateKeyFile) != 0 {
		privateKeyBytes, err := os.ReadFile(conf.PrivateKeyFile)
		if err != nil {
			return nil, errors.New("error loading private key from file").
				WithTag("file_name", conf.PrivateKeyFile).
				Wrap(err)
		}
		privateKey = string(privateKeyBytes)
	}

	privateKey = strings.TrimPrefix(strings.TrimSpace(privateKey), "0x")

	if len(privateKey) == 0 {
		return nil, errors.New("private key is empty")
	}

	return crypto.HexToECDSA(privateKey)
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.RegionSize < 1 {
		return errors.Newf("invalid region size: %d", conf.RegionSize)
	}

	if conf.NodeMinSize < 1 || conf.NodeMinSize > conf.RegionSize {
		return errors.Newf("invalid node min size: %d", conf.NodeMinSize)
	}

	if len(conf.PrivateKey) != 0 &&
		len(conf.PrivateKeyFile) != 0 {
		return errors.New("have to specify either private key or private key file, not both")
	}

	if conf.ChangeFeed.Endpoint == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(conf.ChangeFeed.Endpoint); err != nil {
		return errors.New("invalid change feed endpoint").Wrap(err)
	}

	if len(conf.PrivateKey) == 0 &&
		len(conf.PrivateKeyFile) == 0 {
		return errors.New("have to specify either private key or private key file when the change feed is enabled")
	}

	if conf.ChangeFeed.QueueSize < 0 {
		return errors.Newf("invalid change feed queue size: %d", conf.ChangeFeed.QueueSize)
	}

	return nil
}
