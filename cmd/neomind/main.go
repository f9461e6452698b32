// Command neomind runs the edge process: MQTT ingestion, the typed metric
// pipeline, the rule and transform automation engine, the device
// registry, and the conversational session core. It exposes no HTTP/WS
// surface of its own; a separate gateway process speaks the client
// transport against the session package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/automation"
	"github.com/neomind/edge/internal/config"
	"github.com/neomind/edge/internal/discovery"
	"github.com/neomind/edge/internal/eventbus"
	"github.com/neomind/edge/internal/llm"
	"github.com/neomind/edge/internal/mdl"
	"github.com/neomind/edge/internal/messages"
	"github.com/neomind/edge/internal/mqttadapter"
	"github.com/neomind/edge/internal/neoerr"
	"github.com/neomind/edge/internal/rules"
	"github.com/neomind/edge/internal/semantic"
	"github.com/neomind/edge/internal/session"
	"github.com/neomind/edge/internal/store"
	"github.com/neomind/edge/internal/timeseries"
	"github.com/neomind/edge/internal/tools"
	"github.com/neomind/edge/internal/transform"
)

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	log := zapLogger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		log.Fatalw("failed to open store", "error", err)
	}

	registry := mdl.NewRegistry()
	if err := registry.AttachStore(s); err != nil {
		log.Fatalw("failed to attach device registry store", "error", err)
	}
	seedDeviceTemplates(registry, log)

	bus := eventbus.New()

	ts, err := timeseries.New(s, log)
	if err != nil {
		log.Fatalw("failed to open time-series store", "error", err)
	}
	if err := ts.ConnectRemoteCache(cfg.RedisURL); err != nil {
		log.Warnw("redis fast-path cache disabled", "error", err)
	}

	transformEngine := transform.New(bus, log)

	adapter := mqttadapter.New(registry, bus, ts, transformEngine, log)
	for i, brokerURL := range cfg.BrokerURLs {
		host, port, err := splitBrokerURL(brokerURL)
		if err != nil {
			log.Fatalw("invalid broker URL", "url", brokerURL, "error", err)
		}
		id := fmt.Sprintf("broker-%d", i)
		if err := adapter.AddBroker(id, host, port, cfg.MQTTUsername, cfg.MQTTPassword); err != nil {
			log.Fatalw("failed to connect broker", "broker", brokerURL, "error", err)
		}
	}

	msgDispatcher := messages.NewDispatcher(messages.Config{
		SlackWebhookURL:   cfg.SlackWebhookURL,
		DiscordWebhookURL: cfg.DiscordWebhookURL,
	}, log)

	ruleExecutor := rules.NewExecutor(commandShim{adapter}, msgDispatcher, log)
	scheduler := rules.NewScheduler(ts, ruleExecutor, cfg.RuleSchedulerTick, log)

	discoveryMgr := discovery.NewManager(discovery.DefaultConfig())

	index := semantic.NewIndex()
	aliases := semantic.NewAliasTables()
	for _, d := range registry.ListDevices() {
		index.Add(semantic.ResourceEntry{ID: d.Config.ID, Name: d.Config.DisplayName, DeviceType: d.Config.DeviceType, Kind: "device"})
	}
	resolver := semantic.NewResolver(index, aliases)

	llmMgr := llm.NewManager(cfg.DefaultLLMBackend)
	llmMgr.Register(llm.NewOllamaRuntime(cfg.OllamaBaseURL))
	if cfg.OpenAIAPIKey != "" {
		llmMgr.Register(llm.NewOpenAIRuntime(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		llmMgr.Register(llm.NewAnthropicRuntime(cfg.AnthropicAPIKey))
	}
	if cfg.GoogleAIAPIKey != "" {
		llmMgr.Register(llm.NewGoogleRuntime(cfg.GoogleAIAPIKey))
	}

	toolRegistry := tools.NewRegistry(adapter, registry, scheduler, ts, resolver)

	sessionMgr, err := session.NewManager(s, llmMgr, toolRegistry, session.NopConsolidator{}, log)
	if err != nil {
		log.Fatalw("failed to init session manager", "error", err)
	}
	log.Infow("automations loaded", "count", len(automation.List(scheduler, transformEngine)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalw("failed to start rule scheduler", "error", err)
	}

	go runSweepLoop(ctx, log, discoveryMgr, sessionMgr)

	log.Infow("neomind edge process started",
		"brokers", len(cfg.BrokerURLs),
		"llm_backends", llmMgr.List(),
		"devices", registry.DeviceCount(),
	)

	<-ctx.Done()
	log.Info("shutting down")

	if err := scheduler.Stop(); err != nil {
		log.Warnw("scheduler stop", "error", err)
	}
	log.Info("shutdown complete")
}

// commandShim adapts mqttadapter.Adapter's positional SendCommand to the
// rules package's DeviceCommander interface, which carries a context and
// a structured params map rather than a pre-encoded payload string.
type commandShim struct {
	adapter *mqttadapter.Adapter
}

func (c commandShim) SendCommand(ctx context.Context, deviceID, command string, params map[string]any) error {
	payload := ""
	if len(params) > 0 {
		buf, err := json.Marshal(params)
		if err != nil {
			return err
		}
		payload = string(buf)
	}
	return c.adapter.SendCommand(deviceID, command, payload, nil)
}

// seedDeviceTemplates admits the built-in templates on first boot;
// AlreadyExists on a later boot is expected and not an error.
func seedDeviceTemplates(registry *mdl.Registry, log *zap.SugaredLogger) {
	for _, t := range []mdl.DeviceTypeTemplate{mdl.SeedDHT22Template(), mdl.SeedDimmableLightTemplate()} {
		if err := registry.RegisterTemplate(t); err != nil && !neoerr.Is(err, neoerr.KindAlreadyExists) {
			log.Warnw("failed to seed device template", "template", t.ID, "error", err)
		}
	}
}

// splitBrokerURL extracts host/port from a tcp://host:port style broker URL.
func splitBrokerURL(raw string) (string, int, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, err
	}
	host := u.Hostname()
	if host == "" {
		return "", 0, fmt.Errorf("broker URL %q has no host", raw)
	}
	portStr := u.Port()
	if portStr == "" {
		portStr = "1883"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("broker URL %q has invalid port: %w", raw, err)
	}
	return host, port, nil
}

// runSweepLoop periodically reaps timed-out discovery drafts and stale
// pending session streams; both sweeps are cheap and run on the same
// minute-scale ticker.
func runSweepLoop(ctx context.Context, log *zap.SugaredLogger, discoveryMgr *discovery.Manager, sessionMgr *session.Manager) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if promoted := discoveryMgr.SweepTimeouts(now); len(promoted) > 0 {
				log.Infow("discovery drafts reached timeout readiness", "count", len(promoted))
			}
			reaped, err := sessionMgr.SweepStalePending(now)
			if err != nil {
				log.Warnw("stale pending sweep failed", "error", err)
				continue
			}
			if len(reaped) > 0 {
				log.Infow("reaped stale pending stream states", "count", len(reaped))
			}
		}
	}
}
