// Command jobpilot runs the job-search automation daemon: the Controller,
// Task Manager, Activity Log, Learning Pipeline and Dashboard, wired over
// whatever platform agents a browser driver is available for.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jobpilot/automation/internal/captcha"
	"github.com/jobpilot/automation/internal/config"
	"github.com/jobpilot/automation/internal/confidence"
	"github.com/jobpilot/automation/internal/controller"
	"github.com/jobpilot/automation/internal/cvparser"
	"github.com/jobpilot/automation/internal/eventbus"
	"github.com/jobpilot/automation/internal/instance"
	"github.com/jobpilot/automation/internal/learning"
	"github.com/jobpilot/automation/internal/llmprovider"
	"github.com/jobpilot/automation/internal/notifications"
	"github.com/jobpilot/automation/internal/notifications/external"
	"github.com/jobpilot/automation/internal/profile"
	"github.com/jobpilot/automation/internal/server"
	"github.com/jobpilot/automation/internal/tasks"
	"github.com/jobpilot/automation/internal/tracker"
)

func main() {
	port := flag.Int("port", 8080, "Dashboard HTTP port")
	configPath := flag.String("config", "config.yaml", "Path to config.yaml")
	natsPort := flag.Int("nats-port", 0, "Embedded event bus port (0 disables the bus)")

	status := flag.Bool("status", false, "Show status of a running instance")
	stop := flag.Bool("stop", false, "Stop a running instance gracefully")
	forceStop := flag.Bool("force-stop", false, "Force kill a running instance")
	flag.Parse()

	basePath, err := getBasePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine base path: %v\n", err)
		os.Exit(1)
	}
	statePath := filepath.Join(basePath, "data", "state.json")

	if *status {
		showInstanceStatus(statePath, *port)
		os.Exit(0)
	}
	if *stop || *forceStop {
		stopInstance(statePath, *forceStop)
		os.Exit(0)
	}

	if !filepath.IsAbs(*configPath) {
		*configPath = filepath.Join(basePath, *configPath)
	}

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	for _, w := range warnings {
		log.Printf("[config] %s", w)
	}

	pidFilePath := filepath.Join(basePath, "data", "jobpilot.pid")
	instanceMgr := instance.NewManager(pidFilePath, statePath, *port)

	existing, err := instanceMgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to check for an existing instance: %v\n", err)
		os.Exit(1)
	}
	if existing != nil && existing.IsRunning {
		resolver := instance.NewConflictResolver(instanceMgr, instance.IsInteractive())
		if err := resolver.Resolve(existing); err != nil {
			fmt.Fprintf(os.Stderr, "failed to resolve instance conflict: %v\n", err)
			os.Exit(1)
		}
		*port = instanceMgr.GetPort()
	}

	if err := instanceMgr.AcquireLock(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to acquire instance lock: %v\n", err)
		os.Exit(1)
	}

	for _, sub := range cfg.DataSubdirs() {
		if err := os.MkdirAll(filepath.Join(cfg.System.DataDir, sub), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create %s: %v\n", sub, err)
			os.Exit(1)
		}
	}

	printBanner()

	var bus *eventbus.Client
	var embedded *eventbus.EmbeddedServer
	if *natsPort > 0 {
		embedded, err = eventbus.NewEmbeddedServer(eventbus.EmbeddedServerConfig{Port: *natsPort})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to configure the event bus: %v\n", err)
			os.Exit(1)
		}
		if err := embedded.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start the event bus: %v\n", err)
			os.Exit(1)
		}
		bus, err = eventbus.NewClient(embedded.URL())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to the event bus: %v\n", err)
			os.Exit(1)
		}
		log.Printf("[jobpilot] event bus listening on %s", embedded.URL())

		streams, err := eventbus.NewStreamManager(bus.RawConn())
		if err != nil {
			log.Printf("[jobpilot] warning: failed to open JetStream context: %v", err)
		} else if err := streams.SetupStreams(); err != nil {
			log.Printf("[jobpilot] warning: failed to configure event bus streams: %v", err)
		}
	}

	act, err := tracker.New(tracker.Config{DataDir: filepath.Join(cfg.System.DataDir, "logs")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start the activity log: %v\n", err)
		os.Exit(1)
	}
	activityLogger := eventbus.NewActivityPublisher(act, bus)

	var profileStore profile.Store
	if cfg.Profile.Backend == "csv" {
		profileStore = profile.NewCSVStore(filepath.Join(cfg.System.DataDir, "profiles", "profiles.csv"))
	} else {
		profileStore = profile.NewJSONStore(filepath.Join(cfg.System.DataDir, "profiles"))
	}
	if err := profileStore.Load(); err != nil {
		log.Printf("[jobpilot] warning: failed to load profiles: %v", err)
	}

	pipeline, err := learning.Open(filepath.Join(cfg.System.DataDir, "telemetry", "outcomes.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open the learning pipeline: %v\n", err)
		os.Exit(1)
	}
	defer pipeline.Close()
	if cfg.Telemetry.Enabled {
		if err := pipeline.EnableTelemetry(cfg.Telemetry.StoragePath); err != nil {
			log.Printf("[jobpilot] warning: failed to enable telemetry mirror: %v", err)
		}
	}

	llm := llmprovider.Null{}
	scorer := confidence.New(confidence.DefaultConfig(), pipeline, llm, pipeline)
	parser := cvparser.New(cvparser.DefaultConfig(), nil)

	notifier := notifications.NewManager(notifications.Config{
		AppID:          "jobpilot",
		DashboardURL:   fmt.Sprintf("http://localhost:%d", *port),
		EnableToast:    true,
		EnableTerminal: true,
		EnableBanner:   true,
	})
	if channels := webhookChannels(cfg.Notifications); len(channels) > 0 {
		notifier.SetRouter(notifications.NewRouter(channels))
		log.Printf("[jobpilot] %d external notification channel(s) configured", len(channels))
	}

	var solver captcha.Solver
	if cfg.CaptchaHandler == "external" {
		solver = captcha.NewTwoCaptchaSolver(os.Getenv("CAPTCHA_API_KEY"))
	}
	captchaCfg := captcha.DefaultConfig()
	captchaCfg.Mode = captcha.Mode(cfg.CaptchaHandler)
	captchaCfg.DataDir = filepath.Join(cfg.System.DataDir, "screenshots")
	captchaAgent := captcha.New(captchaCfg, solver, nil)
	captchaAgent.SetNotifier(notifier)

	// No concrete browser.Page driver ships with this module (it is a
	// named external collaborator); platform agents are only registered
	// once one is attached. The Controller, Task Manager and Dashboard
	// all function fully without one.
	platforms := map[string]controller.PlatformAgent{}
	if len(platforms) == 0 {
		log.Printf("[jobpilot] no browser driver attached, job search and apply flows are unavailable until one is wired in")
	}

	taskMgr, err := tasks.OpenManager(tasks.DefaultConfig(), activityLogger, filepath.Join(cfg.System.DataDir, "tasks", "tasks.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open the task store: %v\n", err)
		os.Exit(1)
	}
	defer taskMgr.Close()
	ctrl := controller.New(controller.DefaultConfig(), taskMgr, activityLogger, platforms)
	ctrl.SetNotifier(notifier)

	dashboard := server.New(ctrl, taskMgr, nil, notifier)
	dashboard.SetActivityStats(act)
	dashboard.Run()

	var bridge *server.EventBridge
	if bus != nil {
		bridge = server.NewEventBridge(bus, dashboard.Hub())
		if err := bridge.Start(); err != nil {
			log.Printf("[jobpilot] failed to start the event bridge: %v", err)
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- dashboard.Start(fmt.Sprintf(":%d", *port))
	}()

	if !waitForHealth(*port, 5*time.Second) {
		select {
		case err := <-serverErr:
			fmt.Fprintf(os.Stderr, "server failed to start: %v\n", err)
		default:
			fmt.Fprintln(os.Stderr, "server failed to become ready within timeout")
		}
		os.Exit(1)
	}

	fmt.Printf("  Dashboard ready at http://localhost:%d\n", *port)

	if err := instanceMgr.WritePIDFile(os.Getpid(), *port, basePath); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to write PID file: %v\n", err)
	}

	if instance.IsInteractive() {
		console := newREPL(ctrl, scorer, parser)
		go func() {
			console.Run()
			dashboard.RequestShutdown()
		}()
	}

	select {
	case <-shutdown:
		fmt.Println()
		fmt.Println("Shutting down (signal received)...")
	case <-dashboard.ShutdownChan:
		fmt.Println()
		fmt.Println("Shutting down (API request)...")
	case err := <-serverErr:
		if err != nil && err.Error() != "http: Server closed" {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if bridge != nil {
		bridge.Stop()
	}
	if bus != nil {
		bus.Close()
	}
	if embedded != nil {
		embedded.Shutdown()
	}
	instanceMgr.RemovePIDFile()
	if err := dashboard.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
	fmt.Println("Goodbye!")
}

// webhookChannels builds the optional external notification channels named
// in config.yaml's notifications section. A channel with no webhook URL (or,
// for email, no SMTP host and no recipients) is left out rather than
// registered disabled.
func webhookChannels(cfg config.NotificationsConfig) []notifications.NotificationChannel {
	var channels []notifications.NotificationChannel

	if cfg.Slack.WebhookURL != "" {
		channels = append(channels, external.NewSlackNotifier(external.SlackConfig{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
		}))
	}
	if cfg.Discord.WebhookURL != "" {
		channels = append(channels, external.NewDiscordNotifier(external.DiscordConfig{
			WebhookURL: cfg.Discord.WebhookURL,
			Username:   cfg.Discord.Username,
		}))
	}
	if cfg.Email.SMTPHost != "" && len(cfg.Email.To) > 0 {
		channels = append(channels, external.NewEmailNotifier(external.EmailConfig{
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		}))
	}

	return channels
}

func waitForHealth(port int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if instance.HealthCheck(port) == nil {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// getBasePath returns the directory containing the executable, or the
// current working directory if running via `go run`.
func getBasePath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return os.Getwd()
	}
	dir := filepath.Dir(exe)
	if filepath.Base(dir) == "exe" || filepath.Base(filepath.Dir(dir)) == "go-build" {
		return os.Getwd()
	}
	if filepath.Base(dir) == "bin" {
		return filepath.Dir(dir), nil
	}
	return dir, nil
}

func showInstanceStatus(statePath string, port int) {
	basePath, _ := getBasePath()
	pidPath := filepath.Join(basePath, "data", "jobpilot.pid")
	mgr := instance.NewManager(pidPath, statePath, port)

	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	if info == nil {
		fmt.Println("No running instance found.")
		return
	}
	fmt.Printf("PID: %d\nPort: %d\nStarted: %s\nRunning: %v\nResponding: %v\n",
		info.PID, info.Port, info.StartTime.Format(time.RFC3339), info.IsRunning, info.IsResponding)
}

func stopInstance(statePath string, force bool) {
	basePath, _ := getBasePath()
	pidPath := filepath.Join(basePath, "data", "jobpilot.pid")
	mgr := instance.NewManager(pidPath, statePath, 0)

	info, err := mgr.CheckExistingInstance()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if info == nil || !info.IsRunning {
		fmt.Println("No running instance found.")
		return
	}

	if force {
		if err := instance.KillProcess(info.PID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to kill process %d: %v\n", info.PID, err)
			os.Exit(1)
		}
		mgr.RemovePIDFile()
		fmt.Println("Instance force-stopped.")
		return
	}

	if err := instance.SendShutdownRequest(info.Port); err != nil {
		fmt.Fprintf(os.Stderr, "graceful shutdown request failed: %v\n", err)
		os.Exit(1)
	}
	if instance.WaitForPortToBeAvailable(info.Port, 10*time.Second) {
		fmt.Println("Instance stopped.")
	} else {
		fmt.Println("Instance did not stop within the timeout; consider -force-stop.")
	}
}

func printBanner() {
	fmt.Println()
	fmt.Println("  jobpilot - automated job search and application")
	fmt.Println()
}
