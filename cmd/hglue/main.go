// Command hglue runs the config-entry host: it imports configured entries, sets them up against the supervisor's view
// of the machine, and starts discovery flows for services found over mDNS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/config"
	"github.com/nlowe/hglue/entries"
	"github.com/nlowe/hglue/flow"
	"github.com/nlowe/hglue/flow/mdns"
	"github.com/nlowe/hglue/green"
	"github.com/nlowe/hglue/hass"
	_ "github.com/nlowe/hglue/ios"
	"github.com/nlowe/hglue/log"
	"github.com/nlowe/hglue/mqtt"
	adapter "github.com/nlowe/hglue/mqtt/adapter/autopaho"
	"github.com/nlowe/hglue/mysensors"
	"github.com/nlowe/hglue/supervisor"
	"github.com/nlowe/hglue/tplink"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run parses args into a private flag.FlagSet so it can be called from tests.
func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("hglue", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs.Output(), fs) }

	configPath := fs.String("config", "", "path to the config file")
	logLevel := fs.String("log-level", "", "overrides log_level from the config file")
	output := fs.String("o", "text", "output format of the tables command (text or json)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}

		return err
	}

	command := fs.Arg(0)
	if command == "tables" {
		return printTables(stdout, *output, fs.Arg(1))
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch command {
	case "check":
		fmt.Fprintln(stdout, "config ok")
		return nil
	case "", "serve":
		level, _ := log.ParseLevel(cfg.LogLevel)
		log.To(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

		return newApp(cfg).serve(ctx)
	default:
		printUsage(stderr, fs)
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "Usage: hglue [flags] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve   Set up configured entries and run discovery (default)")
	fmt.Fprintln(w, "  check   Validate the config file")
	fmt.Fprintln(w, "  tables [mysensors|tplink]")
	fmt.Fprintln(w, "          Print the platforms handling every MySensors sensor type, or the TP-Link")
	fmt.Fprintln(w, "          platforms and temperature units")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}

// tplinkTables is the json form of the TP-Link tables.
type tplinkTables struct {
	Platforms []hass.Platform                   `json:"platforms"`
	Units     map[string]hass.UnitOfTemperature `json:"units"`
}

func printTables(w io.Writer, format, table string) error {
	if format != "json" && format != "text" && format != "" {
		return fmt.Errorf("unknown output format %q", format)
	}

	var (
		data any
		rows [][2]string
	)

	switch table {
	case "", mysensors.Domain:
		data = mysensors.TypeToPlatforms
		for _, sType := range mysensors.KnownSensorTypes() {
			rows = append(rows, [2]string{string(sType), fmt.Sprint(mysensors.TypeToPlatforms[sType])})
		}
	case tplink.Domain:
		data = tplinkTables{Platforms: tplink.Platforms, Units: tplink.UnitMapping}
		rows = append(rows, [2]string{"platforms", fmt.Sprint(tplink.Platforms)})
		for _, name := range slices.Sorted(maps.Keys(tplink.UnitMapping)) {
			rows = append(rows, [2]string{"unit " + name, string(tplink.UnitMapping[name])})
		}
	default:
		return fmt.Errorf("unknown table %q (valid: %s, %s)", table, mysensors.Domain, tplink.Domain)
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}

	return tw.Flush()
}

type app struct {
	cfg *config.Config

	status    *mqtt.Value[hass.Availability]
	publisher atomic.Pointer[entries.StatePublisher]

	log *slog.Logger
}

func newApp(cfg *config.Config) *app {
	return &app{
		cfg:    cfg,
		status: hass.NewStatus(),
		log:    log.ForComponent("hglue"),
	}
}

// onConnected runs after every broker (re-)connect.
func (a *app) onConnected(ctx context.Context, w mqtt.Writer) {
	if _, err := a.status.Write(ctx, w, a.cfg.StateTopicPrefix, hass.Available); err != nil {
		a.log.With(log.Error(err)).Warn("Failed to publish status")
	}

	if p := a.publisher.Load(); p != nil {
		if err := p.RepublishAll(ctx); err != nil {
			a.log.With(log.Error(err)).Warn("Failed to republish entry states")
		}
	}
}

func (a *app) serve(ctx context.Context) error {
	a.log.Info("Starting up")

	sup := supervisor.NewSource(a.cfg.Supervisor.IsPresent(), a.cfg.Supervisor.TopicPrefix)

	var (
		w          mqtt.Writer
		sub        mqtt.Subscriber
		disconnect func(context.Context) error
	)

	if a.cfg.MQTT.Configured() {
		broker, err := url.Parse(a.cfg.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: parse broker: %w", err)
		}

		w, sub, disconnect, err = adapter.Dial(ctx, adapter.Options{
			Broker:    broker,
			ClientID:  a.cfg.MQTT.ClientID,
			Username:  a.cfg.MQTT.Username,
			Password:  a.cfg.MQTT.Password,
			KeepAlive: a.cfg.MQTT.KeepAlive,

			WillTopic: a.status.FullyQualifiedTopic(a.cfg.StateTopicPrefix),
			Will:      []byte(hass.Unavailable),

			OnConnected: a.onConnected,
		})
		if err != nil {
			return fmt.Errorf("mqtt: connect: %w", err)
		}

		a.publisher.Store(entries.NewStatePublisher(w, a.cfg.StateTopicPrefix))
		defer a.shutdownMQTT(w, disconnect)
	}

	manager := entries.NewManager(sup, a.publisher.Load())
	if err := a.register(manager); err != nil {
		return err
	}

	if sub != nil {
		sup.Watch(func(info supervisor.OSInfo) {
			a.log.With(slog.Any("os", info)).Info("Supervisor reported os info")

			// Watch callbacks run on the mqtt router, which must not block on setup.
			go func() {
				if err := manager.RetryPending(ctx); err != nil {
					a.log.With(log.Error(err)).Warn("Failed to retry pending entries")
				}
			}()
		})

		if err := sup.Subscribe(ctx, sub); err != nil {
			return fmt.Errorf("supervisor: subscribe: %w", err)
		}
	}

	a.importEntries(ctx, manager)
	if err := manager.SetupAll(ctx); err != nil {
		a.log.With(log.Error(err)).Warn("Some entries failed to set up")
	}

	// Entries created by flows from here on are set up as soon as they are added.
	manager.SetupOnAdd = true

	if sub != nil {
		commands := flow.NewCommands(flow.DefaultRegistry, manager, a.cfg.StateTopicPrefix)
		if err := commands.Subscribe(ctx, sub); err != nil {
			return fmt.Errorf("flow: subscribe to commands: %w", err)
		}
	}

	discoveryDone := make(chan error, 1)
	if len(a.cfg.Zeroconf.Services) > 0 {
		src := mdns.NewSource(a.cfg.Zeroconf.Services, flow.DefaultRegistry, manager)
		src.Interface = a.cfg.Zeroconf.Interface

		go func() {
			discoveryDone <- src.Run(ctx)
		}()
	}

	a.log.Info("Running")
	select {
	case <-ctx.Done():
	case err := <-discoveryDone:
		if err != nil {
			a.log.With(log.Error(err)).Error("Discovery stopped")
		}
		<-ctx.Done()
	}

	a.log.Info("Shutting down")
	a.unloadAll(manager)
	return nil
}

func (a *app) register(manager *entries.Manager) error {
	flow.DefaultRegistry.AutoConfirm = a.cfg.Zeroconf.AutoConfirm

	integrations := map[string]hglue.Lifecycle{
		green.Domain:     green.New(),
		mysensors.Domain: mysensors.New(),
	}

	for _, domain := range flow.DefaultRegistry.Domains() {
		f, _ := flow.DefaultRegistry.Lookup(domain)
		integrations[domain] = f
	}

	var errs []error
	for domain, integration := range integrations {
		if err := manager.Register(domain, integration); err != nil {
			errs = append(errs, err)
		}
	}

	a.log.With(slog.Any("domains", manager.Domains())).Debug("Registered integrations")
	return errors.Join(errs...)
}

func (a *app) importEntries(ctx context.Context, manager *entries.Manager) {
	add := func(domain, title string, data map[string]any) {
		if _, err := manager.Add(ctx, domain, title, hglue.SourceImport, data); err != nil {
			a.log.With(log.Domain(domain), log.Error(err)).Warn("Failed to import entry")
		}
	}

	for _, e := range a.cfg.Entries {
		add(e.Domain, e.Title, e.Data)
	}

	for _, gw := range a.cfg.MySensors.Gateways {
		add(mysensors.Domain, gw.Device, map[string]any{
			mysensors.ConfDevice:      gw.Device,
			mysensors.ConfGatewayType: gw.Type,
			mysensors.ConfVersion:     gw.Version,
		})
	}
}

func (a *app) unloadAll(manager *entries.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, e := range manager.Entries("") {
		if e.State != hglue.EntryStateLoaded {
			continue
		}

		if _, err := manager.Unload(ctx, e.ID); err != nil {
			a.log.With(log.Entry(e.ID), log.Error(err)).Warn("Failed to unload entry")
		}
	}

	manager.Wait()
}

func (a *app) shutdownMQTT(w mqtt.Writer, disconnect func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if _, err := a.status.Write(ctx, w, a.cfg.StateTopicPrefix, hass.Unavailable); err != nil {
		a.log.With(log.Error(err)).Warn("Failed to publish status")
	}

	a.log.Info("Disconnecting from mqtt")
	if err := disconnect(ctx); err != nil {
		a.log.With(log.Error(err)).Error("Failed to disconnect from mqtt")
	}
}
