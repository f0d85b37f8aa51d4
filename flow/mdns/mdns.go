// Package mdns feeds discovery flows from multicast DNS. Each configured service type maps to an integration domain;
// the first time an instance of a service type is seen, the domain's flow is started with source zeroconf.
package mdns

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/nlowe/hglue"
	"github.com/nlowe/hglue/flow"
	"github.com/nlowe/hglue/log"
)

// DefaultDomain is the mDNS domain browsed when Source.Domain is empty.
const DefaultDomain = "local."

// Discoverer starts discovery flows. flow.Registry implements it.
type Discoverer interface {
	Discover(ctx context.Context, entries flow.EntryCreator, domain string, source hglue.Source) (flow.Result, error)
}

type browseFunc func(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error

func browse(ctx context.Context, service, domain string, entries, removed chan *zeroconf.ServiceEntry, opts ...zeroconf.ClientOption) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed, opts...)
}

// Source browses mDNS service types and starts the mapped discovery flows.
type Source struct {
	// Services maps a service type (e.g. "_hass-mobile-app._tcp") to an integration domain.
	Services map[string]string
	// Domain is the mDNS domain to browse. Defaults to DefaultDomain.
	Domain string
	// Interface restricts browsing to a single network interface when set.
	Interface string

	flows   Discoverer
	entries flow.EntryCreator
	browse  browseFunc

	log *slog.Logger
}

// NewSource constructs a Source that reports discovered services to flows, creating entries through entries.
func NewSource(services map[string]string, flows Discoverer, entries flow.EntryCreator) *Source {
	return &Source{
		Services: services,

		flows:   flows,
		entries: entries,
		browse:  browse,

		log: log.ForComponent("mdns"),
	}
}

func (s *Source) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption

	if s.Interface != "" {
		iface, err := net.InterfaceByName(s.Interface)
		if err != nil {
			s.log.With(slog.String("interface", s.Interface), log.Error(err)).Warn("Unknown interface, browsing all interfaces")
		} else {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}

	return opts
}

// Run browses every configured service type until ctx is done. Browse errors other than cancellation are joined and
// returned.
func (s *Source) Run(ctx context.Context) error {
	domain := s.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for service, integration := range s.Services {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := s.browseService(ctx, service, domain, integration); err != nil && !errors.Is(err, context.Canceled) {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errors.Join(errs...)
}

func (s *Source) browseService(ctx context.Context, service, domain, integration string) error {
	l := s.log.With(slog.String("service", service), log.Domain(integration))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	browseErr := make(chan error, 1)
	go func() {
		browseErr <- s.browse(ctx, service, domain, entries, removed, s.options()...)
	}()

	l.Debug("Browsing")
	seen := map[string]struct{}{}
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err := <-browseErr:
			if err != nil {
				l.With(log.Error(err)).Error("Browse failed")
			}
			return err
		case entry, ok := <-entries:
			if !ok {
				entries = nil
				continue
			}

			if _, dup := seen[entry.Instance]; dup {
				continue
			}
			seen[entry.Instance] = struct{}{}

			s.discovered(ctx, l.With(slog.String("instance", entry.Instance)), integration)
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}

			delete(seen, entry.Instance)
		}
	}
}

func (s *Source) discovered(ctx context.Context, l *slog.Logger, integration string) {
	result, err := s.flows.Discover(ctx, s.entries, integration, hglue.SourceZeroconf)
	if err != nil {
		l.With(log.Error(err)).Warn("Failed to start discovery flow")
		return
	}

	l.With(slog.Any("result", result)).Info("Discovered service")
}
