package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/liamstask/go-dds/dds"
)

type nodeParams struct {
	DomainID    uint32
	ConfigPath  string
	MetricsAddr string

	debug bool
}

// node is the participant a command works with. It only becomes usable once
// the app has started.
type node struct {
	params nodeParams

	domain      *dds.Domain
	participant *dds.Participant
	stats       *dds.StatisticsCollector
	srv         *http.Server
}

func newNode(lc fx.Lifecycle, params nodeParams) *node {
	n := &node{params: params}
	lc.Append(fx.Hook{
		OnStart: n.start,
		OnStop:  n.stop,
	})
	return n
}

func (n *node) start(ctx context.Context) error {
	var err error
	if n.params.ConfigPath != "" {
		blob, rerr := os.ReadFile(n.params.ConfigPath)
		if rerr != nil {
			return fmt.Errorf("reading domain configuration: %w", rerr)
		}
		if n.domain, err = dds.NewDomain(n.params.DomainID, blob); err != nil {
			return err
		}
		n.participant, err = n.domain.CreateParticipant()
	} else {
		n.participant, err = dds.NewParticipant(n.params.DomainID)
	}
	if err != nil {
		return multierr.Append(err, n.close())
	}
	guid, err := n.participant.GUID()
	if err != nil {
		return err
	}
	log.Infof("participant %s in domain %d", guid, n.params.DomainID)

	if n.params.MetricsAddr == "" {
		return nil
	}
	n.stats = dds.NewStatisticsCollector("ddsdemo")
	reg := prometheus.NewRegistry()
	if err := reg.Register(n.stats); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", n.params.MetricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	n.srv = &http.Server{Handler: mux}
	go func() {
		if err := n.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %s", err)
		}
	}()
	log.Infof("metrics on http://%s/metrics", ln.Addr())
	return nil
}

func (n *node) stop(ctx context.Context) error {
	var err error
	if n.srv != nil {
		err = n.srv.Shutdown(ctx)
	}
	return multierr.Append(err, n.close())
}

func (n *node) close() error {
	var es []dds.Entity
	if n.participant != nil {
		es = append(es, n.participant)
	}
	if n.domain != nil {
		es = append(es, n.domain)
	}
	return dds.CloseAll(es...)
}

// watch exports the statistics of e when metrics are enabled.
func (n *node) watch(e dds.Entity) {
	if n.stats == nil {
		return
	}
	if err := n.stats.Add(e); err != nil {
		log.Warnf("statistics: %s", err)
	}
}

const stopTimeout = 5 * time.Second

// runNode starts a node, hands it to fn and stops it again once fn returns.
func runNode(ctx context.Context, params nodeParams, fn func(context.Context, *node) error) error {
	var n *node
	app := fx.New(
		fx.NopLogger,
		fx.Supply(params),
		fx.Provide(newNode),
		fx.Populate(&n),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, n)

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return multierr.Append(runErr, app.Stop(stopCtx))
}
