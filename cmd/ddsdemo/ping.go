package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/liamstask/go-dds/dds"
	"github.com/liamstask/go-dds/qos"
)

var pingOpts struct {
	count    int
	interval time.Duration
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round trips through an echoing reader and writer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd.Context(), opts, ping)
	},
}

func init() {
	pingCmd.Flags().IntVarP(&pingOpts.count, "count", "n", 100, "number of round trips")
	pingCmd.Flags().DurationVarP(&pingOpts.interval, "interval", "i", 10*time.Millisecond, "time between pings")
}

type pingEndpoints struct {
	w *dds.DataWriter[Ping]
	r *dds.DataReader[Ping]
}

func newPingEndpoints(p *dds.Participant, out, in *dds.Topic[Ping]) (*pingEndpoints, error) {
	q := qos.New()
	q.SetReliability(qos.Reliable, time.Second)
	q.SetHistory(qos.KeepLast, 64)
	w, err := dds.NewDataWriter(p, out, dds.WithQos(q))
	if err != nil {
		return nil, err
	}
	r, err := dds.NewDataReader(p, in, dds.WithQos(q))
	if err != nil {
		return nil, multierr.Append(err, w.Close())
	}
	return &pingEndpoints{w: w, r: r}, nil
}

func (e *pingEndpoints) Close() error {
	return dds.CloseAll(e.r, e.w)
}

func ping(ctx context.Context, n *node) error {
	pingTopic, err := dds.NewTopic[Ping](n.participant, dds.WithTopicName("ddsdemo_ping"))
	if err != nil {
		return err
	}
	pongTopic, err := dds.NewTopic[Ping](n.participant, dds.WithTopicName("ddsdemo_pong"))
	if err != nil {
		return err
	}
	pinger, err := newPingEndpoints(n.participant, pingTopic, pongTopic)
	if err != nil {
		return err
	}
	defer pinger.Close()
	echo, err := newPingEndpoints(n.participant, pongTopic, pingTopic)
	if err != nil {
		return err
	}
	defer echo.Close()
	n.watch(pinger.w)
	n.watch(echo.r)

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		// echo until the pinger has seen every reply
		return poll(ctx, time.Millisecond, func() (bool, error) {
			select {
			case <-done:
				return true, nil
			default:
			}
			samples, err := echo.r.Take(64)
			if err != nil {
				return false, err
			}
			for _, s := range samples {
				if s.Info.ValidData {
					if err := echo.w.Write(&s.Data); err != nil {
						return false, err
					}
				}
			}
			return false, nil
		})
	})

	var rtts []time.Duration
	g.Go(func() error {
		defer close(done)
		for seq := 0; seq < pingOpts.count; seq++ {
			if err := pinger.w.Write(&Ping{Seq: uint64(seq), Sent: time.Now().UnixNano()}); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pingOpts.interval):
			}
			samples, err := pinger.r.Take(64)
			if err != nil {
				return err
			}
			now := time.Now().UnixNano()
			for _, s := range samples {
				if !s.Info.ValidData {
					continue
				}
				rtts = append(rtts, time.Duration(now-s.Data.Sent))
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	report(rtts)
	return nil
}

func report(rtts []time.Duration) {
	if len(rtts) == 0 {
		fmt.Println("no replies")
		return
	}
	slices.Sort(rtts)
	fmt.Printf("%d replies, min %s, median %s, max %s\n",
		len(rtts), rtts[0], rtts[len(rtts)/2], rtts[len(rtts)-1])
}
