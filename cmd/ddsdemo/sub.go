package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamstask/go-dds/dds"
)

var subOpts struct {
	count int
	poll  time.Duration
}

var subCmd = &cobra.Command{
	Use:   "sub",
	Short: "Print received HelloWorld messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd.Context(), opts, subscribe)
	},
}

func init() {
	subCmd.Flags().IntVarP(&subOpts.count, "count", "n", 0, "exit after this many messages, 0 for no limit")
	subCmd.Flags().DurationVar(&subOpts.poll, "poll", 20*time.Millisecond, "polling interval")
}

func subscribe(ctx context.Context, n *node) error {
	topic, err := dds.NewTopic[Msg](n.participant)
	if err != nil {
		return err
	}
	r, err := dds.NewDataReader(n.participant, topic, dds.WithQos(helloQos()))
	if err != nil {
		return err
	}
	defer r.Close()
	n.watch(r)

	seen := 0
	return poll(ctx, subOpts.poll, func() (bool, error) {
		samples, err := r.Take(16)
		if err != nil {
			return false, err
		}
		for _, s := range samples {
			if !s.Info.ValidData {
				log.Debugf("instance %d is now %d", s.Info.InstanceHandle, s.Info.InstanceState)
				continue
			}
			fmt.Printf("=== [Subscriber] Received : Message (%d, %q)\n", s.Data.UserID, s.Data.Message)
			seen++
		}
		return subOpts.count > 0 && seen >= subOpts.count, nil
	})
}

// poll calls fn every interval until it is done or ctx ends.
func poll(ctx context.Context, interval time.Duration, fn func() (bool, error)) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		done, err := fn()
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}
