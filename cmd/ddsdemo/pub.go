package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/liamstask/go-dds/dds"
	"github.com/liamstask/go-dds/qos"
)

var pubOpts struct {
	userID   int64
	count    int
	interval time.Duration
	waitFor  time.Duration
}

var pubCmd = &cobra.Command{
	Use:   "pub",
	Short: "Publish HelloWorld messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(cmd.Context(), opts, publish)
	},
}

func init() {
	pubCmd.Flags().Int64Var(&pubOpts.userID, "user", 1, "user id of the messages")
	pubCmd.Flags().IntVarP(&pubOpts.count, "count", "n", 10, "number of messages, 0 for no limit")
	pubCmd.Flags().DurationVarP(&pubOpts.interval, "interval", "i", time.Second, "time between messages")
	pubCmd.Flags().DurationVar(&pubOpts.waitFor, "wait-reader", 0, "wait this long for a reader before publishing")
}

func helloQos() *qos.Qos {
	q := qos.New()
	q.SetReliability(qos.Reliable, 100*time.Millisecond)
	q.SetDurability(qos.TransientLocal)
	q.SetHistory(qos.KeepLast, 8)
	return q
}

func publish(ctx context.Context, n *node) error {
	topic, err := dds.NewTopic[Msg](n.participant)
	if err != nil {
		return err
	}
	w, err := dds.NewDataWriter(n.participant, topic, dds.WithQos(helloQos()))
	if err != nil {
		return err
	}
	defer w.Close()
	n.watch(w)

	if pubOpts.waitFor > 0 {
		if err := waitForReader(ctx, w.Any(), pubOpts.waitFor); err != nil {
			return err
		}
	}

	tick := time.NewTicker(pubOpts.interval)
	defer tick.Stop()
	for i := 0; pubOpts.count == 0 || i < pubOpts.count; i++ {
		msg := Msg{UserID: pubOpts.userID, Message: fmt.Sprintf("Hello World %d", i)}
		if err := w.Write(&msg); err != nil {
			if dds.IsTransient(err) {
				log.Warnf("write %d: %s", i, err)
				continue
			}
			return err
		}
		log.Infof("wrote %q", msg.Message)
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
	return w.WaitForAcks(time.Second)
}

// waitForReader polls the publication matched status until a reader shows
// up.
func waitForReader(ctx context.Context, w *dds.AnyDataWriter, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		st, err := w.PublicationMatchedStatus()
		if err != nil {
			return err
		}
		if st.CurrentCount > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no reader within %s", timeout)
		case <-time.After(20 * time.Millisecond):
		}
	}
}
