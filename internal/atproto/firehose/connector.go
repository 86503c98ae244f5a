package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/events"
	"github.com/bluesky-social/indigo/events/schedulers/parallel"
	"github.com/gorilla/websocket"
)

// reconnectDelay is the wait between relay connection attempts.
const reconnectDelay = 5 * time.Second

// Connector owns the relay connection: it dials the subscribeRepos
// endpoint, runs the event stream through a bounded worker pool, and
// reconnects forever until its context is canceled. Replay across process
// restarts is out of scope; reconnects within one process resume from the
// last sequence the consumer saw.
type Connector struct {
	relayHost string
	workers   int
	queueSize int
	consumer  *Consumer
}

// NewConnector builds a connector for the given relay host, e.g.
// "wss://bsky.network". The pool size bounds concurrent commit handling.
func NewConnector(relayHost string, workers, queueSize int, consumer *Consumer) *Connector {
	if workers <= 0 {
		workers = 100
	}
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &Connector{
		relayHost: strings.TrimSuffix(relayHost, "/"),
		workers:   workers,
		queueSize: queueSize,
		consumer:  consumer,
	}
}

// Run consumes the firehose until ctx is canceled, reconnecting after
// connection-level failures. Record-level failures never reach here.
func (c *Connector) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("firehose connection lost, reconnecting", "relay", c.relayHost, "delay", reconnectDelay, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// connect dials the relay and blocks handling the stream until it breaks.
func (c *Connector) connect(ctx context.Context) error {
	u := c.relayHost + "/xrpc/com.atproto.sync.subscribeRepos"
	if seq := c.consumer.LastSeq(); seq > 0 {
		u = fmt.Sprintf("%s?cursor=%d", u, seq)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, http.Header{})
	if err != nil {
		return fmt.Errorf("dialing relay: %w", err)
	}
	defer conn.Close()

	slog.Info("connected to firehose", "relay", c.relayHost, "workers", c.workers, "resume_seq", c.consumer.LastSeq())

	rsc := &events.RepoStreamCallbacks{
		RepoCommit: func(evt *comatproto.SyncSubscribeRepos_Commit) error {
			return c.consumer.HandleCommit(ctx, evt)
		},
	}
	sched := parallel.NewScheduler(c.workers, c.queueSize, conn.RemoteAddr().String(), rsc.EventHandler)
	defer sched.Shutdown()

	return events.HandleRepoStream(ctx, conn, sched, slog.Default())
}
