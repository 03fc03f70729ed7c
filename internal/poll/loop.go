package poll

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rileyhilliard/crmon/internal/logger"
	"github.com/rileyhilliard/crmon/internal/metrics"
	"github.com/rileyhilliard/crmon/internal/stream"
	"github.com/rileyhilliard/crmon/pkg/sshutil"
)

// DefaultRetryDelay is the pause between a command ending and its restart.
const DefaultRetryDelay = 5 * time.Second

// Kind selects which remote stream a loop follows.
type Kind int

const (
	ClusterStatus Kind = iota
	Replication
)

func (k Kind) String() string {
	switch k {
	case ClusterStatus:
		return "cluster-status"
	case Replication:
		return "replication"
	default:
		return "unknown"
	}
}

// Handler receives decoded frames. Calls are made synchronously on the loop
// goroutine, in arrival order, and must not block for long. An error return
// marks the frame as malformed; it is logged and dropped.
type Handler interface {
	OnFullStatusFrame(text string) error
	OnErrorFrame()
	OnReplicationConfigFrame(text string) error
	OnReplicationEventFrame(text string) error
	// OnOnline is called when the loop's online state actually changes.
	OnOnline(online bool)
}

// Connector hands out connections to loops.
type Connector interface {
	Get(ctx context.Context, host string) (sshutil.SSHClient, error)
	Discard(host string, client sshutil.SSHClient)
}

// Options configure a Loop.
type Options struct {
	Cluster string
	Host    string
	Kind    Kind
	Command string

	Connector Connector
	Handler   Handler
	// Gate, if set, is released on the first frame the Handler accepts.
	Gate *Gate

	RetryDelay time.Duration
	// SelfInflicted lists exit codes that do not take the host offline.
	SelfInflicted []int
	Logger        logger.Logger
}

// Loop follows one (host, kind) stream.
type Loop struct {
	opts Options
	log  logger.Logger

	online  atomic.Bool
	stopped atomic.Bool
	stop    chan struct{}
	once    sync.Once

	full *stream.Decoder
	repl *stream.ReplicationDecoder
	seen int
}

// New builds a loop. Run starts it.
func New(opts Options) *Loop {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.SelfInflicted == nil {
		opts.SelfInflicted = []int{sshutil.ExitInterrupted, sshutil.ExitKilled, sshutil.ExitTerminated}
	}
	log := opts.Logger
	if log == nil {
		log = logger.New("poll")
	}
	log = logger.With(log, "host", opts.Host)
	log = logger.With(log, "kind", opts.Kind.String())

	l := &Loop{
		opts: opts,
		log:  log,
		stop: make(chan struct{}),
	}
	if opts.Kind == Replication {
		l.repl = stream.NewReplicationDecoder()
	} else {
		l.full = stream.NewDecoder()
	}
	return l
}

// Host returns the host this loop polls.
func (l *Loop) Host() string { return l.opts.Host }

// Kind returns the stream kind.
func (l *Loop) Kind() Kind { return l.opts.Kind }

// Online reports whether the current session has produced a frame and has
// not ended abnormally since.
func (l *Loop) Online() bool { return l.online.Load() }

// Stop asks the loop to finish. An in-flight command keeps running until
// its channel closes; cancel Run's context to close it.
func (l *Loop) Stop() {
	l.stopped.Store(true)
	l.once.Do(func() { close(l.stop) })
}

// Stopped reports whether Stop was called.
func (l *Loop) Stopped() bool { return l.stopped.Load() }

// Run executes the command until Stop is called or ctx is done, restarting
// it RetryDelay after every termination.
func (l *Loop) Run(ctx context.Context) {
	l.log.Debug("loop started")
	defer l.log.Debug("loop finished")

	for l.running(ctx) {
		l.session(ctx)
		if !l.running(ctx) {
			return
		}
		metrics.PollRestarts.WithLabelValues(l.opts.Kind.String()).Inc()
		l.sleep(ctx)
	}
}

func (l *Loop) running(ctx context.Context) bool {
	return !l.Stopped() && ctx.Err() == nil
}

// session runs the remote command once.
func (l *Loop) session(ctx context.Context) {
	client, err := l.opts.Connector.Get(ctx, l.opts.Host)
	if err != nil {
		if l.running(ctx) {
			l.log.Warn("connect failed: %v", err)
		}
		l.setOnline(false)
		return
	}

	l.resetDecoder()
	code, err := client.ExecStreamContext(ctx, l.opts.Command, (*frameWriter)(l), nil)

	switch {
	case err != nil:
		l.log.Warn("command failed: %v", err)
		l.opts.Connector.Discard(l.opts.Host, client)
		l.setOnline(false)
	case slices.Contains(l.opts.SelfInflicted, code):
		l.log.Debug("command ended with reserved exit code %d", code)
	default:
		l.log.Info("command exited with code %d", code)
		l.setOnline(false)
	}
}

func (l *Loop) sleep(ctx context.Context) {
	t := time.NewTimer(l.opts.RetryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-l.stop:
	case <-ctx.Done():
	}
}

func (l *Loop) resetDecoder() {
	if l.full != nil {
		l.full.Reset()
	}
	if l.repl != nil {
		l.repl.Reset()
	}
}

func (l *Loop) setOnline(online bool) {
	if l.online.Swap(online) == online {
		return
	}
	metrics.SetOnline(l.opts.Cluster, l.opts.Host, l.opts.Kind.String(), online)
	if l.opts.Handler != nil {
		l.opts.Handler.OnOnline(online)
	}
}

// feed pushes one chunk through the decoder and dispatches what completed.
func (l *Loop) feed(chunk []byte) {
	var discarded int
	if l.full != nil {
		l.full.Append(chunk)
		if f, ok := l.full.Next(); ok {
			l.dispatch(f)
		}
		discarded = l.full.Discarded()
	} else {
		l.repl.Append(chunk)
		for _, f := range l.repl.Drain() {
			l.dispatch(f)
		}
		discarded = l.repl.Discarded()
	}
	if discarded > l.seen {
		l.log.Debug("discarded %d bytes outside frames", discarded-l.seen)
		l.seen = discarded
	}
}

func (l *Loop) dispatch(f stream.Frame) {
	kind := l.opts.Kind.String()
	metrics.FramesTotal.WithLabelValues(kind, f.Type.String()).Inc()
	l.setOnline(true)

	h := l.opts.Handler
	if h == nil {
		return
	}

	var err error
	switch f.Type {
	case stream.Error:
		h.OnErrorFrame()
		return
	case stream.FullStatus:
		err = h.OnFullStatusFrame(f.Text)
	case stream.ReplicationConfig:
		err = h.OnReplicationConfigFrame(f.Text)
	case stream.ReplicationEvent:
		err = h.OnReplicationEventFrame(f.Text)
	}
	if err != nil {
		metrics.MalformedFrames.WithLabelValues(kind).Inc()
		l.log.Warn("dropping %s frame: %v", f.Type, err)
		return
	}

	if l.opts.Gate != nil && l.opts.Gate.Release() {
		l.log.Debug("start gate released")
	}
}

// frameWriter adapts a Loop to io.Writer for the remote command's stdout.
type frameWriter Loop

func (w *frameWriter) Write(p []byte) (int, error) {
	(*Loop)(w).feed(p)
	return len(p), nil
}
