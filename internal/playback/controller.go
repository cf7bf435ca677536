// Package playback owns the playback state machine.
//
// A Controller runs on a single goroutine. It takes Commands from a
// CommandBus in submission order, drives the decode worker, the stream
// buffer and the audio sink, and publishes what happened on an EventBus.
// Nothing else writes playback state; other components read Snapshots and
// Events.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/llehouerou/cadence/internal/playlist"
	"github.com/llehouerou/cadence/internal/sink"
	"github.com/llehouerou/cadence/internal/spectrum"
	"github.com/llehouerou/cadence/internal/stream"
)

// Config holds controller settings.
type Config struct {
	// Tick is the position polling interval and the PositionTick rate limit.
	Tick time.Duration
	// AutoAdvance plays the next queue entry when a track finishes.
	AutoAdvance bool
	// RestartThreshold is how far into a track Previous restarts it
	// instead of going back.
	RestartThreshold time.Duration
	// InitialVolume is applied at construction.
	InitialVolume float64
	// CommandBacklog is the CommandBus capacity.
	CommandBacklog int
	// Spectrum enables the analyzer with the given settings.
	Spectrum *spectrum.Config
}

// DefaultConfig returns the default controller settings.
func DefaultConfig() Config {
	return Config{
		Tick:             250 * time.Millisecond,
		AutoAdvance:      true,
		RestartThreshold: 3 * time.Second,
		InitialVolume:    1,
		CommandBacklog:   64,
	}
}

// Deps are the components the controller drives.
type Deps struct {
	Sink   *sink.Sink
	Buffer *stream.Buffer
	Open   Opener
	Logger *slog.Logger
}

// session is the loaded track and the work attached to it.
type session struct {
	track      *Track
	format     beep.Format
	src        Source  // set while no worker holds it
	worker     *worker // nil until decoding starts
	cancelLoad context.CancelFunc
	deferred   []Command // received while loading
	wantPaused bool      // play intent to restore after a seek
	decodeErr  error     // mid-stream failure of the current generation, surfaced once the buffer drains
}

// Controller is the single writer of playback state.
type Controller struct {
	cfg      Config
	sink     *sink.Sink
	buf      *stream.Buffer
	open     Opener
	analyzer *spectrum.Analyzer
	logger   *slog.Logger

	commands *CommandBus
	events   *EventBus
	results  chan result

	// Owned by Run.
	ctx     context.Context
	wg      sync.WaitGroup
	gen     uint64
	state   State
	queue   *playlist.Queue[Track]
	sess    *session
	lastPos time.Duration
}

// New creates a controller. Call Run to start it.
func New(deps Deps, cfg Config) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = d.Tick
	}
	if cfg.RestartThreshold < 0 {
		cfg.RestartThreshold = d.RestartThreshold
	}
	if cfg.CommandBacklog <= 0 {
		cfg.CommandBacklog = d.CommandBacklog
	}

	c := &Controller{
		cfg:      cfg,
		sink:     deps.Sink,
		buf:      deps.Buffer,
		open:     deps.Open,
		logger:   logger.With("component", "playback"),
		commands: NewCommandBus(cfg.CommandBacklog),
		events:   NewEventBus(),
		results:  make(chan result, 16),
		ctx:      context.Background(),
		state:    stopped(),
		queue:    playlist.NewQueue[Track](),
	}
	if cfg.Spectrum != nil {
		c.analyzer = spectrum.New(*cfg.Spectrum, c.sink.PositionFor, c.publishSpectrum, logger)
	}
	vol := c.sink.SetVolume(cfg.InitialVolume)
	c.events.update(func(s *Snapshot) { s.Volume = vol })
	return c
}

// Commands returns the bus commands are submitted on.
func (c *Controller) Commands() *CommandBus { return c.commands }

// Events returns the bus events are published on.
func (c *Controller) Events() *EventBus { return c.events }

// Run processes commands until ctx is done, the command bus is closed or a
// Quit command arrives. On return playback is stopped, every background
// goroutine has exited, the sink is closed and all subscriptions are done.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.ctx = ctx
	defer c.shutdown(cancel)

	if c.analyzer != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			_ = c.analyzer.Run(ctx)
		}()
	}

	tick := time.NewTicker(c.cfg.Tick)
	defer tick.Stop()

	c.logger.Info("playback controller started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.commands.done:
			return nil
		case cmd := <-c.commands.ch:
			if _, quit := cmd.(Quit); quit {
				c.logger.Info("quit requested")
				return nil
			}
			c.apply(cmd)
		case r := <-c.results:
			c.handleResult(r)
		case <-c.sink.Notify():
			c.handleSinkNotify()
		case <-tick.C:
			c.handleTick()
		}
	}
}

func (c *Controller) shutdown(cancel context.CancelFunc) {
	c.stop()
	cancel()
	c.wg.Wait()
	if err := c.sink.Close(); err != nil {
		c.logger.Warn("closing audio device", "err", err)
	}
	c.commands.Close()
	c.events.Close()
	c.logger.Info("playback controller stopped")
}

func (c *Controller) apply(cmd Command) {
	switch cmd := cmd.(type) {
	case Play:
		c.play(cmd)
	case Pause:
		c.pause(cmd)
	case TogglePause:
		switch c.state.Status {
		case StatusPlaying:
			c.pause(Pause{})
		case StatusLoading:
			c.sess.deferred = append(c.sess.deferred, cmd)
		case StatusSeeking:
			c.sess.wantPaused = !c.sess.wantPaused
		default:
			c.play(Play{})
		}
	case Stop:
		c.stop()
	case Seek:
		c.seekTo(cmd)
	case SeekBy:
		c.seekBy(cmd)
	case SetVolume:
		c.setVolume(cmd.Volume)
	case LoadAndPlay:
		c.queue.PlayNext(cmd.Track)
		c.stop()
		c.load(TriggerLoadAndPlay, cmd.Track)
	case Skip:
		c.skip()
	case Previous:
		c.previous()
	case Enqueue:
		c.queue.Add(cmd.Tracks...)
		c.publishQueue()
	case ClearQueue:
		c.queue.Clear()
		c.publishQueue()
	case SetRepeat:
		if cmd.Mode < RepeatOff || cmd.Mode > RepeatOne {
			c.reject(cmd, "unknown repeat mode")
			return
		}
		c.queue.SetRepeatMode(cmd.Mode)
		c.publishMode()
	case SetShuffle:
		c.queue.SetShuffle(cmd.Enabled)
		c.publishMode()
	default:
		c.reject(cmd, "unknown command")
	}
}

func (c *Controller) play(cmd Play) {
	switch c.state.Status {
	case StatusPaused:
		c.sink.SetPaused(false)
		c.transition(TriggerPlay, playing(c.state.Track, c.state.Position))
	case StatusPlaying:
	case StatusLoading:
		c.sess.deferred = append(c.sess.deferred, cmd)
	case StatusSeeking:
		c.sess.wantPaused = false
	default:
		t, ok := c.queue.Current()
		if !ok {
			t, ok = c.queue.Next()
		}
		if !ok {
			c.reject(cmd, "queue is empty")
			return
		}
		c.stop()
		c.load(TriggerLoadAndPlay, t)
	}
}

func (c *Controller) pause(cmd Pause) {
	switch c.state.Status {
	case StatusPlaying:
		pos := c.livePosition()
		c.sink.SetPaused(true)
		c.transition(TriggerPause, paused(c.state.Track, pos))
	case StatusPaused:
	case StatusLoading:
		c.sess.deferred = append(c.sess.deferred, cmd)
	case StatusSeeking:
		c.sess.wantPaused = true
	default:
		c.reject(cmd, "nothing is playing")
	}
}

// stop ends the current track. It is a no-op when already stopped.
func (c *Controller) stop() {
	if c.state.Status == StatusStopped && c.sess == nil {
		return
	}
	c.endSession()
	c.bumpGeneration()
	c.buf.Flush(c.gen, 0)
	c.lastPos = 0
	c.transition(TriggerStop, stopped())
}

func (c *Controller) skip() {
	c.advance(c.queue.Next)
}

// advance loads the entry next picks, or stops if there is none.
func (c *Controller) advance(next func() (Track, bool)) {
	t, ok := next()
	if !ok {
		c.endSession()
		c.bumpGeneration()
		c.buf.Flush(c.gen, 0)
		c.lastPos = 0
		c.transition(TriggerSkip, stopped())
		return
	}
	c.load(TriggerSkip, t)
}

func (c *Controller) previous() {
	switch c.state.Status {
	case StatusPlaying, StatusPaused, StatusSeeking:
		if c.currentPosition() > c.cfg.RestartThreshold || !c.queue.HasPrevious() {
			c.seek(0)
			return
		}
	}
	prev, ok := c.queue.Previous()
	if !ok {
		c.play(Play{})
		return
	}
	if c.state.Status == StatusStopped {
		c.load(TriggerLoadAndPlay, prev)
		return
	}
	c.load(TriggerSkip, prev)
}

// load starts loading t, replacing whatever is current.
func (c *Controller) load(trigger Trigger, t Track) {
	c.endSession()
	c.bumpGeneration()
	c.buf.Flush(c.gen, t.SampleRate)
	c.lastPos = 0

	tr := t
	ctx, cancel := context.WithCancel(c.ctx)
	c.sess = &session{track: &tr, cancelLoad: cancel}
	c.wg.Add(1)
	go c.loadSource(ctx, c.gen, tr.Path)

	c.logger.Info("loading track", "path", tr.Path, "generation", c.gen)
	c.transition(trigger, loading(&tr))
	c.publishQueue()
}

func (c *Controller) seekTo(cmd Seek) {
	if cmd.Path != "" && (c.sess == nil || c.sess.track.Path != cmd.Path) {
		c.reject(cmd, "seek target is not the current track")
		return
	}
	switch c.state.Status {
	case StatusLoading:
		c.sess.deferred = append(c.sess.deferred, cmd)
	case StatusPlaying, StatusPaused, StatusSeeking:
		c.seek(cmd.Target)
	default:
		c.reject(cmd, "nothing to seek in")
	}
}

func (c *Controller) seekBy(cmd SeekBy) {
	switch c.state.Status {
	case StatusLoading:
		c.sess.deferred = append(c.sess.deferred, cmd)
	case StatusPlaying, StatusPaused, StatusSeeking:
		c.seek(c.currentPosition() + cmd.Offset)
	default:
		c.reject(cmd, "nothing to seek in")
	}
}

// seek restarts decoding at target in a new generation. The sink is
// detached until the decoder reports where it landed.
func (c *Controller) seek(target time.Duration) {
	s := c.sess
	target = max(target, 0)
	if d := s.track.Duration(); d > 0 {
		target = min(target, d)
	}
	if c.state.Status != StatusSeeking {
		s.wantPaused = c.state.Status == StatusPaused
	}
	// A failure of the old generation says nothing about the new one.
	s.decodeErr = nil

	c.bumpGeneration()
	c.sink.Detach()
	rate := int(s.format.SampleRate)
	c.buf.Flush(c.gen, rate)
	if c.analyzer != nil {
		c.analyzer.Reset(c.gen, rate)
	}
	c.startWorker(durationToFrames(target, rate))
	c.transition(TriggerSeek, seeking(s.track, target))
}

func (c *Controller) setVolume(v float64) {
	applied := c.sink.SetVolume(v)
	if applied == c.events.Snapshot().Volume {
		return
	}
	c.events.update(func(s *Snapshot) { s.Volume = applied })
	c.events.publish(c.gen, VolumeChanged{Generation: c.gen, Volume: applied})
}

func (c *Controller) startWorker(seek int64) {
	s := c.sess
	prev := s.worker
	if prev != nil {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	w := &worker{gen: c.gen, cancel: cancel, done: make(chan Source, 1)}
	src := s.src
	s.src = nil
	s.worker = w
	c.wg.Add(1)
	go c.decode(ctx, w, prev, src, seek)
}

// endSession releases the current track and its background work.
func (c *Controller) endSession() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	c.sink.Detach()
	c.sink.SetPaused(false)
	c.release(s.worker, s.src)
}

func (c *Controller) handleResult(r result) {
	if r.gen != c.gen || c.sess == nil {
		if r.src != nil {
			_ = r.src.Close()
		}
		return
	}
	switch r.kind {
	case resultLoaded:
		c.handleLoaded(r)
	case resultSeeked:
		c.handleSeeked(r)
	case resultFailed:
		c.logger.Warn("decode failed mid-stream", "path", c.sess.track.Path, "err", r.err)
		c.sess.decodeErr = r.err
	}
}

func (c *Controller) handleLoaded(r result) {
	s := c.sess
	if r.err != nil {
		trigger := TriggerDecodeFailure
		switch KindOf(r.err) {
		case KindDeviceUnavailable, KindFormatNegotiation, KindDeviceLost:
			trigger = TriggerFatal
		}
		c.fail(trigger, "load", r.err)
		return
	}

	s.src = r.src
	s.format = r.src.Format()
	rate := int(s.format.SampleRate)
	t := *s.track
	t.SampleRate = rate
	t.Frames = int64(r.src.Len())
	s.track = &t

	c.buf.Flush(c.gen, rate)
	if c.analyzer != nil {
		c.analyzer.Reset(c.gen, rate)
	}
	c.sink.SetPaused(false)
	if err := c.sink.Attach(c.gen, s.format, 0); err != nil {
		c.fail(TriggerFatal, "load", fmt.Errorf("%w: %w", sink.ErrDeviceUnavailable, err))
		return
	}
	c.startWorker(-1)
	c.events.update(func(sn *Snapshot) { sn.Duration = t.Duration() })
	c.logger.Info("playing", "path", t.Path, "sample_rate", rate, "duration", t.Duration())
	c.transition(TriggerDecoderReady, playing(s.track, 0))

	deferred := s.deferred
	s.deferred = nil
	for _, cmd := range deferred {
		c.apply(cmd)
	}
}

func (c *Controller) handleSeeked(r result) {
	s := c.sess
	if r.err != nil {
		c.fail(TriggerFatal, "seek", r.err)
		return
	}
	pos := framesToDuration(r.pos, int(s.format.SampleRate))
	c.sink.SetPaused(s.wantPaused)
	if err := c.sink.Attach(c.gen, s.format, r.pos); err != nil {
		c.fail(TriggerFatal, "seek", fmt.Errorf("%w: %w", sink.ErrDeviceUnavailable, err))
		return
	}
	c.lastPos = pos
	if s.wantPaused {
		c.transition(TriggerSeekComplete, paused(s.track, pos))
	} else {
		c.transition(TriggerSeekComplete, playing(s.track, pos))
	}
}

func (c *Controller) handleSinkNotify() {
	if n := c.sink.TakeUnderruns(); n > 0 && c.state.Status == StatusPlaying {
		c.logger.Warn("buffer underrun", "count", n, "generation", c.gen)
		for range n {
			c.publishError(KindUnderrun, "play", ErrUnderrun)
		}
	}
	if gen, ok := c.sink.Ended(); ok && gen == c.gen && c.state.Status == StatusPlaying {
		c.finish()
	}
}

// finish handles the end of the current stream.
func (c *Controller) finish() {
	s := c.sess
	if s.decodeErr != nil {
		c.fail(TriggerFatal, "decode", s.decodeErr)
		return
	}
	t := s.track
	c.endSession()
	c.bumpGeneration()
	c.lastPos = 0
	c.transition(TriggerExhausted, finished(t))

	if c.cfg.AutoAdvance && c.queue.HasNext() {
		c.advance(c.queue.Advance)
	}
}

func (c *Controller) handleTick() {
	if c.sess != nil {
		if err := c.sink.Err(); err != nil {
			c.deviceLost(err)
			return
		}
	}
	if c.state.Status != StatusPlaying {
		return
	}
	pos := c.livePosition()
	if pos <= c.lastPos {
		return
	}
	c.lastPos = pos
	dur := c.sess.track.Duration()
	c.events.update(func(s *Snapshot) { s.Position = pos })
	c.events.publish(c.gen, PositionTick{Generation: c.gen, Position: pos, Duration: dur})
}

// deviceLost stops playback and closes the sink so the next load reopens
// the device.
func (c *Controller) deviceLost(err error) {
	c.logger.Error("audio device lost", "err", err)
	c.publishError(KindDeviceLost, "play", err)
	c.stop()
	if cerr := c.sink.Close(); cerr != nil {
		c.logger.Warn("closing audio device", "err", cerr)
	}
}

// fail moves to the Error state. Underruns and rejected commands never get
// here.
func (c *Controller) fail(trigger Trigger, op string, err error) {
	kind := KindOf(err)
	var t *Track
	if c.sess != nil {
		t = c.sess.track
	}
	c.logger.Error("playback failed", "op", op, "kind", kind, "err", err)
	c.publishError(kind, op, err)
	c.endSession()
	c.bumpGeneration()
	c.lastPos = 0
	c.transition(trigger, failed(kind, t))
}

func (c *Controller) reject(cmd Command, reason string) {
	err := fmt.Errorf("%w: %T: %s", ErrInvalidCommand, cmd, reason)
	c.logger.Warn("command rejected", "command", fmt.Sprintf("%T", cmd), "state", c.state.String(), "reason", reason)
	c.publishError(KindInvalidCommand, "command", err)
}

func (c *Controller) publishError(kind ErrorKind, op string, err error) {
	path := ""
	if c.sess != nil {
		path = c.sess.track.Path
	} else if c.state.Track != nil {
		path = c.state.Track.Path
	}
	c.events.publish(c.gen, ErrorEvent{Generation: c.gen, Kind: kind, Op: op, Path: path, Err: err})
}

func (c *Controller) publishQueue() {
	tracks := c.queue.Items()
	idx := c.queue.CurrentIndex()
	hasNext, hasPrev := c.queue.HasNext(), c.queue.HasPrevious()
	c.events.update(func(s *Snapshot) {
		s.Queue = tracks
		s.Index = idx
		s.CanNext = hasNext
		s.CanPrevious = hasPrev
	})
	c.events.publish(c.gen, QueueChanged{Generation: c.gen, Tracks: tracks, Index: idx})
}

func (c *Controller) publishMode() {
	repeat, shuffle := c.queue.RepeatMode(), c.queue.Shuffle()
	snap := c.events.Snapshot()
	if snap.Repeat == repeat && snap.Shuffle == shuffle {
		return
	}
	hasNext := c.queue.HasNext()
	c.events.update(func(s *Snapshot) {
		s.Repeat = repeat
		s.Shuffle = shuffle
		s.CanNext = hasNext
	})
	c.events.publish(c.gen, ModeChanged{Generation: c.gen, Repeat: repeat, Shuffle: shuffle})
}

func (c *Controller) publishSpectrum(f spectrum.Frame) {
	c.events.publish(f.Generation, SpectrumFrame{Generation: f.Generation, Bins: f.Bins})
}

// transition moves to the state to if trigger allows it and publishes the
// change. Moving to an equal state does nothing.
func (c *Controller) transition(trigger Trigger, to State) {
	from := c.state
	if from.Equal(to) {
		return
	}
	if !CanTransition(from.Status, trigger, to.Status) {
		c.logger.Error("transition not allowed", "from", from.String(), "to", to.String(), "trigger", trigger.String())
		return
	}
	c.state = to
	c.events.update(func(s *Snapshot) {
		s.State = to
		switch to.Status {
		case StatusPlaying, StatusPaused, StatusSeeking:
			s.Position = to.Position
		default:
			s.Position = 0
		}
		if to.Track == nil {
			s.Duration = 0
		} else {
			s.Duration = to.Track.Duration()
		}
	})
	c.logger.Debug("state changed", "from", from.String(), "to", to.String(), "trigger", trigger.String())
	c.events.publish(c.gen, StateChanged{Generation: c.gen, Previous: from, State: to})
}

func (c *Controller) bumpGeneration() {
	c.gen++
	c.events.setGeneration(c.gen)
}

// livePosition is the playback position reported by the sink, never less
// than the last published one.
func (c *Controller) livePosition() time.Duration {
	if c.sess == nil {
		return 0
	}
	frames, ok := c.sink.PositionFor(c.gen)
	if !ok {
		return max(c.lastPos, c.state.Position)
	}
	return max(framesToDuration(frames, int(c.sess.format.SampleRate)), c.lastPos)
}

// currentPosition is the position relative seeks and Previous start from.
func (c *Controller) currentPosition() time.Duration {
	switch c.state.Status {
	case StatusSeeking, StatusPaused:
		return c.state.Position
	case StatusPlaying:
		return c.livePosition()
	default:
		return 0
	}
}
