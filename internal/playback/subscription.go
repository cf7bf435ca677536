package playback

const (
	eventBufferSize = 32
	// Buffer size of the StateChanged and Error channels.
	transitionBufferSize = 256
)

// Subscription provides event channels for a subscriber.
//
// Sends never block the controller. Once a channel's buffer is full,
// further events of that type are dropped for that subscriber until it
// catches up; other subscribers are unaffected. StateChanged and Error
// have room for transitionBufferSize events. A subscriber that may fall
// further behind should resynchronise from EventBus.Snapshot, which
// always holds the latest state.
type Subscription struct {
	StateChanged    <-chan StateChanged
	PositionChanged <-chan PositionTick
	Spectrum        <-chan SpectrumFrame
	VolumeChanged   <-chan VolumeChanged
	QueueChanged    <-chan QueueChanged
	ModeChanged     <-chan ModeChanged
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	stateCh    chan StateChanged
	positionCh chan PositionTick
	spectrumCh chan SpectrumFrame
	volumeCh   chan VolumeChanged
	queueCh    chan QueueChanged
	modeCh     chan ModeChanged
	errorCh    chan ErrorEvent
	doneCh     chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:    make(chan StateChanged, transitionBufferSize),
		positionCh: make(chan PositionTick, eventBufferSize),
		spectrumCh: make(chan SpectrumFrame, 4),
		volumeCh:   make(chan VolumeChanged, eventBufferSize),
		queueCh:    make(chan QueueChanged, eventBufferSize),
		modeCh:     make(chan ModeChanged, eventBufferSize),
		errorCh:    make(chan ErrorEvent, transitionBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.PositionChanged = s.positionCh
	s.Spectrum = s.spectrumCh
	s.VolumeChanged = s.volumeCh
	s.QueueChanged = s.queueCh
	s.ModeChanged = s.modeCh
	s.Error = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

func send[E any](ch chan E, e E) {
	select {
	case ch <- e:
	default:
		// The subscriber is behind; drop.
	}
}

func (s *Subscription) deliver(ev any) {
	switch e := ev.(type) {
	case StateChanged:
		send(s.stateCh, e)
	case PositionTick:
		send(s.positionCh, e)
	case SpectrumFrame:
		send(s.spectrumCh, e)
	case VolumeChanged:
		send(s.volumeCh, e)
	case QueueChanged:
		send(s.queueCh, e)
	case ModeChanged:
		send(s.modeCh, e)
	case ErrorEvent:
		send(s.errorCh, e)
	}
}
