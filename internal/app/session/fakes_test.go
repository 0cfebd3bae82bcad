package session

import (
	"context"
	"errors"
	"sync"

	"github.com/dentavoice/voiceclient/internal/core"
	"github.com/dentavoice/voiceclient/internal/domain"
)

// recorder keeps an ordered trace of fake side effects so tests can
// assert sequencing (e.g. old track stopped before new one published).
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) trace() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

type fakeLevelSource struct {
	mu      sync.Mutex
	resumed bool
	closed  bool
	frames  chan []int16
}

func newFakeLevelSource() *fakeLevelSource {
	return &fakeLevelSource{frames: make(chan []int16, 8)}
}

func (f *fakeLevelSource) Resume(g core.Gesture) error {
	if !g.Granted() {
		return errors.New("suspended: no user gesture")
	}
	f.mu.Lock()
	f.resumed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeLevelSource) ReadFrame() ([]int16, error) {
	frame, ok := <-f.frames
	if !ok {
		return nil, errors.New("source closed")
	}
	return frame, nil
}

func (f *fakeLevelSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	close(f.frames)
	return nil
}

func (f *fakeLevelSource) isResumed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumed
}

type fakeLocalTrack struct {
	label string
	rec   *recorder
	src   *fakeLevelSource

	mu      sync.Mutex
	stopped bool
}

func (t *fakeLocalTrack) Label() string { return t.label }

func (t *fakeLocalTrack) SampleRate() int { return 48000 }

func (t *fakeLocalTrack) PCM() <-chan []int16 { return nil }

func (t *fakeLocalTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true
	t.rec.add("stop:" + t.label)
	return nil
}

func (t *fakeLocalTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *fakeLocalTrack) Levels() core.LevelSource { return t.src }

type fakeMic struct {
	rec *recorder

	mu       sync.Mutex
	err      error
	acquired []*fakeLocalTrack
	// block, when non-nil, stalls Acquire until released; acquiring is
	// signalled first so tests can race the stalled call.
	block     chan struct{}
	acquiring chan struct{}
}

func (m *fakeMic) Acquire(_ context.Context, opts core.CaptureOptions) (core.LocalTrack, error) {
	m.mu.Lock()
	block, acquiring := m.block, m.acquiring
	m.mu.Unlock()
	if acquiring != nil {
		acquiring <- struct{}{}
	}
	if block != nil {
		<-block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if !opts.EchoCancellation || !opts.NoiseSuppression || !opts.AutoGainControl {
		return nil, errors.New("expected voice processing options")
	}
	label := "mic-" + string(rune('A'+len(m.acquired)))
	t := &fakeLocalTrack{label: label, rec: m.rec, src: newFakeLevelSource()}
	m.acquired = append(m.acquired, t)
	m.rec.add("acquire:" + label)
	return t, nil
}

func (m *fakeMic) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *fakeMic) tracks() []*fakeLocalTrack {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*fakeLocalTrack, len(m.acquired))
	copy(out, m.acquired)
	return out
}

type fakeRemoteTrack struct {
	identity domain.Identity
	src      *fakeLevelSource

	mu       sync.Mutex
	volume   float64
	detached bool
}

func newFakeRemoteTrack(id domain.Identity) *fakeRemoteTrack {
	return &fakeRemoteTrack{identity: id, src: newFakeLevelSource(), volume: 1.0}
}

func (t *fakeRemoteTrack) Participant() domain.Identity { return t.identity }

func (t *fakeRemoteTrack) SetVolume(v float64) {
	t.mu.Lock()
	t.volume = v
	t.mu.Unlock()
}

func (t *fakeRemoteTrack) Volume() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *fakeRemoteTrack) Levels() core.LevelSource { return t.src }

func (t *fakeRemoteTrack) Detach() {
	t.mu.Lock()
	t.detached = true
	t.mu.Unlock()
}

type fakeRoom struct {
	rec  *recorder
	name domain.RoomName

	mu            sync.Mutex
	present       []domain.Identity
	published     core.LocalTrack
	doublePublish bool
	sent          [][]byte
	sendErr       error
	closed        bool
	handlers      core.EventHandlers
}

func (r *fakeRoom) Name() domain.RoomName { return r.name }

func (r *fakeRoom) RemoteParticipants() []domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Identity, len(r.present))
	copy(out, r.present)
	return out
}

func (r *fakeRoom) PublishMicrophone(_ context.Context, track core.LocalTrack) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.published != nil {
		r.doublePublish = true
	}
	r.published = track
	r.rec.add("publish:" + track.Label())
	return nil
}

func (r *fakeRoom) UnpublishMicrophone() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.published != nil {
		r.rec.add("unpublish:" + r.published.Label())
		r.published = nil
	}
	return nil
}

func (r *fakeRoom) SendData(_ context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, payload)
	return nil
}

func (r *fakeRoom) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeRoom) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *fakeRoom) hadDoublePublish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doublePublish
}

func (r *fakeRoom) sentPayloads() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.sent))
	copy(out, r.sent)
	return out
}

type fakeDialer struct {
	rec *recorder

	mu      sync.Mutex
	err     error
	present []domain.Identity
	room    *fakeRoom
	// block, when non-nil, stalls Dial until released (connect races).
	block chan struct{}
}

func (d *fakeDialer) Dial(_ context.Context, _, _ string, name domain.RoomName, h core.EventHandlers) (core.RoomSession, error) {
	d.mu.Lock()
	block := d.block
	d.mu.Unlock()
	if block != nil {
		<-block
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	r := &fakeRoom{rec: d.rec, name: name, present: d.present, handlers: h}
	d.room = r
	return r, nil
}

func (d *fakeDialer) current() *fakeRoom {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.room
}

type fakeTokens struct {
	mu  sync.Mutex
	err error
}

func (f *fakeTokens) GenerateToken(_ context.Context, room domain.RoomName, id domain.Identity) (core.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Credentials{}, f.err
	}
	return core.Credentials{Token: "jwt-" + string(id), URL: "ws://localhost:7880", Room: room}, nil
}

type harness struct {
	ctl    *Controller
	tokens *fakeTokens
	dialer *fakeDialer
	mic    *fakeMic
	rec    *recorder
}

func newHarness() *harness {
	rec := &recorder{}
	tokens := &fakeTokens{}
	dialer := &fakeDialer{rec: rec}
	mic := &fakeMic{rec: rec}
	cfg := DefaultConfig()
	cfg.DeviceSettle = 0
	ctl := NewController(cfg, Deps{Tokens: tokens, Dialer: dialer, Mic: mic})
	return &harness{ctl: ctl, tokens: tokens, dialer: dialer, mic: mic, rec: rec}
}
