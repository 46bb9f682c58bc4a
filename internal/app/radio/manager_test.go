package radio

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/voxbox/internal/app/expansion"
	"github.com/osa030/voxbox/internal/app/notification"
	"github.com/osa030/voxbox/internal/app/playback"
	"github.com/osa030/voxbox/internal/app/queue"
	"github.com/osa030/voxbox/internal/app/scheduler"
	"github.com/osa030/voxbox/internal/app/search"
	"github.com/osa030/voxbox/internal/domain/track"
	"github.com/osa030/voxbox/internal/infra/config"
)

type stubSearcher struct {
	results map[string][]track.Track
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query string) (search.Result, error) {
	s.queries = append(s.queries, query)
	return search.Result{Query: query, Tracks: s.results[query], Source: search.SourcePrimary}, nil
}

type stubEngine struct {
	loaded []string
	seeks  []float64
	state  playback.EngineState
	total  float64
}

func (e *stubEngine) Load(id string)              { e.loaded = append(e.loaded, id) }
func (e *stubEngine) Play()                       {}
func (e *stubEngine) Pause()                      {}
func (e *stubEngine) Seek(s float64)              { e.seeks = append(e.seeks, s) }
func (e *stubEngine) Elapsed() float64            { return 0 }
func (e *stubEngine) Total() float64              { return e.total }
func (e *stubEngine) State() playback.EngineState { return e.state }

type collectStream struct {
	mu  sync.Mutex
	got []notification.Notification
}

func (c *collectStream) Send(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, *n)
	return nil
}

func (c *collectStream) errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, n := range c.got {
		if n.Type == notification.TypeError {
			out = append(out, n.Message)
		}
	}
	return out
}

func tracks(ids ...string) []track.Track {
	out := make([]track.Track, 0, len(ids))
	for _, id := range ids {
		t, _ := track.New(id, "Song "+id, "Artist")
		out = append(out, t)
	}
	return out
}

func newTestManager(t *testing.T, results map[string][]track.Track) (*Manager, *scheduler.Manual, *stubEngine, *stubSearcher) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	sched := scheduler.NewManual()
	engine := &stubEngine{state: playback.EngineUnstarted}
	searcher := &stubSearcher{results: results}
	m, err := NewManager(context.Background(), cfg, engine,
		WithScheduler(sched),
		WithSearcher(searcher),
		WithPicker(expansion.NewPicker(rand.NewSource(1), nil)),
	)
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Close)
	return m, sched, engine, searcher
}

func TestManager_EngineErrorSkipsTrack(t *testing.T) {
	m, sched, engine, _ := newTestManager(t, map[string][]track.Track{
		"shqip": tracks("A", "B", "C"),
	})
	ctx := context.Background()

	require.NoError(t, m.SubmitVoiceCommand(ctx, "shqip"))
	sched.Flush()
	assert.Equal(t, []string{"A"}, engine.loaded)

	m.EngineReady()
	engine.state = playback.EnginePlaying
	m.EngineStateChanged(playback.EnginePlaying)
	sched.Flush()

	require.NoError(t, m.SkipForward(ctx))
	assert.Equal(t, []string{"A", "B"}, engine.loaded)

	// B fails to load with "not playable here".
	engine.state = playback.EngineUnstarted
	m.EngineError(150)
	sched.Advance(1999 * time.Millisecond)
	assert.Equal(t, []string{"A", "B"}, engine.loaded)
	sched.Advance(time.Millisecond)
	assert.Equal(t, []string{"A", "B", "C"}, engine.loaded)

	st, err := m.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Cursor)
	assert.Equal(t, "(3/3)", st.Position)
	assert.Equal(t, "C", st.Current.ID)
	assert.Equal(t, "loading", st.PlaybackState)
	assert.Equal(t, "shqip", st.Marker)
}

func TestManager_StuckLoadAdvances(t *testing.T) {
	m, sched, engine, _ := newTestManager(t, map[string][]track.Track{
		"xyz": tracks("A", "B"),
	})
	require.NoError(t, m.SubmitVoiceCommand(context.Background(), "xyz"))
	sched.Flush()

	sched.Advance(11 * time.Second)
	assert.Equal(t, []string{"A", "B"}, engine.loaded)
}

func TestManager_EndedExtendsQueue(t *testing.T) {
	m, sched, engine, searcher := newTestManager(t, map[string][]track.Track{
		"xyz": tracks("A"),
	})
	// Every extension query returns A and D; A is dropped by de-duplication.
	for _, v := range expansion.Expand("xyz") {
		for _, term := range expansion.FreshnessTerms {
			searcher.results[v+" "+term] = tracks("A", "D")
		}
	}

	require.NoError(t, m.SubmitVoiceCommand(context.Background(), "xyz"))
	sched.Flush()
	engine.state = playback.EngineEnded
	m.EngineStateChanged(playback.EngineEnded)
	sched.Advance(time.Second)

	assert.Equal(t, []string{"A", "D"}, engine.loaded)
	st, err := m.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.QueueLength)
	assert.Equal(t, "xyz", st.Utterance)
	assert.Empty(t, st.Marker)
	assert.Len(t, searcher.queries, 2)
}

func TestManager_Intents(t *testing.T) {
	m, sched, engine, _ := newTestManager(t, map[string][]track.Track{
		"xyz": tracks("A", "B"),
	})
	ctx := context.Background()

	assert.ErrorIs(t, m.SubmitVoiceCommand(ctx, "  "), queue.ErrEmptyUtterance)
	assert.ErrorIs(t, m.TogglePlayback(ctx), playback.ErrNoTrack)

	require.NoError(t, m.SubmitVoiceCommand(ctx, "xyz"))
	sched.Flush()

	require.NoError(t, m.SelectAlternative(ctx, tracks("B")[0]))
	require.NoError(t, m.SkipBackward(ctx))
	assert.Equal(t, []string{"A", "B", "A"}, engine.loaded)

	assert.Error(t, m.SelectAlternative(ctx, track.Track{}))

	engine.total = 200
	engine.state = playback.EnginePlaying
	m.EngineStateChanged(playback.EnginePlaying)
	sched.Flush()
	require.NoError(t, m.SeekTo(ctx, 50))
	assert.Equal(t, []float64{100}, engine.seeks)

	require.NoError(t, m.SetAutoContinue(ctx, false))
	st, err := m.GetStatus(ctx)
	require.NoError(t, err)
	assert.False(t, st.AutoContinue)
}

func TestManager_SpeechErrors(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)
	stream := &collectStream{}
	m.NotificationManager().Subscribe(stream)

	m.HandleSpeechError("aborted")
	m.HandleSpeechError("no-speech")

	require.Eventually(t, func() bool { return len(stream.errors()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{m.config.Messages.SpeechNoSpeech}, stream.errors())
}

func TestManager_Close(t *testing.T) {
	m, _, _, _ := newTestManager(t, nil)
	m.Close()
	m.Close()

	<-m.Done()
	assert.ErrorIs(t, m.SkipForward(context.Background()), ErrClosed)
}

func TestManager_OwnedLoop(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	engine := &stubEngine{}
	m, err := NewManager(context.Background(), cfg, engine, WithSearcher(&stubSearcher{
		results: map[string][]track.Track{"q": tracks("A")},
	}))
	require.NoError(t, err)
	m.Start()
	defer m.Close()

	require.NoError(t, m.SubmitVoiceCommand(context.Background(), "q"))
	require.Eventually(t, func() bool {
		st, err := m.GetStatus(context.Background())
		return err == nil && st.Current != nil && st.Current.ID == "A"
	}, time.Second, 5*time.Millisecond)
}
