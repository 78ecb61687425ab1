package generate

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zkp2p/peercard/internal/fetch"
	"github.com/zkp2p/peercard/internal/identity"
	"github.com/zkp2p/peercard/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	aliceAddr = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	bobAddr   = common.HexToAddress("0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB")
)

type fakeResolver struct {
	ids map[string]model.ResolvedIdentity
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, input string) (model.ResolvedIdentity, error) {
	if f.err != nil {
		return model.ResolvedIdentity{}, f.err
	}
	id, ok := f.ids[input]
	if !ok {
		return model.ResolvedIdentity{}, &identity.ResolutionError{Kind: identity.NameNotFound, Input: input}
	}
	return id, nil
}

type fakeAvatars struct {
	img     image.Image
	err     error
	handles []string
	mu      sync.Mutex

	// waitFor, when set, must be closed before the avatar is returned
	waitFor chan struct{}

	// hang blocks the fetch until its context ends
	hang bool
}

func (f *fakeAvatars) FetchImage(ctx context.Context, handle string) (image.Image, error) {
	f.mu.Lock()
	f.handles = append(f.handles, handle)
	f.mu.Unlock()

	if f.hang {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", fetch.ErrAvatarUnavailable, ctx.Err())
	}
	if f.waitFor != nil {
		select {
		case <-f.waitFor:
		case <-time.After(time.Second):
			return nil, errors.New("avatar fetch was not concurrent with stats fetch")
		}
	}
	return f.img, f.err
}

type fakeStats struct {
	records map[common.Address]model.StatsRecord
	err     error
	calls   atomic.Int32

	// started is closed on the first call
	started     chan struct{}
	startedOnce sync.Once

	// gates block the lookup of an address until closed
	gates map[common.Address]chan struct{}

	// entered receives the address of a gated lookup once it blocks
	entered chan common.Address
}

func (f *fakeStats) FetchStats(ctx context.Context, addr common.Address) (model.StatsRecord, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.startedOnce.Do(func() { close(f.started) })
	}
	if gate, ok := f.gates[addr]; ok {
		if f.entered != nil {
			f.entered <- addr
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return model.StatsRecord{}, fmt.Errorf("%w: %v", fetch.ErrStatsUnavailable, ctx.Err())
		}
	}
	if f.err != nil {
		return model.StatsRecord{}, f.err
	}
	record, ok := f.records[addr]
	if !ok {
		return model.StatsRecord{}, fmt.Errorf("%w: no stats for %s", fetch.ErrStatsUnavailable, addr.Hex())
	}
	return record, nil
}

func record(volume string) model.StatsRecord {
	return model.StatsRecord{
		Volume:   decimal.RequireFromString(volume),
		Profit:   decimal.NewFromInt(5000),
		Deposits: 3,
		Currency: "USD",
		Platform: "X",
	}
}

func testAvatar() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	return img
}

type fixture struct {
	resolver *fakeResolver
	avatars  *fakeAvatars
	stats    *fakeStats
	metrics  *Metrics
	gen      *Generator
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		resolver: &fakeResolver{ids: map[string]model.ResolvedIdentity{
			"alice.eth": {Address: aliceAddr, Name: "alice.eth", DisplayLabel: "alice.eth"},
			"0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB": {Address: bobAddr, DisplayLabel: "0xBBBB...BBBB"},
		}},
		avatars: &fakeAvatars{img: testAvatar()},
		stats: &fakeStats{records: map[common.Address]model.StatsRecord{
			aliceAddr: record("250000"),
			bobAddr:   record("500"),
		}},
		metrics: NewMetrics(),
	}
	opts.Metrics = f.metrics
	f.gen = New(f.resolver, f.avatars, f.stats, opts)
	return f
}

func TestGenerate_Success(t *testing.T) {
	f := newFixture(Options{Timeout: time.Second})
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.gen.now = func() time.Time { return fixed }

	result, err := f.gen.Generate(context.Background(), Request{Handle: "@alice", Input: "alice.eth", ShowAddress: true})
	require.NoError(t, err)

	assert.Equal(t, "alice", result.Handle)
	assert.Equal(t, []string{"alice"}, f.avatars.handles)
	assert.Equal(t, aliceAddr, result.Identity.Address)
	assert.True(t, result.Card.HighVolume())
	assert.Equal(t, "alice.eth", result.Card.AddressLine())
	assert.NotNil(t, result.Card.Avatar())
	assert.Equal(t, fixed, result.GeneratedAt)
	assert.Same(t, result, f.gen.State().Current())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.generations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.highVolumeCards))
	assert.Equal(t, 250000.0, testutil.ToFloat64(f.metrics.lastVolume))
}

func TestGenerate_AddressInput(t *testing.T) {
	f := newFixture(Options{})

	result, err := f.gen.Generate(context.Background(), Request{
		Handle:      "bob",
		Input:       "  0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB ",
		ShowAddress: true,
	})
	require.NoError(t, err)

	assert.False(t, result.Card.HighVolume())
	assert.Equal(t, "0xBBBB...BBBB", result.Card.AddressLine())
	assert.Equal(t, "$500.00", result.Card.VolumeText())
}

func TestGenerate_MissingAvatarLeavesSlotEmpty(t *testing.T) {
	f := newFixture(Options{})
	f.avatars.img = nil
	f.avatars.err = fmt.Errorf("%w: alice", fetch.ErrAvatarNotFound)

	result, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	require.NoError(t, err)
	assert.Nil(t, result.Avatar)
	assert.Nil(t, result.Card.Avatar())
	assert.Zero(t, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(SourceAvatar)))
}

func TestGenerate_FailuresKeepPreviousResult(t *testing.T) {
	tests := []struct {
		name   string
		breaks func(f *fixture)
		input  string
		target error
		source string
	}{
		{
			name:   "avatar unavailable",
			breaks: func(f *fixture) { f.avatars.err = fmt.Errorf("%w: status 500", fetch.ErrAvatarUnavailable) },
			input:  "alice.eth",
			target: fetch.ErrAvatarUnavailable,
			source: SourceAvatar,
		},
		{
			name:   "name not found",
			breaks: func(f *fixture) {},
			input:  "nobody.eth",
			target: identity.ErrNameNotFound,
			source: SourceIdentity,
		},
		{
			name: "resolver unavailable",
			breaks: func(f *fixture) {
				f.resolver.err = &identity.ResolutionError{Kind: identity.ProviderUnavailable, Input: "alice.eth"}
			},
			input:  "alice.eth",
			target: identity.ErrProviderUnavailable,
			source: SourceIdentity,
		},
		{
			name:   "stats unavailable",
			breaks: func(f *fixture) { f.stats.err = fmt.Errorf("%w: status 502", fetch.ErrStatsUnavailable) },
			input:  "alice.eth",
			target: fetch.ErrStatsUnavailable,
			source: SourceStats,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(Options{})
			previous, err := f.gen.Generate(context.Background(), Request{Handle: "bob", Input: "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"})
			require.NoError(t, err)

			tt.breaks(f)
			result, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: tt.input})
			assert.ErrorIs(t, err, tt.target)
			assert.Nil(t, result)
			assert.Same(t, previous, f.gen.State().Current())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.generations.WithLabelValues(OutcomeFailure)))
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(tt.source)))
		})
	}
}

func TestGenerate_CancelledAvatarIsNotCountedAsFailure(t *testing.T) {
	f := newFixture(Options{Timeout: 5 * time.Second})
	f.avatars.hang = true
	f.stats.err = fmt.Errorf("%w: status 502", fetch.ErrStatsUnavailable)

	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	assert.ErrorIs(t, err, fetch.ErrStatsUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(SourceStats)))
	assert.Zero(t, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(SourceAvatar)))
}

func TestGenerate_AvatarTimeoutIsCounted(t *testing.T) {
	f := newFixture(Options{Timeout: 20 * time.Millisecond})
	f.avatars.hang = true

	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(SourceAvatar)))
	assert.Zero(t, testutil.ToFloat64(f.metrics.fetchErrors.WithLabelValues(SourceStats)))
}

func TestGenerate_ResolutionFailureSkipsStats(t *testing.T) {
	f := newFixture(Options{})

	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "nobody.eth"})
	require.Error(t, err)
	assert.Equal(t, identity.NameNotFound, identity.KindOf(err))
	assert.Zero(t, f.stats.calls.Load())
}

func TestGenerate_MissingInput(t *testing.T) {
	f := newFixture(Options{})

	for _, req := range []Request{
		{Handle: "", Input: "alice.eth"},
		{Handle: " @@ ", Input: "alice.eth"},
		{Handle: "alice", Input: "   "},
	} {
		_, err := f.gen.Generate(context.Background(), req)
		assert.ErrorIs(t, err, ErrMissingInput)
	}
	assert.Nil(t, f.gen.State().Current())
	assert.Zero(t, f.stats.calls.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.generations.WithLabelValues(OutcomeInvalid)))
}

func TestGenerate_AvatarRunsAlongsideStats(t *testing.T) {
	f := newFixture(Options{})
	f.stats.started = make(chan struct{})
	f.avatars.waitFor = f.stats.started

	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	require.NoError(t, err)
}

func TestGenerate_StatsTimeout(t *testing.T) {
	f := newFixture(Options{Timeout: 20 * time.Millisecond})
	f.stats.gates = map[common.Address]chan struct{}{aliceAddr: make(chan struct{})}

	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	assert.ErrorIs(t, err, fetch.ErrStatsUnavailable)
	assert.Contains(t, err.Error(), context.DeadlineExceeded.Error())
}

func TestGenerate_LastResultWins(t *testing.T) {
	f := newFixture(Options{})
	gate := make(chan struct{})
	f.stats.gates = map[common.Address]chan struct{}{aliceAddr: gate}
	f.stats.entered = make(chan common.Address, 1)

	type outcome struct {
		result *Result
		err    error
	}
	first := make(chan outcome, 1)
	go func() {
		r, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
		first <- outcome{r, err}
	}()

	// Wait until the first generation is in flight, then start a newer one
	require.Equal(t, aliceAddr, <-f.stats.entered)
	second, err := f.gen.Generate(context.Background(), Request{Handle: "bob", Input: "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB"})
	require.NoError(t, err)

	close(gate)
	stale := <-first
	assert.ErrorIs(t, stale.err, ErrSuperseded)
	assert.Nil(t, stale.result)

	assert.Same(t, second, f.gen.State().Current())
	assert.Equal(t, 1, f.gen.State().Dropped())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.generations.WithLabelValues(OutcomeSuperseded)))
}

func TestGenerator_Toggle(t *testing.T) {
	f := newFixture(Options{})

	_, err := f.gen.Toggle(false)
	assert.ErrorIs(t, err, ErrNoResult)

	shown, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth", ShowAddress: true})
	require.NoError(t, err)

	hidden, err := f.gen.Toggle(false)
	require.NoError(t, err)
	assert.Empty(t, hidden.Card.AddressLine())
	assert.Equal(t, shown.Seq, hidden.Seq)
	assert.Equal(t, shown.Card.VolumeText(), hidden.Card.VolumeText())
	assert.Same(t, hidden, f.gen.State().Current())

	// The published result is never mutated
	assert.Equal(t, "alice.eth", shown.Card.AddressLine())
	assert.Equal(t, int32(1), f.stats.calls.Load())
}

func TestNormalizeHandle(t *testing.T) {
	tests := map[string]string{
		"alice":     "alice",
		"@alice":    "alice",
		"  @alice ": "alice",
		"@@al@ice":  "alice",
		"@":         "",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHandle(in), "input %q", in)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	f := newFixture(Options{})
	_, err := f.gen.Generate(context.Background(), Request{Handle: "alice", Input: "alice.eth"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "peercard.prom")
	require.NoError(t, f.metrics.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `peercard_generations_total{outcome="success"} 1`)
	assert.Contains(t, string(data), "peercard_high_volume_cards_total 1")
}

func TestMetrics_WriteTextfileFailure(t *testing.T) {
	m := NewMetrics()
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "peercard.prom"))
	assert.Error(t, err)
}
