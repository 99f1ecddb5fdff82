package crawler

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmulateBrowsingMovesAndScrollsToBottom(t *testing.T) {
	site := newFakeSite()
	page := &fakePage{site: site, url: shop + "/products/aloe"}
	e := NewEmulator(HumanPolicy{MouseMoves: 1, ScrollStepMin: 150, ScrollStepMax: 250}, DelayPolicy{}, rand.New(rand.NewPCG(1, 2)))

	require.NoError(t, e.EmulateBrowsing(context.Background(), page))

	require.Len(t, page.moves, 2, "at least two moves even when fewer are configured")
	assert.NotEqual(t, page.moves[0], page.moves[1])
	for _, m := range page.moves {
		assert.GreaterOrEqual(t, m[0], 0.0)
		assert.Less(t, m[0], 800.0)
		assert.GreaterOrEqual(t, m[1], 0.0)
		assert.Less(t, m[1], 600.0)
	}
	assert.GreaterOrEqual(t, page.scrollY+600, 999.0, "scrolled until the document end")
}

func TestEmulateBrowsingStopsAtStepLimit(t *testing.T) {
	page := &fakePage{site: newFakeSite()}
	e := NewEmulator(HumanPolicy{ScrollStepMin: 10, ScrollStepMax: 10, MaxScrollSteps: 3}, DelayPolicy{}, nil)

	require.NoError(t, e.EmulateBrowsing(context.Background(), page))
	assert.Equal(t, 30.0, page.scrollY)
}

func TestEmulateBrowsingHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	page := &fakePage{site: newFakeSite()}
	e := NewEmulator(HumanPolicy{ScrollPause: DelayPolicy{Min: time.Hour, Max: time.Hour}}, DelayPolicy{}, nil)

	assert.ErrorIs(t, e.EmulateBrowsing(ctx, page), context.Canceled)
}

func TestDelayPolicyStaysInBounds(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	p := DelayPolicy{Min: 2 * time.Second, Max: 5 * time.Second}
	for range 1000 {
		d := p.draw(r)
		assert.GreaterOrEqual(t, d, p.Min)
		assert.LessOrEqual(t, d, p.Max)
	}
	assert.Equal(t, time.Second, DelayPolicy{Min: time.Second, Max: time.Second}.draw(r))
}

func TestPauseReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewEmulator(HumanPolicy{}, DelayPolicy{Min: time.Hour, Max: time.Hour}, nil)
	go cancel()

	start := time.Now()
	assert.ErrorIs(t, e.Pause(ctx), context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
}
