package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReapRemovesDeadEntities(t *testing.T) {
	w := NewWorld()
	ctx := context.Background()
	for _, cmd := range []string{
		`summon zombie 0 64 -10 {Tags:["weak"],Health:5f}`,
		`summon zombie 0 64 10 {Tags:["strong"],Health:20f}`,
	} {
		_, err := w.Send(ctx, cmd)
		require.NoError(t, err)
	}

	var dead int
	w.Update(func(w *World) {
		for _, e := range w.All() {
			e.Health -= 10
		}
		dead = w.Reap()
	})
	assert.Equal(t, 1, dead)
	assert.Equal(t, 1, w.Count())

	_, found := w.Lookup("weak")
	assert.False(t, found)
	e, found := w.Lookup("strong")
	require.True(t, found)
	assert.InDelta(t, 10.0, e.Health, 1e-9)

	res, err := w.Send(ctx, "data get entity @e[tag=weak,limit=1] Health")
	require.NoError(t, err)
	assert.Equal(t, "No entity was found", res.Raw)
}

func TestReapKeepsTheLiving(t *testing.T) {
	w := NewWorld()
	_, err := w.Send(context.Background(), `summon pig 1 64 1 {Tags:["p"]}`)
	require.NoError(t, err)

	w.Update(func(w *World) { assert.Zero(t, w.Reap()) })
	assert.Equal(t, 1, w.Count())
}
