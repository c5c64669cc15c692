package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/map-pickban-backend/internal/engine"
)

func TestNewRoomView_HidesCredentials(t *testing.T) {
	s, err := engine.NewState("ABC123", engine.FormatBo1, "admin-secret")
	require.NoError(t, err)
	s.SideA = engine.Seat{Name: "Red", ClientID: "conn-red", Token: "seat-secret"}
	s.Observers["conn-obs"] = true

	raw, err := json.Marshal(NewRoomView(3, s))
	require.NoError(t, err)

	body := string(raw)
	for _, secret := range []string{"admin-secret", "seat-secret", "conn-red", "conn-obs"} {
		assert.NotContains(t, body, secret)
	}
	assert.Contains(t, body, `"sideA":{"name":"Red","occupied":true}`)
	assert.Contains(t, body, `"observerCount":1`)
	assert.Contains(t, body, `"version":3`)
}

func TestNewRoomView_CurrentStep(t *testing.T) {
	s, err := engine.NewState("ABC123", engine.FormatBo3, "")
	require.NoError(t, err)

	v := NewRoomView(0, s)
	assert.Nil(t, v.CurrentStep, "no step before start")
	assert.Equal(t, "pending", v.Status)
	assert.Len(t, v.Sequence, 10)
	assert.Len(t, v.RemainingMaps, len(engine.MapPool()))
	assert.NotNil(t, v.ChosenLog)

	s.Started = true
	s.Chosen = append(s.Chosen, engine.ChosenEntry{Target: "Haven", Kind: engine.ActionBan, Actor: engine.SideA})
	s.Cursor = 1
	v = NewRoomView(1, s)
	require.NotNil(t, v.CurrentStep)
	assert.Equal(t, "ban", v.CurrentStep.Action)
	assert.Equal(t, "sideB", v.CurrentStep.Side)
	assert.NotContains(t, v.RemainingMaps, "Haven")
	assert.Equal(t, "running", v.Status)
}
