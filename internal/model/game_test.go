package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTransitions(t *testing.T) {
	mainLine := []Phase{PhaseLobby, PhaseQuestionInput, PhaseAnswering, PhaseVoting, PhaseScoring, PhaseRoundEnd, PhaseQuestionInput}
	for i := 0; i+1 < len(mainLine); i++ {
		assert.True(t, mainLine[i].CanTransitionTo(mainLine[i+1]), "%s -> %s", mainLine[i], mainLine[i+1])
	}

	assert.True(t, PhaseScoring.CanTransitionTo(PhaseGameOver))
	assert.False(t, PhaseLobby.CanTransitionTo(PhaseAnswering))
	assert.False(t, PhaseVoting.CanTransitionTo(PhaseAnswering))
	assert.False(t, PhaseRoundEnd.CanTransitionTo(PhaseGameOver))
}

func TestTerminalPhasesHaveNoExits(t *testing.T) {
	all := []Phase{PhaseLobby, PhaseQuestionInput, PhaseAnswering, PhaseVoting, PhaseScoring, PhaseRoundEnd, PhaseGameOver, PhaseAbandoned}
	for _, from := range []Phase{PhaseGameOver, PhaseAbandoned} {
		assert.True(t, from.IsTerminal())
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	for _, p := range all[:6] {
		assert.False(t, p.IsTerminal())
		assert.True(t, p.CanTransitionTo(PhaseAbandoned), "%s can be abandoned", p)
	}
}

func TestTimedPhases(t *testing.T) {
	assert.True(t, PhaseAnswering.IsTimed())
	assert.True(t, PhaseVoting.IsTimed())
	assert.True(t, PhaseRoundEnd.IsTimed())
	assert.False(t, PhaseLobby.IsTimed())
	assert.False(t, PhaseScoring.IsTimed())
}

func TestNormalizeGameCode(t *testing.T) {
	assert.Equal(t, GameCode("ABC234"), NormalizeGameCode("  abc234 "))
}

func TestGameAdvanceReturnsCopy(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	endsAt := now.Add(time.Minute)
	game := &Game{ID: "g", Phase: PhaseQuestionInput, TotalRounds: 2, CurrentRound: 1}

	next, err := game.Advance(PhaseAnswering, now, &endsAt)
	require.NoError(t, err)

	assert.Equal(t, PhaseQuestionInput, game.Phase)
	assert.Equal(t, PhaseAnswering, next.Phase)
	assert.Equal(t, &endsAt, next.PhaseEndsAt)
	assert.Equal(t, now, next.UpdatedAt)
	assert.True(t, next.RoundsRemaining())
}

func TestGameAdvanceRejectsIllegalEdge(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	game := &Game{ID: "g", Phase: PhaseVoting}

	next, err := game.Advance(PhaseAnswering, now, nil)
	assert.ErrorIs(t, err, ErrWrongPhase)
	assert.Nil(t, next)

	_, err = (&Game{Phase: PhaseGameOver}).Advance(PhaseAbandoned, now, nil)
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestRoundQuestionFor(t *testing.T) {
	round := &Round{OriginalQuestion: "o", ImpostorQuestion: "i", ImpostorID: "p-2"}

	role, q := round.QuestionFor("p-2")
	assert.Equal(t, RoleImpostor, role)
	assert.Equal(t, "i", q)

	role, q = round.QuestionFor("p-1")
	assert.Equal(t, RoleOriginal, role)
	assert.Equal(t, "o", q)
}
