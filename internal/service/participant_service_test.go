package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizmine/quizmine-backend/internal/model"
)

func TestParseInvite(t *testing.T) {
	testCode, participantCode, err := ParseInvite("MATH66-ZX9QKW42")
	require.NoError(t, err)
	assert.Equal(t, "MATH66", testCode)
	assert.Equal(t, "ZX9QKW42", participantCode)

	// tokens are case-insensitive and tolerate surrounding whitespace
	testCode, participantCode, err = ParseInvite("  math66-zx9qkw42 ")
	require.NoError(t, err)
	assert.Equal(t, "MATH66", testCode)
	assert.Equal(t, "ZX9QKW42", participantCode)

	for _, bad := range []string{"", "nodash", "-ZX9QKW42", "MATH66-"} {
		_, _, err := ParseInvite(bad)
		assert.ErrorIs(t, err, ErrInvalidInvite, "input %q", bad)
	}
}

func TestAttemptGate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	gated := func(mutators ...func(*model.Test, *model.Participant)) (*model.Test, *model.Participant) {
		test := &model.Test{
			StartDate:        now.Add(-time.Hour),
			EndDate:          now.Add(time.Hour),
			ProcessingStatus: model.ProcessingReady,
		}
		participant := &model.Participant{Status: model.ParticipantStatusInvited}
		for _, m := range mutators {
			m(test, participant)
		}
		return test, participant
	}

	t.Run("open window passes both phases", func(t *testing.T) {
		test, participant := gated()
		assert.NoError(t, attemptGate(test, participant, now, false))
		assert.NoError(t, attemptGate(test, participant, now, true))
	})

	t.Run("upcoming test previews but does not start", func(t *testing.T) {
		test, participant := gated(func(tt *model.Test, _ *model.Participant) {
			tt.StartDate = now.Add(time.Minute)
		})
		assert.NoError(t, attemptGate(test, participant, now, false))
		assert.ErrorIs(t, attemptGate(test, participant, now, true), ErrTestNotOpen)
	})

	t.Run("closed window rejects the invite itself", func(t *testing.T) {
		test, participant := gated(func(tt *model.Test, _ *model.Participant) {
			tt.EndDate = now
		})
		assert.ErrorIs(t, attemptGate(test, participant, now, false), ErrTestClosed)
	})

	t.Run("unprocessed test rejects the invite", func(t *testing.T) {
		for _, status := range []model.ProcessingStatus{model.ProcessingPending, model.ProcessingFailed} {
			test, participant := gated(func(tt *model.Test, _ *model.Participant) {
				tt.ProcessingStatus = status
			})
			assert.ErrorIs(t, attemptGate(test, participant, now, false), ErrTestNotReady, "status %s", status)
		}
	})

	t.Run("spent invite rejected unless repeats allowed", func(t *testing.T) {
		test, participant := gated(func(_ *model.Test, p *model.Participant) {
			p.Status = model.ParticipantStatusTaken
		})
		require.ErrorIs(t, attemptGate(test, participant, now, false), ErrAlreadyTaken)

		test.AllowMultipleAttempts = true
		assert.NoError(t, attemptGate(test, participant, now, false))

		participant.Status = model.ParticipantStatusGraded
		assert.NoError(t, attemptGate(test, participant, now, false))
	})
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateCode(8)
		require.Len(t, code, 8)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 100 draws from a 32^8 space never collide in practice
	assert.Len(t, seen, 100)
}
