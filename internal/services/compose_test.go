package services

import (
	"context"
	"errors"
	"testing"

	"github.com/musician-app/apiserver/internal/mq"
	"github.com/musician-app/apiserver/internal/policy"
	"github.com/musician-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type composeFixture struct {
	users   *fakeUsers
	jobs    *fakeJobs
	events  *fakeEvents
	engine  *fakeEngine
	service *ComposeService
}

func newComposeFixture(resolver TierResolver) *composeFixture {
	f := &composeFixture{
		users:  newFakeUsers(),
		jobs:   newFakeJobs(),
		events: newFakeEvents(),
		engine: &fakeEngine{},
	}
	f.service = NewComposeService(f.users, f.jobs, f.events, resolver, f.engine, mq.Noop{}, zap.NewNop())
	return f
}

func validParams() types.ComposeParams {
	return types.ComposeParams{
		Vibe:      "warm lofi beat",
		BPM:       90,
		Duration:  20,
		Structure: "intro-verse-hook",
		Batch:     1,
	}
}

func platformIdentity() Identity {
	return Identity{PlatformUserID: "plat_user_1"}
}

func TestRequestGenerationFreeTrial(t *testing.T) {
	f := newComposeFixture(&fakeResolver{})

	result, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	require.NoError(t, err)

	assert.True(t, result.UsedFreeTrial)
	assert.Zero(t, result.CreditsDebited)
	assert.NotEmpty(t, result.JobID)
	assert.Empty(t, f.users.debits, "trial must not touch the balance")
	assert.Equal(t, 1, f.events.count(result.UserID, types.EventFreeTrialUsed))

	job, err := f.jobs.GetOwned(context.Background(), result.JobID, result.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.JobQueued, job.Status)
}

func TestRequestGenerationSecondTrialHitsPaywall(t *testing.T) {
	f := newComposeFixture(&fakeResolver{})

	first, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	require.NoError(t, err)
	require.True(t, first.UsedFreeTrial)

	_, err = f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	assert.ErrorIs(t, err, ErrPaywall)
}

func TestRequestGenerationPaidDebitsPerTake(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierMid, paid: true})

	params := validParams()
	params.Batch = 4

	result, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)
	require.NoError(t, err)

	assert.False(t, result.UsedFreeTrial)
	assert.Equal(t, int64(4), result.CreditsDebited)
	require.Len(t, f.users.debits, 1)
	assert.Equal(t, int64(4), f.users.debits[0])

	user, err := f.users.GetByID(context.Background(), result.UserID)
	require.NoError(t, err)
	assert.Equal(t, types.TierMid, user.Tier, "tier must be synced onto the record")
	assert.Equal(t, policy.ForTier(types.TierMid).BaselineCredits-4, user.Credits)
}

func TestRequestGenerationValidation(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierTop, paid: true})

	tests := []struct {
		name   string
		mutate func(*types.ComposeParams)
	}{
		{"empty vibe", func(p *types.ComposeParams) { p.Vibe = "" }},
		{"bpm too low", func(p *types.ComposeParams) { p.BPM = 39 }},
		{"bpm too high", func(p *types.ComposeParams) { p.BPM = 221 }},
		{"duration too short", func(p *types.ComposeParams) { p.Duration = 4 }},
		{"duration too long", func(p *types.ComposeParams) { p.Duration = 121 }},
		{"empty structure", func(p *types.ComposeParams) { p.Structure = "" }},
		{"zero batch", func(p *types.ComposeParams) { p.Batch = 0 }},
		{"batch too large", func(p *types.ComposeParams) { p.Batch = 11 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)

			var validErr *ValidationError
			assert.ErrorAs(t, err, &validErr)
		})
	}

	assert.Empty(t, f.users.debits, "validation failures must not debit")
	assert.Empty(t, f.engine.requests, "validation failures must not reach the engine")
}

func TestRequestGenerationBlockedPromptHasNoSideEffects(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierTop, paid: true})

	params := validParams()
	params.Vibe = "a song by Dua Lipa"

	_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)

	var promptErr *policy.PromptError
	require.ErrorAs(t, err, &promptErr)
	assert.Empty(t, f.users.debits)
	assert.Empty(t, f.engine.requests)
}

func TestRequestGenerationUpgradeRequired(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierBase, paid: true})

	tests := []struct {
		name     string
		mutate   func(*types.ComposeParams)
		field    string
		required types.Tier
	}{
		{"duration over cap", func(p *types.ComposeParams) { p.Duration = 45 }, "duration", types.TierMid},
		{"batch over cap", func(p *types.ComposeParams) { p.Batch = 5 }, "batch", types.TierMid},
		{"vocals gated", func(p *types.ComposeParams) { p.Vocals = true }, "vocals", types.TierMid},
		{"stems gated", func(p *types.ComposeParams) { p.Stems = true }, "stems", types.TierMid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)

			var upgradeErr *UpgradeRequiredError
			require.ErrorAs(t, err, &upgradeErr)
			assert.Equal(t, tt.field, upgradeErr.Field)
			assert.Equal(t, tt.required, upgradeErr.RequiredTier)
		})
	}

	assert.Empty(t, f.users.debits, "policy failures must not debit")
}

func TestRequestGenerationTrialValidatedAgainstBaseCaps(t *testing.T) {
	f := newComposeFixture(&fakeResolver{})

	params := validParams()
	params.Duration = 45

	_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)

	var upgradeErr *UpgradeRequiredError
	require.ErrorAs(t, err, &upgradeErr)
	assert.Equal(t, types.TierMid, upgradeErr.RequiredTier)

	// The rejected attempt must not consume the trial.
	result, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	require.NoError(t, err)
	assert.True(t, result.UsedFreeTrial)
}

func TestRequestGenerationInsufficientCredits(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierBase, paid: true})

	// Provision, then drain the balance.
	result, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	require.NoError(t, err)
	user, err := f.users.GetByID(context.Background(), result.UserID)
	require.NoError(t, err)
	_, err = f.users.DecrementCredits(context.Background(), user.ID, user.Credits)
	require.NoError(t, err)

	requestsBefore := len(f.engine.requests)
	_, err = f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Len(t, f.engine.requests, requestsBefore, "a failed debit must not reach the engine")
}

func TestRequestGenerationEngineFailureKeepsTrial(t *testing.T) {
	f := newComposeFixture(&fakeResolver{})
	f.engine.createErr = errors.New("engine down")

	_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)

	// The trial is only burned by a successful submission.
	f.engine.createErr = nil
	result, err := f.service.RequestGeneration(context.Background(), platformIdentity(), validParams())
	require.NoError(t, err)
	assert.True(t, result.UsedFreeTrial)
}

func TestRequestGenerationAugmentsPromptForVocals(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierTop, paid: true})

	params := validParams()
	params.Vocals = true

	_, err := f.service.RequestGeneration(context.Background(), platformIdentity(), params)
	require.NoError(t, err)

	require.Len(t, f.engine.requests, 1)
	assert.Equal(t, "warm lofi beat +with vocals", f.engine.requests[0].Prompt)
}

func TestRequestGenerationAnonymousRejected(t *testing.T) {
	f := newComposeFixture(&fakeResolver{tier: types.TierTop, paid: true})

	_, err := f.service.RequestGeneration(context.Background(), Identity{}, validParams())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
