package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/musician-app/apiserver/internal/engine"
	"github.com/musician-app/apiserver/internal/mq"
	"github.com/musician-app/apiserver/internal/policy"
	"github.com/musician-app/apiserver/internal/store"
	"github.com/musician-app/apiserver/types"
	"go.uber.org/zap"
)

// ComposeService turns a generation request into a billed, access-checked,
// asynchronously processed job.
type ComposeService struct {
	users     UserRepository
	jobs      JobRepository
	events    EventRepository
	resolver  TierResolver
	engine    engine.Client
	publisher mq.Publisher
	logger    *zap.Logger
}

func NewComposeService(
	users UserRepository,
	jobs JobRepository,
	events EventRepository,
	resolver TierResolver,
	engineClient engine.Client,
	publisher mq.Publisher,
	logger *zap.Logger,
) *ComposeService {
	return &ComposeService{
		users:     users,
		jobs:      jobs,
		events:    events,
		resolver:  resolver,
		engine:    engineClient,
		publisher: publisher,
		logger:    logger,
	}
}

// ComposeResult is the outcome of an accepted generation request.
type ComposeResult struct {
	JobID          string
	UserID         string
	UsedFreeTrial  bool
	CreditsDebited int64
}

// RequestGeneration validates the request against content policy, tier
// policy and credits, submits it to the engine, and records the job.
//
// Everything before billing is free of side effects beyond lazy user
// provisioning; a validation or policy failure debits nothing, consumes no
// trial and creates no job row. The trial event is appended only after the
// engine accepted the job, so a failed submission does not burn the trial.
func (s *ComposeService) RequestGeneration(ctx context.Context, ident Identity, params types.ComposeParams) (ComposeResult, error) {
	if err := validateParams(params); err != nil {
		return ComposeResult{}, err
	}
	if err := policy.CheckPrompt(params.Vibe); err != nil {
		return ComposeResult{}, err
	}

	user, err := s.resolveUser(ctx, ident)
	if err != nil {
		return ComposeResult{}, err
	}

	tier, paid := s.resolver.Resolve(ctx, user.PlatformUserID)
	if paid {
		synced, err := s.users.SyncTier(ctx, user.ID, tier, policy.ForTier(tier).BaselineCredits)
		if err != nil {
			return ComposeResult{}, err
		}
		user = synced
	}

	trialUsed, err := s.events.HasEvent(ctx, user.ID, types.EventFreeTrialUsed)
	if err != nil {
		return ComposeResult{}, err
	}
	trialEligible := !trialUsed

	if !paid && !trialEligible {
		return ComposeResult{}, ErrPaywall
	}

	plan := policy.ForTier(types.TierBase)
	if paid {
		plan = policy.ForTier(tier)
	}
	if err := checkPolicy(plan, params); err != nil {
		return ComposeResult{}, err
	}

	// Trial requests ride free; everyone else pays per take. The debit
	// sits immediately before submission so validation failures never
	// touch the balance.
	usedTrial := !paid && trialEligible
	var debited int64
	if !usedTrial {
		cost := policy.CreditCost(plan, params.Duration, params.Batch)
		if _, err := s.users.DecrementCredits(ctx, user.ID, cost); err != nil {
			if errors.Is(err, store.ErrInsufficientCredits) {
				return ComposeResult{}, ErrInsufficientCredits
			}
			return ComposeResult{}, err
		}
		debited = cost
	}

	engineJobID, err := s.engine.CreateJob(ctx, engine.GenerateRequest{
		Prompt:     policy.AugmentPrompt(params.Vibe, params.Vocals),
		BPM:        params.BPM,
		Duration:   params.Duration,
		Structure:  params.Structure,
		Seed:       params.Seed,
		Stems:      params.Stems,
		Variations: params.Batch,
	})
	if err != nil {
		// The job row is the source of truth for submission: its
		// absence marks this debit as unreconciled.
		s.logger.Error("engine submission failed",
			zap.String("user_id", user.ID),
			zap.Int64("credits_debited", debited),
			zap.Error(err),
		)
		return ComposeResult{}, &UpstreamError{Op: "submit generation job", Err: err}
	}

	job, err := s.jobs.Upsert(ctx, types.Job{
		ID:      engineJobID,
		UserID:  user.ID,
		Status:  types.JobQueued,
		Payload: params,
	})
	if err != nil {
		return ComposeResult{}, err
	}

	if usedTrial {
		if err := s.events.Append(ctx, user.ID, types.EventFreeTrialUsed, map[string]string{"job_id": job.ID}); err != nil {
			s.logger.Error("failed to record free trial use",
				zap.String("user_id", user.ID),
				zap.String("job_id", job.ID),
				zap.Error(err),
			)
		}
	}

	s.recordRequested(ctx, user.ID, job.ID, params)

	return ComposeResult{
		JobID:          job.ID,
		UserID:         user.ID,
		UsedFreeTrial:  usedTrial,
		CreditsDebited: debited,
	}, nil
}

func (s *ComposeService) resolveUser(ctx context.Context, ident Identity) (types.User, error) {
	switch {
	case ident.UserID != "":
		user, err := s.users.GetByID(ctx, ident.UserID)
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUnauthenticated
		}
		return user, err
	case ident.PlatformUserID != "":
		username := ident.PlatformUserID
		if len(username) > 8 {
			username = username[:8]
		}
		return s.users.UpsertByPlatformID(ctx, ident.PlatformUserID, username, types.TierNone, policy.InitialCredits)
	default:
		return types.User{}, ErrUnauthenticated
	}
}

func (s *ComposeService) recordRequested(ctx context.Context, userID, jobID string, params types.ComposeParams) {
	payload := map[string]any{"job_id": jobID, "batch": params.Batch, "duration": params.Duration}
	if err := s.events.Append(ctx, userID, types.EventGenerationRequested, payload); err != nil {
		s.logger.Warn("failed to record analytics event", zap.Error(err))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, mq.TopicGenerationRequested, data, map[string]string{"user_id": userID}); err != nil {
		s.logger.Warn("failed to publish generation notification", zap.Error(err))
	}
}

func validateParams(params types.ComposeParams) error {
	switch {
	case params.Vibe == "":
		return &ValidationError{Message: "vibe is required"}
	case params.BPM < 40 || params.BPM > 220:
		return &ValidationError{Message: "bpm must be between 40 and 220"}
	case params.Duration < 5 || params.Duration > 120:
		return &ValidationError{Message: "duration must be between 5 and 120 seconds"}
	case params.Structure == "":
		return &ValidationError{Message: "structure is required"}
	case params.Batch < 1 || params.Batch > 10:
		return &ValidationError{Message: "batch must be between 1 and 10"}
	}
	return nil
}

// checkPolicy validates quotas and feature flags against the caller's plan,
// naming the minimum tier that would satisfy each violation.
func checkPolicy(plan policy.Plan, params types.ComposeParams) error {
	if params.Duration > plan.MaxDurationSeconds {
		required, ok := policy.MinTierForDuration(params.Duration)
		if !ok {
			return &ValidationError{Message: "duration exceeds every plan limit"}
		}
		return &UpgradeRequiredError{Field: "duration", RequiredTier: required}
	}
	if params.Batch > plan.MaxBatchSize {
		required, ok := policy.MinTierForBatch(params.Batch)
		if !ok {
			return &ValidationError{Message: "batch exceeds every plan limit"}
		}
		return &UpgradeRequiredError{Field: "batch", RequiredTier: required}
	}

	requested := []struct {
		feature policy.Feature
		on      bool
	}{
		{policy.FeatureVocals, params.Vocals},
		{policy.FeatureStems, params.Stems},
		{policy.FeaturePlanReuse, params.ReusePlan},
		{policy.FeatureStreaming, params.StreamingPreview},
	}
	for _, f := range requested {
		if !f.on || plan.Allows(f.feature) {
			continue
		}
		required, ok := policy.MinTierForFeature(f.feature)
		if !ok {
			return &ValidationError{Message: string(f.feature) + " is not available on any plan"}
		}
		return &UpgradeRequiredError{Field: string(f.feature), RequiredTier: required}
	}

	return nil
}
