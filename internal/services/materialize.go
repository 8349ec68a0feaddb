package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/musician-app/apiserver/internal/audio"
	"github.com/musician-app/apiserver/internal/engine"
	"github.com/musician-app/apiserver/internal/mq"
	"github.com/musician-app/apiserver/internal/storage"
	"github.com/musician-app/apiserver/types"
	"go.uber.org/zap"
)

const (
	downloadTimeout = 2 * time.Minute
	loopFadeSeconds = 0.35
)

// JobService polls the engine for job progress and, on completion, pulls the
// produced media through post-processing into durable object storage.
type JobService struct {
	jobs         JobRepository
	assets       AssetRepository
	events       EventRepository
	engine       engine.Client
	storage      *storage.Storage
	publisher    mq.Publisher
	httpClient   *http.Client
	signedURLTTL time.Duration
	logger       *zap.Logger
}

func NewJobService(
	jobs JobRepository,
	assets AssetRepository,
	events EventRepository,
	engineClient engine.Client,
	store *storage.Storage,
	publisher mq.Publisher,
	signedURLTTL time.Duration,
	logger *zap.Logger,
) *JobService {
	return &JobService{
		jobs:         jobs,
		assets:       assets,
		events:       events,
		engine:       engineClient,
		storage:      store,
		publisher:    publisher,
		httpClient:   &http.Client{Timeout: downloadTimeout},
		signedURLTTL: signedURLTTL,
		logger:       logger,
	}
}

// AssetView is an asset as delivered to clients, with time-limited URLs in
// place of storage keys.
type AssetView struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	TakeIndex int       `json:"takeIndex"`
	Title     string    `json:"title"`
	BPM       int       `json:"bpm"`
	Duration  int       `json:"duration"`
	AudioURL  string    `json:"audioUrl"`
	LoopURL   string    `json:"loopUrl"`
	StemsURL  string    `json:"stemsUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// JobResult is the response to a job poll.
type JobResult struct {
	JobID  string          `json:"jobId"`
	Status types.JobStatus `json:"status"`
	Error  string          `json:"error,omitempty"`
	Assets []AssetView     `json:"assets,omitempty"`
}

// Poll reports job progress for its owner, materializing assets when the
// engine has finished. Re-polling a terminal job never touches the engine;
// the stored row is authoritative, so results stay stable across polls.
func (s *JobService) Poll(ctx context.Context, jobID, userID string) (JobResult, error) {
	job, err := s.jobs.GetOwned(ctx, jobID, userID)
	if err != nil {
		return JobResult{}, err
	}

	if job.Status.Terminal() {
		return s.terminalResult(ctx, job)
	}

	info, err := s.engine.GetJob(ctx, job.ID)
	if err != nil {
		return JobResult{}, &UpstreamError{Op: "poll generation job", Err: err}
	}

	switch info.Status {
	case engine.StatusFailed:
		message := info.Error
		if message == "" {
			message = "generation failed"
		}
		if err := s.jobs.MarkFailed(ctx, job.ID, message); err != nil {
			return JobResult{}, err
		}
		return JobResult{JobID: job.ID, Status: types.JobFailed, Error: message}, nil

	case engine.StatusCompleted:
		return s.materialize(ctx, job, info)

	case engine.StatusProcessing:
		if err := s.jobs.SetStatus(ctx, job.ID, types.JobProcessing); err != nil {
			return JobResult{}, err
		}
		return JobResult{JobID: job.ID, Status: types.JobProcessing}, nil

	default:
		return JobResult{JobID: job.ID, Status: types.JobQueued}, nil
	}
}

func (s *JobService) terminalResult(ctx context.Context, job types.Job) (JobResult, error) {
	if job.Status == types.JobFailed {
		return JobResult{JobID: job.ID, Status: types.JobFailed, Error: job.Error.String}, nil
	}
	assets, err := s.assets.ListByJob(ctx, job.ID)
	if err != nil {
		return JobResult{}, err
	}
	views, err := s.assetViews(ctx, assets)
	if err != nil {
		return JobResult{}, err
	}
	return JobResult{JobID: job.ID, Status: types.JobCompleted, Assets: views}, nil
}

// materialize downloads every take, post-processes it, uploads the results
// and records asset rows. It is all-or-nothing: a single failed media
// download marks the whole job failed rather than delivering a partial set.
func (s *JobService) materialize(ctx context.Context, job types.Job, info engine.JobInfo) (JobResult, error) {
	assets := make([]types.Asset, 0, len(info.Takes))

	for i, take := range info.Takes {
		takeIndex := i + 1
		baseKey := fmt.Sprintf("users/%s/jobs/%s/take_%d", job.UserID, job.ID, takeIndex)

		raw, err := s.download(ctx, take.AudioURL)
		if err != nil {
			return s.failMaterialization(ctx, job, "asset download failed", err)
		}

		normalized := audio.NormalizeLoudness(ctx, raw)
		loop := audio.RenderLoop(ctx, normalized, loopFadeSeconds)

		audioKey := baseKey + ".mp3"
		loopKey := baseKey + "_loop.mp3"
		if err := s.storage.Put(ctx, audioKey, bytes.NewReader(normalized), int64(len(normalized)), "audio/mpeg"); err != nil {
			return s.failMaterialization(ctx, job, "asset upload failed", err)
		}
		if err := s.storage.Put(ctx, loopKey, bytes.NewReader(loop), int64(len(loop)), "audio/mpeg"); err != nil {
			return s.failMaterialization(ctx, job, "asset upload failed", err)
		}

		asset := types.Asset{
			UserID:     job.UserID,
			JobID:      job.ID,
			TakeIndex:  takeIndex,
			Title:      titleFromVibe(job.Payload.Vibe, takeIndex),
			BPM:        job.Payload.BPM,
			Duration:   job.Payload.Duration,
			AudioKey:   audioKey,
			LoopKey:    loopKey,
			LicenseKey: baseKey + "_license.txt",
		}

		if len(take.StemURLs) > 0 {
			stemsKey, err := s.packStems(ctx, baseKey, take.StemURLs)
			if err != nil {
				return s.failMaterialization(ctx, job, "asset download failed", err)
			}
			asset.StemsKey.String = stemsKey
			asset.StemsKey.Valid = true
		}

		created, err := s.assets.CreateIfAbsent(ctx, asset)
		if err != nil {
			return JobResult{}, err
		}
		assets = append(assets, created)
	}

	transitioned, err := s.jobs.MarkCompleted(ctx, job.ID)
	if err != nil {
		return JobResult{}, err
	}
	if transitioned {
		s.recordCompleted(ctx, job, len(assets))
	}

	views, err := s.assetViews(ctx, assets)
	if err != nil {
		return JobResult{}, err
	}
	return JobResult{JobID: job.ID, Status: types.JobCompleted, Assets: views}, nil
}

func (s *JobService) packStems(ctx context.Context, baseKey string, urls []string) (string, error) {
	files := make([]audio.File, 0, len(urls))
	for i, url := range urls {
		data, err := s.download(ctx, url)
		if err != nil {
			return "", err
		}
		files = append(files, audio.File{Name: fmt.Sprintf("stem_%d.wav", i+1), Data: data})
	}

	archive, err := audio.ZipFiles(files)
	if err != nil {
		return "", err
	}

	stemsKey := baseKey + "_stems.zip"
	if err := s.storage.Put(ctx, stemsKey, bytes.NewReader(archive), int64(len(archive)), "application/zip"); err != nil {
		return "", err
	}
	return stemsKey, nil
}

func (s *JobService) failMaterialization(ctx context.Context, job types.Job, message string, cause error) (JobResult, error) {
	s.logger.Error("materialization failed",
		zap.String("job_id", job.ID),
		zap.String("user_id", job.UserID),
		zap.Error(cause),
	)
	if err := s.jobs.MarkFailed(ctx, job.ID, message); err != nil {
		s.logger.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	return JobResult{}, &UpstreamError{Op: message, Err: cause}
}

func (s *JobService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *JobService) assetViews(ctx context.Context, assets []types.Asset) ([]AssetView, error) {
	views := make([]AssetView, 0, len(assets))
	for _, a := range assets {
		view, err := s.assetView(ctx, a)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *JobService) assetView(ctx context.Context, a types.Asset) (AssetView, error) {
	audioURL, err := s.storage.SignedURL(ctx, a.AudioKey, s.signedURLTTL)
	if err != nil {
		return AssetView{}, err
	}
	loopURL, err := s.storage.SignedURL(ctx, a.LoopKey, s.signedURLTTL)
	if err != nil {
		return AssetView{}, err
	}

	view := AssetView{
		ID:        a.ID,
		JobID:     a.JobID,
		TakeIndex: a.TakeIndex,
		Title:     a.Title,
		BPM:       a.BPM,
		Duration:  a.Duration,
		AudioURL:  audioURL,
		LoopURL:   loopURL,
		CreatedAt: a.CreatedAt,
	}
	if a.StemsKey.Valid {
		stemsURL, err := s.storage.SignedURL(ctx, a.StemsKey.String, s.signedURLTTL)
		if err != nil {
			return AssetView{}, err
		}
		view.StemsURL = stemsURL
	}
	return view, nil
}

func (s *JobService) recordCompleted(ctx context.Context, job types.Job, takeCount int) {
	payload := map[string]any{"job_id": job.ID, "takes": takeCount}
	if err := s.events.Append(ctx, job.UserID, types.EventGenerationCompleted, payload); err != nil {
		s.logger.Warn("failed to record analytics event", zap.Error(err))
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, mq.TopicGenerationCompleted, data, map[string]string{"user_id": job.UserID}); err != nil {
		s.logger.Warn("failed to publish completion notification", zap.Error(err))
	}
}

func titleFromVibe(vibe string, takeIndex int) string {
	title := strings.TrimSpace(vibe)
	if len(title) > 48 {
		title = strings.TrimSpace(title[:48])
	}
	if title == "" {
		title = "Untitled"
	}
	return fmt.Sprintf("%s (take %d)", title, takeIndex)
}
