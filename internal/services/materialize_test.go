package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/musician-app/apiserver/internal/audio"
	"github.com/musician-app/apiserver/internal/engine"
	"github.com/musician-app/apiserver/internal/mq"
	"github.com/musician-app/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type jobFixture struct {
	jobs    *fakeJobs
	assets  *fakeAssets
	events  *fakeEvents
	engine  *fakeEngine
	service *JobService
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()

	// Post-processing falls back to the raw input when the tool is
	// unavailable, which keeps stored bytes deterministic here.
	prev := audio.SetFFmpegBinary("ffmpeg-unavailable-for-tests")
	t.Cleanup(func() { audio.SetFFmpegBinary(prev) })

	f := &jobFixture{
		jobs:   newFakeJobs(),
		assets: newFakeAssets(),
		events: newFakeEvents(),
		engine: &fakeEngine{},
	}
	f.service = NewJobService(f.jobs, f.assets, f.events, f.engine, newFakeStorage(), mq.Noop{}, time.Minute, zap.NewNop())
	return f
}

func (f *jobFixture) seedJob(t *testing.T, status types.JobStatus) types.Job {
	t.Helper()
	job, err := f.jobs.Upsert(context.Background(), types.Job{
		ID:     "job_1",
		UserID: "user_1",
		Status: types.JobQueued,
		Payload: types.ComposeParams{
			Vibe:     "warm lofi beat",
			BPM:      90,
			Duration: 20,
			Batch:    1,
		},
	})
	require.NoError(t, err)
	if status != types.JobQueued {
		require.NoError(t, f.jobs.SetStatus(context.Background(), job.ID, status))
		job.Status = status
	}
	return job
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("media-bytes-" + r.URL.Path))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollUnknownJobCollapsesToNotFound(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobQueued)

	// Someone else's job id reads exactly like a missing one.
	_, err := f.service.Poll(context.Background(), "job_1", "intruder")
	assert.True(t, IsNotFound(err))

	_, err = f.service.Poll(context.Background(), "job_404", "user_1")
	assert.True(t, IsNotFound(err))
}

func TestPollProcessing(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobQueued)
	f.engine.info = engine.JobInfo{Status: engine.StatusProcessing}

	result, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobProcessing, result.Status)

	job, err := f.jobs.GetOwned(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobProcessing, job.Status)
}

func TestPollCompletedMaterializesAssets(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobProcessing)
	srv := mediaServer(t)
	f.engine.info = engine.JobInfo{
		Status: engine.StatusCompleted,
		Takes: []engine.Take{
			{AudioURL: srv.URL + "/take1"},
			{AudioURL: srv.URL + "/take2", StemURLs: []string{srv.URL + "/stem1", srv.URL + "/stem2"}},
		},
	}

	result, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, result.Status)
	require.Len(t, result.Assets, 2)

	first := result.Assets[0]
	assert.Equal(t, 1, first.TakeIndex)
	assert.Contains(t, first.AudioURL, "users/user_1/jobs/job_1/take_1.mp3")
	assert.Contains(t, first.LoopURL, "take_1_loop.mp3")
	assert.Empty(t, first.StemsURL)
	assert.Equal(t, 90, first.BPM)
	assert.Equal(t, 20, first.Duration)

	second := result.Assets[1]
	assert.Contains(t, second.StemsURL, "take_2_stems.zip")

	assert.Equal(t, 1, f.events.count("user_1", types.EventGenerationCompleted))
}

func TestPollCompletedIsIdempotent(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobProcessing)
	srv := mediaServer(t)
	f.engine.info = engine.JobInfo{
		Status: engine.StatusCompleted,
		Takes:  []engine.Take{{AudioURL: srv.URL + "/take1"}},
	}

	first, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	require.Len(t, first.Assets, 1)

	// A terminal job never touches the engine again and serves the same
	// asset set.
	f.engine.getErr = assert.AnError
	second, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, first.Assets[0].ID, second.Assets[0].ID)
	assert.Len(t, f.assets.assets, 1)
	assert.Equal(t, 1, f.events.count("user_1", types.EventGenerationCompleted))
}

func TestPollEngineFailure(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobProcessing)
	f.engine.info = engine.JobInfo{Status: engine.StatusFailed, Error: "render crashed"}

	result, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, result.Status)
	assert.Equal(t, "render crashed", result.Error)

	// The failure is recorded and served on re-poll without the engine.
	f.engine.getErr = assert.AnError
	again, err := f.service.Poll(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, again.Status)
	assert.Equal(t, "render crashed", again.Error)
}

func TestPollDownloadFailureFailsWholeJob(t *testing.T) {
	f := newJobFixture(t)
	f.seedJob(t, types.JobProcessing)
	srv := mediaServer(t)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(broken.Close)

	f.engine.info = engine.JobInfo{
		Status: engine.StatusCompleted,
		Takes: []engine.Take{
			{AudioURL: srv.URL + "/take1"},
			{AudioURL: broken.URL + "/take2"},
		},
	}

	_, err := f.service.Poll(context.Background(), "job_1", "user_1")
	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)

	// No partial delivery: the job is failed outright.
	job, err := f.jobs.GetOwned(context.Background(), "job_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "asset download failed", job.Error.String)
	assert.Equal(t, 0, f.events.count("user_1", types.EventGenerationCompleted))
}

func TestTitleFromVibe(t *testing.T) {
	assert.Equal(t, "warm lofi beat (take 1)", titleFromVibe("warm lofi beat", 1))
	assert.Equal(t, "Untitled (take 2)", titleFromVibe("   ", 2))

	long := "a very long prompt describing an elaborate cinematic soundscape"
	title := titleFromVibe(long, 1)
	assert.LessOrEqual(t, len(title), 48+len(" (take 1)"))
}
