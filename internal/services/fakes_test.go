package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/musician-app/apiserver/internal/engine"
	"github.com/musician-app/apiserver/internal/storage"
	"github.com/musician-app/apiserver/internal/store"
	"github.com/musician-app/apiserver/types"
)

// fakeUsers is an in-memory UserRepository.
type fakeUsers struct {
	mu      sync.Mutex
	byID    map[string]types.User
	debits  []int64
	syncs   int
	nextSeq int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]types.User)}
}

func (f *fakeUsers) add(user types.User) types.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[user.ID] = user
	return user
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUsers) GetByPlatformID(_ context.Context, platformUserID string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byID {
		if user.PlatformUserID == platformUserID {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUsers) UpsertByPlatformID(_ context.Context, platformUserID, username string, tier types.Tier, initialCredits int64) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byID {
		if user.PlatformUserID == platformUserID {
			return user, nil
		}
	}
	f.nextSeq++
	user := types.User{
		ID:             fmt.Sprintf("user_%d", f.nextSeq),
		PlatformUserID: platformUserID,
		Username:       username,
		Tier:           tier,
		Credits:        initialCredits,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.byID[user.ID] = user
	return user, nil
}

func (f *fakeUsers) SyncTier(_ context.Context, userID string, tier types.Tier, baselineCredits int64) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if user.Tier != tier && user.Credits < baselineCredits {
		user.Credits = baselineCredits
	}
	user.Tier = tier
	f.byID[userID] = user
	f.syncs++
	return user, nil
}

func (f *fakeUsers) DecrementCredits(_ context.Context, userID string, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byID[userID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if user.Credits < amount {
		return 0, store.ErrInsufficientCredits
	}
	user.Credits -= amount
	f.byID[userID] = user
	f.debits = append(f.debits, amount)
	return user.Credits, nil
}

// fakeJobs is an in-memory JobRepository with monotonic status transitions.
type fakeJobs struct {
	mu   sync.Mutex
	byID map[string]types.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{byID: make(map[string]types.Job)}
}

func (f *fakeJobs) Upsert(_ context.Context, job types.Job) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byID[job.ID]; ok {
		return existing, nil
	}
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.byID[job.ID] = job
	return job, nil
}

func (f *fakeJobs) GetOwned(_ context.Context, id, userID string) (types.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.byID[id]
	if !ok || job.UserID != userID {
		return types.Job{}, store.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) SetStatus(_ context.Context, id string, status types.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.byID[id]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.Status = status
	f.byID[id] = job
	return nil
}

func (f *fakeJobs) MarkCompleted(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.byID[id]
	if !ok || job.Status.Terminal() {
		return false, nil
	}
	job.Status = types.JobCompleted
	job.CompletedAt.Time = time.Now()
	job.CompletedAt.Valid = true
	f.byID[id] = job
	return true, nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.byID[id]
	if !ok || job.Status.Terminal() {
		return nil
	}
	job.Status = types.JobFailed
	job.Error.String = message
	job.Error.Valid = true
	f.byID[id] = job
	return nil
}

// fakeAssets is an in-memory AssetRepository with (job, take) idempotence.
type fakeAssets struct {
	mu      sync.Mutex
	assets  []types.Asset
	nextSeq int
}

func newFakeAssets() *fakeAssets { return &fakeAssets{} }

func (f *fakeAssets) CreateIfAbsent(_ context.Context, asset types.Asset) (types.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.assets {
		if existing.JobID == asset.JobID && existing.TakeIndex == asset.TakeIndex {
			return existing, nil
		}
	}
	f.nextSeq++
	asset.ID = fmt.Sprintf("asset_%d", f.nextSeq)
	asset.CreatedAt = time.Now()
	f.assets = append(f.assets, asset)
	return asset, nil
}

func (f *fakeAssets) GetOwned(_ context.Context, id, userID string) (types.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, asset := range f.assets {
		if asset.ID == id && asset.UserID == userID {
			return asset, nil
		}
	}
	return types.Asset{}, store.ErrNotFound
}

func (f *fakeAssets) ListByUser(_ context.Context, userID string, limit int) ([]types.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Asset
	for i := len(f.assets) - 1; i >= 0 && len(out) < limit; i-- {
		if f.assets[i].UserID == userID {
			out = append(out, f.assets[i])
		}
	}
	return out, nil
}

func (f *fakeAssets) ListByJob(_ context.Context, jobID string) ([]types.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Asset
	for _, asset := range f.assets {
		if asset.JobID == jobID {
			out = append(out, asset)
		}
	}
	return out, nil
}

// fakeEvents is an in-memory EventRepository.
type fakeEvents struct {
	mu     sync.Mutex
	events []struct {
		userID    string
		eventType types.EventType
	}
}

func newFakeEvents() *fakeEvents { return &fakeEvents{} }

func (f *fakeEvents) Append(_ context.Context, userID string, eventType types.EventType, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		userID    string
		eventType types.EventType
	}{userID, eventType})
	return nil
}

func (f *fakeEvents) HasEvent(_ context.Context, userID string, eventType types.EventType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.userID == userID && e.eventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEvents) count(userID string, eventType types.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.userID == userID && e.eventType == eventType {
			n++
		}
	}
	return n
}

// fakeResolver returns a fixed entitlement.
type fakeResolver struct {
	tier types.Tier
	paid bool
}

func (f *fakeResolver) Resolve(context.Context, string) (types.Tier, bool) {
	return f.tier, f.paid
}

// fakeEngine records submissions and serves scripted job info.
type fakeEngine struct {
	mu        sync.Mutex
	createErr error
	getErr    error
	info      engine.JobInfo
	requests  []engine.GenerateRequest
	nextSeq   int
}

func (f *fakeEngine) CreateJob(_ context.Context, req engine.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.requests = append(f.requests, req)
	f.nextSeq++
	return fmt.Sprintf("job_%d", f.nextSeq), nil
}

func (f *fakeEngine) GetJob(_ context.Context, jobID string) (engine.JobInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return engine.JobInfo{}, f.getErr
	}
	info := f.info
	info.ID = jobID
	return info, nil
}

// fakeObjectStorage is an in-memory object-storage backend.
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newFakeStorage() *storage.Storage {
	return storage.NewStorage(&fakeObjectStorage{objects: make(map[string][]byte)})
}

func newStorageOver(backend *fakeObjectStorage) *storage.Storage {
	return storage.NewStorage(backend)
}

func (f *fakeObjectStorage) EnsureBucket(context.Context) error { return nil }

func (f *fakeObjectStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.puts++
	return nil
}

func (f *fakeObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }
