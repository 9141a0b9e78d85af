package chaosmonkey

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memStore 内存中的JobStore，保存序列化后的Job
type memStore struct {
	mu       sync.Mutex
	jobs     map[string][]byte
	removed  map[string]bool
	closed   bool
	failures int
}

func newMemStore() *memStore {
	return &memStore{jobs: map[string][]byte{}, removed: map[string]bool{}}
}

func (m *memStore) LookupJob(_ context.Context, id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return DecodeJob(data)
}

func (m *memStore) GetDueJobs(_ context.Context, now time.Time) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("store unavailable")
	}
	return m.pending(func(job *Job) bool { return !job.NextRunTime.After(now) })
}

func (m *memStore) GetNextRunTime(_ context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs, err := m.pending(func(*Job) bool { return true })
	if err != nil || len(jobs) == 0 {
		return time.Time{}, false, err
	}
	return jobs[0].NextRunTime, true, nil
}

func (m *memStore) GetAllJobs(_ context.Context) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending(func(*Job) bool { return true })
}

func (m *memStore) AddJob(_ context.Context, job *Job) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = data
	return nil
}

func (m *memStore) UpdateJob(_ context.Context, job *Job) error {
	data, err := EncodeJob(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	m.jobs[job.ID] = data
	return nil
}

func (m *memStore) RemoveJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return ErrJobNotFound
	}
	m.removed[id] = true
	return nil
}

func (m *memStore) RemoveAllJobs(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = map[string][]byte{}
	m.removed = map[string]bool{}
	return nil
}

func (m *memStore) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) isRemoved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removed[id]
}

func (m *memStore) pending(match func(*Job) bool) ([]*Job, error) {
	res := make([]*Job, 0, len(m.jobs))
	for id, data := range m.jobs {
		if m.removed[id] {
			continue
		}
		job, err := DecodeJob(data)
		if err != nil {
			return nil, err
		}
		if match(job) {
			res = append(res, job)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].NextRunTime.Before(res[j].NextRunTime) })
	return res, nil
}

func newTestScheduler(t *testing.T, store JobStore, opts ...Options) *SchedulerCore {
	opts = append([]Options{
		WithMinWait(10 * time.Millisecond),
		WithMaxWait(100 * time.Millisecond),
		WithRetryStrategy(NewFixedRetryStrategy(10*time.Millisecond, 3)),
	}, opts...)
	return NewSchedulerCore(store, NewZapLogger(zaptest.NewLogger(t)), opts...)
}

func TestSchedulerRunsDueJob(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(t, store)

	fired := make(chan *Job, 1)
	require.NoError(t, s.Register("attack", func(_ context.Context, job *Job) error {
		fired <- job
		return nil
	}))

	job, err := s.AddJob(context.Background(), JobSpec{
		Name:    "p1",
		Func:    "attack",
		PlanID:  "plan",
		Args:    []byte(`{"ref":"a:B"}`),
		Trigger: NewDateTrigger(time.Now().Add(-time.Second)),
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	select {
	case got := <-fired:
		assert.Equal(t, job.ID, got.ID)
		assert.JSONEq(t, `{"ref":"a:B"}`, string(got.Args))
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dispatched")
	}
	require.Eventually(t, func() bool { return store.isRemoved(job.ID) }, 2*time.Second, 10*time.Millisecond)

	jobs, err := s.GetJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSchedulerWakesOnAddJob(t *testing.T) {
	store := newMemStore()
	// maxWait足够长，只有唤醒才能及时执行
	s := newTestScheduler(t, store, WithMaxWait(time.Hour))

	var calls atomic.Int32
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error {
		calls.Add(1)
		return nil
	}))
	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	_, err := s.AddJob(context.Background(), JobSpec{
		Func:    "attack",
		PlanID:  "plan",
		Trigger: NewDateTrigger(time.Now().Add(50 * time.Millisecond)),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerSurvivesPanicsAndErrors(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(t, store)

	var calls atomic.Int32
	require.NoError(t, s.Register("panic", func(context.Context, *Job) error {
		calls.Add(1)
		panic("boom")
	}))
	require.NoError(t, s.Register("fail", func(context.Context, *Job) error {
		calls.Add(1)
		return errors.New("failed")
	}))

	ids := make([]string, 0, 2)
	for _, fn := range []string{"panic", "fail"} {
		job, err := s.AddJob(context.Background(), JobSpec{
			Func:    fn,
			PlanID:  "plan",
			Trigger: NewDateTrigger(time.Now()),
		})
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	require.Eventually(t, func() bool {
		return calls.Load() == 2 && store.isRemoved(ids[0]) && store.isRemoved(ids[1])
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchedulerRetriesStoreFailures(t *testing.T) {
	store := newMemStore()
	store.failures = 2
	s := newTestScheduler(t, store)

	fired := make(chan struct{}, 1)
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error {
		fired <- struct{}{}
		return nil
	}))
	_, err := s.AddJob(context.Background(), JobSpec{
		Func:    "attack",
		PlanID:  "plan",
		Trigger: NewDateTrigger(time.Now()),
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Shutdown(context.Background())) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not dispatched after store recovered")
	}
}

func TestFinalizeReschedulesCronJob(t *testing.T) {
	store := newMemStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(t, store, WithClock(func() time.Time { return now }))
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error { return nil }))

	trigger, err := NewCronTrigger("@every 1h", time.UTC)
	require.NoError(t, err)
	job, err := s.AddJob(context.Background(), JobSpec{Func: "attack", PlanID: "plan", Trigger: trigger})
	require.NoError(t, err)
	assert.True(t, job.NextRunTime.Equal(now.Add(time.Hour)))

	require.NoError(t, s.finalize(context.Background(), job, now.Add(time.Hour)))
	got, err := store.LookupJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, got.NextRunTime.Equal(now.Add(2*time.Hour)))
	assert.False(t, store.isRemoved(job.ID))
}

func TestSchedulerRegister(t *testing.T) {
	s := newTestScheduler(t, newMemStore())
	fn := func(context.Context, *Job) error { return nil }

	require.NoError(t, s.Register("attack", fn))
	assert.ErrorIs(t, s.Register("attack", fn), ErrExecutorFuncRegistered)
}

func TestSchedulerAddJobValidation(t *testing.T) {
	s := newTestScheduler(t, newMemStore())
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error { return nil }))

	_, err := s.AddJob(context.Background(), JobSpec{Func: "missing", Trigger: NewDateTrigger(time.Now())})
	assert.ErrorIs(t, err, ErrExecutorFuncNotFound)

	_, err = s.AddJob(context.Background(), JobSpec{Func: "attack"})
	assert.ErrorIs(t, err, ErrInvalidTrigger)
}

func TestSchedulerRescheduleJob(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(t, store)
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error { return nil }))

	_, err := s.RescheduleJob(context.Background(), "missing", NewDateTrigger(time.Now()))
	assert.ErrorIs(t, err, ErrJobNotFound)

	job, err := s.AddJob(context.Background(), JobSpec{
		Func:    "attack",
		PlanID:  "plan",
		Trigger: NewDateTrigger(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	runAt := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	updated, err := s.RescheduleJob(context.Background(), job.ID, NewDateTrigger(runAt))
	require.NoError(t, err)
	assert.True(t, updated.NextRunTime.Equal(runAt))

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, got.NextRunTime.Equal(runAt))
}

func TestSchedulerStartShutdown(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(t, store)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerRunning)

	require.NoError(t, s.Shutdown(context.Background()))
	assert.False(t, s.Running())
	assert.True(t, store.closed)
}

// corruptStore 存在一条无法恢复的到期记录
type corruptStore struct {
	*memStore
	due time.Time
}

func (c *corruptStore) GetNextRunTime(context.Context) (time.Time, bool, error) {
	return c.due, true, nil
}

func TestSchedulerWaitsOnUnrestorableDueJob(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &corruptStore{memStore: newMemStore(), due: now.Add(-time.Minute)}
	s := newTestScheduler(t, store, WithClock(func() time.Time { return now }))

	assert.Equal(t, 100*time.Millisecond, s.processDueJobs(context.Background()))

	// 本轮有Job被执行时仍然使用最短等待时间
	require.NoError(t, s.Register("attack", func(context.Context, *Job) error { return nil }))
	_, err := s.AddJob(context.Background(), JobSpec{
		Func:    "attack",
		PlanID:  "plan",
		Trigger: NewDateTrigger(now.Add(-time.Second)),
	})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, s.processDueJobs(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}
