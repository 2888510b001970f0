package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mpesa-service/internal/gateway"
	"mpesa-service/internal/models"
	"mpesa-service/internal/repository"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var errStoreDown = errors.New("store down")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "services.db")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transaction{}, &models.CallbackLog{}))
	return db
}

func newTestStore(t *testing.T) *repository.GormTransactionStore {
	return repository.NewGormTransactionStore(newTestDB(t))
}

// brokenStore fails every write.
type brokenStore struct {
	repository.TransactionStore
}

func (brokenStore) Create(ctx context.Context, trx *models.Transaction) error {
	return errStoreDown
}

func (brokenStore) UpsertByCheckoutID(ctx context.Context, id string, patch models.TransactionPatch) (*models.Transaction, error) {
	return nil, errStoreDown
}

type fakeTokenSource struct {
	mu       sync.Mutex
	calls    int32
	token    string
	lifetime string
	err      error
	delay    time.Duration
}

func (f *fakeTokenSource) GenerateToken(ctx context.Context) (*gateway.TokenResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.TokenResponse{AccessToken: f.token, ExpiresIn: f.lifetime}, nil
}

func (f *fakeTokenSource) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

func (f *fakeTokenSource) set(token string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token, f.err = token, err
}

type staticTokens struct {
	calls int
	err   error
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "tok", nil
}

type fakeGateway struct {
	pushes   []gateway.STKPushRequest
	pushRes  *gateway.STKPushResponse
	pushErr  error
	queries  []gateway.STKQueryRequest
	queryRes *gateway.STKQueryResponse
	queryErr error
}

func (f *fakeGateway) Push(ctx context.Context, token string, req gateway.STKPushRequest) (*gateway.STKPushResponse, error) {
	f.pushes = append(f.pushes, req)
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return f.pushRes, nil
}

func (f *fakeGateway) QueryPush(ctx context.Context, token string, req gateway.STKQueryRequest) (*gateway.STKQueryResponse, error) {
	f.queries = append(f.queries, req)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.queryRes, nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	seen  map[string]bool
}

func (q *fakeQueue) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.seen == nil {
		q.seen = map[string]bool{}
	}
	key := task.Type() + ":" + string(task.Payload())
	if q.seen[key] {
		return nil, asynq.ErrTaskIDConflict
	}
	q.seen[key] = true
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
