package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/push"
)

type fakePushTokensRepo struct {
	upsertOut *models.PushToken
	upsertErr error

	deactivateErr error

	active  []*models.PushToken
	listErr error
}

func (f *fakePushTokensRepo) Upsert(ctx context.Context, token *models.PushToken) (*models.PushToken, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	if f.upsertOut != nil {
		return f.upsertOut, nil
	}
	token.ID = "pt1"
	token.IsActive = true
	return token, nil
}

func (f *fakePushTokensRepo) Deactivate(ctx context.Context, token, userID string) error {
	return f.deactivateErr
}

func (f *fakePushTokensRepo) DeactivateByToken(ctx context.Context, token string) error {
	return nil
}

func (f *fakePushTokensRepo) ListActiveByUser(ctx context.Context, userID string) ([]*models.PushToken, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active, nil
}

func (f *fakePushTokensRepo) TouchLastUsed(ctx context.Context, token string, at time.Time) error {
	return nil
}

type fakePublisher struct {
	jobs []*push.Job
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, job *push.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func TestRegisterToken_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{pt: &fakePushTokensRepo{}}
	s := NewPushService(db, rm, nil, logging.Discard())

	token, err := s.RegisterToken(context.Background(), testUserID, "fcm-token", "android", "dev-1")
	if err != nil {
		t.Fatalf("RegisterToken error: %v", err)
	}
	if token.ID == "" || !token.IsActive {
		t.Fatalf("unexpected token: %+v", token)
	}
}

func TestRegisterToken_Validation(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{pt: &fakePushTokensRepo{}}
	s := NewPushService(db, rm, nil, logging.Discard())

	tests := []struct {
		name     string
		token    string
		platform string
	}{
		{"empty token", "", "android"},
		{"bad platform", "tok", "windows"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.RegisterToken(context.Background(), testUserID, tc.token, tc.platform, "")
			if !errors.Is(err, common.ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDeactivateToken_NotFound(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{pt: &fakePushTokensRepo{deactivateErr: common.ErrNotFound}}
	s := NewPushService(db, rm, nil, logging.Discard())

	err := s.DeactivateToken(context.Background(), testUserID, "unknown")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestNotifyUser_PublishesJobWithAllTokens(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakePushTokensRepo{active: []*models.PushToken{
		{Token: "t1"}, {Token: "t2"},
	}}
	pub := &fakePublisher{}
	rm := &fakeRepoManager{pt: repo}
	s := NewPushService(db, rm, pub, logging.Discard())

	err := s.NotifyUser(context.Background(), testUserID, "Title", "Body", map[string]string{"k": "v"})
	if err != nil {
		t.Fatalf("NotifyUser error: %v", err)
	}
	if len(pub.jobs) != 1 {
		t.Fatalf("want 1 job, got %d", len(pub.jobs))
	}
	job := pub.jobs[0]
	if len(job.Tokens) != 2 || job.UserID != testUserID || job.Title != "Title" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestNotifyUser_NoDevicesIsNoop(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	pub := &fakePublisher{}
	rm := &fakeRepoManager{pt: &fakePushTokensRepo{}}
	s := NewPushService(db, rm, pub, logging.Discard())

	if err := s.NotifyUser(context.Background(), testUserID, "t", "b", nil); err != nil {
		t.Fatalf("NotifyUser error: %v", err)
	}
	if len(pub.jobs) != 0 {
		t.Fatalf("no job expected without devices")
	}
}

func TestNotifyUser_NoQueueConfigured(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{pt: &fakePushTokensRepo{active: []*models.PushToken{{Token: "t1"}}}}
	s := NewPushService(db, rm, nil, logging.Discard())

	if err := s.NotifyUser(context.Background(), testUserID, "t", "b", nil); err != nil {
		t.Fatalf("missing queue must not fail the caller: %v", err)
	}
}

func TestNotifyUser_PublishError(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	pub := &fakePublisher{err: errors.New("broker down")}
	rm := &fakeRepoManager{pt: &fakePushTokensRepo{active: []*models.PushToken{{Token: "t1"}}}}
	s := NewPushService(db, rm, pub, logging.Discard())

	err := s.NotifyUser(context.Background(), testUserID, "t", "b", nil)
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("want ErrInternal, got %v", err)
	}
}
