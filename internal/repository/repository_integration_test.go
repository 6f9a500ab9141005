//go:build integration

package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tasklane/tasklane/internal/model"
	"github.com/tasklane/tasklane/internal/testutil"
)

func TestIntegrationUser_CreateRejectsDuplicateID(t *testing.T) {
	ctx, repo := newTestEnv(t)

	user := testutil.NewTestUser(t)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	dup := &model.User{ID: user.ID, Email: "other-" + user.Email}
	if err := repo.CreateUser(ctx, dup); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	sameEmail := &model.User{ID: testutil.UniqueID("user"), Email: user.Email}
	if err := repo.CreateUser(ctx, sameEmail); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	stored, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if stored.Email != user.Email || stored.IsSubscribed {
		t.Errorf("stored user changed: %+v", stored)
	}
}

func TestIntegrationTodo_QuotaForUnsubscribedUser(t *testing.T) {
	ctx, repo := newTestEnv(t)
	user := createUser(t, ctx, repo, testutil.NewTestUser(t))
	now := time.Now().UTC()

	for i := 0; i < model.FreeTodoLimit; i++ {
		todo := testutil.NewTestTodo(t, user.ID, fmt.Sprintf("todo %d", i))
		if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, now); err != nil {
			t.Fatalf("create todo %d: %v", i, err)
		}
	}

	extra := testutil.NewTestTodo(t, user.ID, "one too many")
	if err := repo.CreateTodoWithinQuota(ctx, extra, model.FreeTodoLimit, now); !errors.Is(err, ErrTodoQuotaExceeded) {
		t.Fatalf("expected ErrTodoQuotaExceeded, got %v", err)
	}
}

func TestIntegrationTodo_QuotaConcurrentCreates(t *testing.T) {
	ctx, repo := newTestEnv(t)
	user := createUser(t, ctx, repo, testutil.NewTestUser(t))
	now := time.Now().UTC()

	const attempts = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			todo := testutil.NewTestTodo(t, user.ID, fmt.Sprintf("race %d", i))
			if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, now); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if created != model.FreeTodoLimit {
		t.Fatalf("expected exactly %d creates to succeed, got %d", model.FreeTodoLimit, created)
	}
	count, err := repo.CountTodosByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("CountTodosByUser failed: %v", err)
	}
	if count != int64(model.FreeTodoLimit) {
		t.Fatalf("expected %d todos stored, got %d", model.FreeTodoLimit, count)
	}
}

func TestIntegrationTodo_SubscribedUserBypassesQuota(t *testing.T) {
	ctx, repo := newTestEnv(t)
	now := time.Now().UTC()
	user := createUser(t, ctx, repo, testutil.NewSubscribedTestUser(t, now.Add(24*time.Hour)))

	for i := 0; i < model.FreeTodoLimit+2; i++ {
		todo := testutil.NewTestTodo(t, user.ID, fmt.Sprintf("todo %d", i))
		if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, now); err != nil {
			t.Fatalf("create todo %d: %v", i, err)
		}
	}
}

func TestIntegrationTodo_CreateForMissingUser(t *testing.T) {
	ctx, repo := newTestEnv(t)

	todo := testutil.NewTestTodo(t, "user_missing", "orphan")
	err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, time.Now())
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationTodo_ToggleAndDeleteRequireOwner(t *testing.T) {
	ctx, repo := newTestEnv(t)
	owner := createUser(t, ctx, repo, testutil.NewTestUser(t))
	other := createUser(t, ctx, repo, testutil.NewTestUser(t))

	todo := testutil.NewTestTodo(t, owner.ID, "mine")
	if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, time.Now()); err != nil {
		t.Fatalf("create todo: %v", err)
	}

	if _, err := repo.ToggleTodo(ctx, todo.ID, other.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound for non-owner toggle, got %v", err)
	}
	stored, err := repo.GetTodoByID(ctx, todo.ID)
	if err != nil {
		t.Fatalf("GetTodoByID failed: %v", err)
	}
	if stored.Completed {
		t.Fatal("non-owner toggle changed completed")
	}

	toggled, err := repo.ToggleTodo(ctx, todo.ID, owner.ID)
	if err != nil {
		t.Fatalf("ToggleTodo failed: %v", err)
	}
	if !toggled.Completed {
		t.Error("expected todo to be completed after toggle")
	}

	if _, err := repo.DeleteTodo(ctx, todo.ID, other.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound for non-owner delete, got %v", err)
	}
	deleted, err := repo.DeleteTodo(ctx, todo.ID, owner.ID)
	if err != nil {
		t.Fatalf("DeleteTodo failed: %v", err)
	}
	if deleted.ID != todo.ID || !deleted.Completed {
		t.Errorf("unexpected deleted row %+v", deleted)
	}
	if _, err := repo.GetTodoByID(ctx, todo.ID); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound after delete, got %v", err)
	}
}

func TestIntegrationTodo_ListSearchAndPaging(t *testing.T) {
	ctx, repo := newTestEnv(t)
	now := time.Now().UTC()
	user := createUser(t, ctx, repo, testutil.NewSubscribedTestUser(t, now.Add(time.Hour)))

	for i := 0; i < 13; i++ {
		title := fmt.Sprintf("Buy item %02d", i)
		if i%4 == 0 {
			title = fmt.Sprintf("Call MOM %02d", i)
		}
		todo := testutil.NewTestTodo(t, user.ID, title)
		if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, now.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("create todo %d: %v", i, err)
		}
	}

	page1, total, err := repo.ListTodos(ctx, model.TodoFilter{UserID: user.ID, Page: 1})
	if err != nil {
		t.Fatalf("ListTodos failed: %v", err)
	}
	if total != 13 || len(page1) != model.TodosPerPage {
		t.Fatalf("expected 13 total and %d rows, got %d and %d", model.TodosPerPage, total, len(page1))
	}
	if page1[0].Title != "Call MOM 12" {
		t.Errorf("expected newest todo first, got %q", page1[0].Title)
	}

	page2, _, err := repo.ListTodos(ctx, model.TodoFilter{UserID: user.ID, Page: 2})
	if err != nil {
		t.Fatalf("ListTodos page 2 failed: %v", err)
	}
	if len(page2) != 3 {
		t.Errorf("expected 3 rows on page 2, got %d", len(page2))
	}

	matches, total, err := repo.ListTodos(ctx, model.TodoFilter{UserID: user.ID, Page: 1, Search: "mom"})
	if err != nil {
		t.Fatalf("ListTodos search failed: %v", err)
	}
	if total != 4 || len(matches) != 4 {
		t.Errorf("expected 4 case-insensitive matches, got total=%d rows=%d", total, len(matches))
	}

	none, total, err := repo.ListTodos(ctx, model.TodoFilter{UserID: user.ID, Page: 1, Search: "%"})
	if err != nil {
		t.Fatalf("ListTodos wildcard search failed: %v", err)
	}
	if total != 0 || len(none) != 0 {
		t.Errorf("expected literal %% search to match nothing, got %d", total)
	}
}

func TestIntegrationSubscription_ActivateAndReconcile(t *testing.T) {
	ctx, repo := newTestEnv(t)
	user := createUser(t, ctx, repo, testutil.NewTestUser(t))

	past := time.Now().UTC().Add(-time.Hour)
	activated, err := repo.ActivateSubscription(ctx, user.ID, past)
	if err != nil {
		t.Fatalf("ActivateSubscription failed: %v", err)
	}
	if !activated.IsSubscribed || activated.SubscriptionEnds == nil {
		t.Fatalf("expected active subscription, got %+v", activated)
	}

	changed, err := repo.ReconcileSubscription(ctx, user.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("ReconcileSubscription failed: %v", err)
	}
	if !changed {
		t.Fatal("expected lapsed subscription to be cleared")
	}

	changed, err = repo.ReconcileSubscription(ctx, user.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("second ReconcileSubscription failed: %v", err)
	}
	if changed {
		t.Fatal("expected second reconcile to be a no-op")
	}

	stored, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if stored.IsSubscribed || stored.SubscriptionEnds != nil {
		t.Errorf("expected cleared subscription, got %+v", stored)
	}

	if _, err := repo.ActivateSubscription(ctx, "user_missing", time.Now()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestIntegrationSubscription_ReconcileExpiredBatch(t *testing.T) {
	ctx, repo := newTestEnv(t)
	now := time.Now().UTC()

	lapsed := createUser(t, ctx, repo, testutil.NewSubscribedTestUser(t, now.Add(-time.Minute)))
	active := createUser(t, ctx, repo, testutil.NewSubscribedTestUser(t, now.Add(time.Hour)))

	ids, err := repo.ReconcileExpiredSubscriptions(ctx, now)
	if err != nil {
		t.Fatalf("ReconcileExpiredSubscriptions failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != lapsed.ID {
		t.Fatalf("expected only %s reconciled, got %v", lapsed.ID, ids)
	}

	stored, err := repo.GetUserByID(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !stored.IsSubscribed {
		t.Error("active subscription was cleared")
	}
}

func TestIntegrationAdmin_SummariesAndStats(t *testing.T) {
	ctx, repo := newTestEnv(t)
	user := createUser(t, ctx, repo, testutil.NewTestUser(t))

	for i := 0; i < 2; i++ {
		todo := testutil.NewTestTodo(t, user.ID, fmt.Sprintf("todo %d", i))
		if err := repo.CreateTodoWithinQuota(ctx, todo, model.FreeTodoLimit, time.Now()); err != nil {
			t.Fatalf("create todo: %v", err)
		}
		if i == 0 {
			if _, err := repo.ToggleTodo(ctx, todo.ID, user.ID); err != nil {
				t.Fatalf("toggle todo: %v", err)
			}
		}
	}

	summaries, total, err := repo.ListUserSummaries(ctx, 20, 0)
	if err != nil {
		t.Fatalf("ListUserSummaries failed: %v", err)
	}
	if total != 1 || len(summaries) != 1 {
		t.Fatalf("expected one user, got total=%d rows=%d", total, len(summaries))
	}
	if summaries[0].TodoCount != 2 || summaries[0].CompletedCount != 1 {
		t.Errorf("unexpected counts %+v", summaries[0])
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Users != 1 || stats.Todos != 2 || stats.CompletedTodos != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func createUser(t *testing.T, ctx context.Context, repo *Repository, user *model.User) *model.User {
	t.Helper()
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func newTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, dbURL); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}
