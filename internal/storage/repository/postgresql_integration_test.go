package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestStorage_Users(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	created, err := storage.CreateUser(ctx, models.User{
		Email: "alice@example.com", PasswordHash: "hash", Role: models.RoleUser,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.UUID)
	assert.Equal(t, models.RoleUser, created.Role)
	assert.Equal(t, time.UTC, created.CreatedAt.Location())

	_, err = storage.CreateUser(ctx, models.User{
		Email: "alice@example.com", PasswordHash: "other", Role: models.RoleUser,
	})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	byEmail, err := storage.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.UUID, byEmail.UUID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	_, err = storage.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	require.NoError(t, storage.SetUserRole(ctx, created.UUID, models.RoleAdmin))
	byID, err := storage.GetUser(ctx, created.UUID)
	require.NoError(t, err)
	assert.True(t, byID.IsAdmin())

	err = storage.SetUserRole(ctx, "550e8400-e29b-41d4-a716-446655440000", models.RoleAdmin)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	bob, err := storage.CreateUser(ctx, models.User{
		Email: "bob@example.com", PasswordHash: "hash", Role: models.RoleUser,
	})
	require.NoError(t, err)
	users, err := storage.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, created.UUID, users[0].UUID)
	assert.Equal(t, bob.UUID, users[1].UUID)
}

func TestStorage_PlansCRUD(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()

	plan, err := storage.CreatePlan(ctx, models.Plan{
		Name:         "Basic monthly",
		Type:         models.PlanTypeBasic,
		Description:  ptr("entry level"),
		Price:        9.99,
		DurationDays: ptr(30),
		Features:     map[string]any{"seats": float64(3)},
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.NotZero(t, plan.ID)
	assert.Equal(t, 9.99, plan.Price)
	assert.Equal(t, 30, *plan.DurationDays)
	assert.Equal(t, float64(3), plan.Features["seats"])

	_, err = storage.CreatePlan(ctx, models.Plan{Name: "Old", Type: models.PlanTypeFree, IsActive: false})
	require.NoError(t, err)

	got, err := storage.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Name, got.Name)
	assert.Nil(t, got.Group)

	_, err = storage.GetPlan(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrPlanNotFound)

	active, err := storage.ListPlans(ctx, models.PlanFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 1)

	all, err := storage.ListPlans(ctx, models.PlanFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	free := models.PlanTypeFree
	onlyFree, err := storage.ListPlans(ctx, models.PlanFilter{Type: &free, IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, onlyFree, 1)
	assert.Equal(t, "Old", onlyFree[0].Name)

	updated, err := storage.UpdatePlan(ctx, plan.ID, models.PlanPatch{Price: ptr(19.5), Group: ptr("team")})
	require.NoError(t, err)
	assert.Equal(t, 19.5, updated.Price)
	assert.Equal(t, "team", *updated.Group)
	assert.Equal(t, "Basic monthly", updated.Name)

	_, err = storage.UpdatePlan(ctx, 9999, models.PlanPatch{Price: ptr(1.0)})
	assert.ErrorIs(t, err, models.ErrPlanNotFound)

	_, err = storage.UpdatePlan(ctx, plan.ID, models.PlanPatch{Type: ptr("gold")})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestStorage_UpdatePlanTypePropagates(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	userUID := factory.CreateUser(t, "bob@example.com", models.RoleUser)
	planID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	subID := factory.CreateSubscription(t, userUID, planID, models.PlanTypeBasic, models.StatusActive,
		time.Now().UTC(), nil)

	_, err := storage.UpdatePlan(ctx, planID, models.PlanPatch{Type: ptr("pro")})
	require.NoError(t, err)

	sub, err := storage.GetSubscription(ctx, subID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypePro, sub.PlanType)

	// Второй план того же пользователя не может стать pro: активная pro уже есть.
	otherID := factory.CreatePlan(t, "Basic 2", models.PlanTypeBasic, 10, 30, true)
	factory.CreateSubscription(t, userUID, otherID, models.PlanTypeBasic, models.StatusActive, time.Now().UTC(), nil)
	_, err = storage.UpdatePlan(ctx, otherID, models.PlanPatch{Type: ptr("pro")})
	assert.ErrorIs(t, err, models.ErrConflict)

	plan, err := storage.GetPlan(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanTypeBasic, plan.Type, "failed update must be rolled back")
}

func TestStorage_DeletePlan(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	userUID := factory.CreateUser(t, "carol@example.com", models.RoleUser)
	referenced := factory.CreatePlan(t, "Pro", models.PlanTypePro, 50, 30, true)
	factory.CreateSubscription(t, userUID, referenced, models.PlanTypePro, models.StatusCancelled,
		time.Now().UTC().Add(-time.Hour), nil)
	unused := factory.CreatePlan(t, "Free", models.PlanTypeFree, 0, 0, true)

	// Повторная попытка даёт тот же результат.
	for range 2 {
		err := storage.DeletePlan(ctx, referenced)
		assert.ErrorIs(t, err, models.ErrConflict)
	}

	require.NoError(t, storage.DeletePlan(ctx, unused))
	_, err := storage.GetPlan(ctx, unused)
	assert.ErrorIs(t, err, models.ErrPlanNotFound)

	assert.ErrorIs(t, storage.DeletePlan(ctx, unused), models.ErrPlanNotFound)
}

func TestStorage_InsertSubscription_ActiveUniqueness(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	verification := NewTestVerification(storage)

	userUID := factory.CreateUser(t, "dave@example.com", models.RoleUser)
	basicID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	proID := factory.CreatePlan(t, "Pro", models.PlanTypePro, 50, 30, true)

	now := time.Now().UTC()
	sub := models.Subscription{
		UserUID: userUID, PlanID: basicID, PlanType: models.PlanTypeBasic,
		Status: models.StatusActive, StartDate: now, EndDate: ptr(now.AddDate(0, 0, 30)), AutoRenew: true,
	}
	first, err := storage.InsertSubscription(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, first.Status)
	require.NotNil(t, first.EndDate)

	_, err = storage.InsertSubscription(ctx, sub)
	assert.ErrorIs(t, err, models.ErrDuplicateActiveSubscription)

	// Другой тип не конфликтует.
	pro := sub
	pro.PlanID, pro.PlanType = proID, models.PlanTypePro
	_, err = storage.InsertSubscription(ctx, pro)
	require.NoError(t, err)

	// После отмены можно подписаться снова.
	first.Status = models.StatusCancelled
	first.AutoRenew = false
	_, err = storage.UpdateSubscription(ctx, *first)
	require.NoError(t, err)
	_, err = storage.InsertSubscription(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, 1, verification.CountActive(t, userUID, models.PlanTypeBasic))
	verification.VerifySubscriptionStatus(t, first.ID, models.StatusCancelled)
}

func TestStorage_ConcurrentSubscribe(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	verification := NewTestVerification(storage)

	userUID := factory.CreateUser(t, "eve@example.com", models.RoleUser)
	planID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		duplicate int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := storage.WithTx(ctx, func(tx Tx) error {
				exists, err := tx.HasActiveOfType(ctx, userUID, models.PlanTypeBasic, 0)
				if err != nil {
					return err
				}
				if exists {
					return models.ErrDuplicateActiveSubscription
				}
				_, err = tx.InsertSubscription(ctx, models.Subscription{
					UserUID: userUID, PlanID: planID, PlanType: models.PlanTypeBasic,
					Status: models.StatusActive, StartDate: time.Now().UTC(), AutoRenew: true,
				})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, models.ErrDuplicateActiveSubscription):
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicate)
	assert.Equal(t, 1, verification.CountActive(t, userUID, models.PlanTypeBasic))
}

func TestStorage_WithTxRollsBack(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	userUID := factory.CreateUser(t, "frank@example.com", models.RoleUser)
	planID := factory.CreatePlan(t, "Pro", models.PlanTypePro, 10, 30, true)

	err := storage.WithTx(ctx, func(tx Tx) error {
		_, err := tx.InsertSubscription(ctx, models.Subscription{
			UserUID: userUID, PlanID: planID, PlanType: models.PlanTypePro,
			Status: models.StatusActive, StartDate: time.Now().UTC(),
		})
		require.NoError(t, err)
		return models.ErrInvalidUpgradeTarget
	})
	assert.ErrorIs(t, err, models.ErrInvalidUpgradeTarget)
	assert.Equal(t, 0, NewTestVerification(storage).CountActive(t, userUID, models.PlanTypePro))
}

func TestStorage_ExpireOverdue(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	verification := NewTestVerification(storage)

	now := time.Now().UTC()
	alice := factory.CreateUser(t, "a@example.com", models.RoleUser)
	bob := factory.CreateUser(t, "b@example.com", models.RoleUser)
	basicID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	proID := factory.CreatePlan(t, "Pro", models.PlanTypePro, 10, 30, true)

	overdueAlice := factory.CreateSubscription(t, alice, basicID, models.PlanTypeBasic, models.StatusActive,
		now.AddDate(0, -2, 0), ptr(now.Add(-time.Minute)))
	currentAlice := factory.CreateSubscription(t, alice, proID, models.PlanTypePro, models.StatusActive,
		now, ptr(now.AddDate(0, 0, 30)))
	overdueBob := factory.CreateSubscription(t, bob, basicID, models.PlanTypeBasic, models.StatusActive,
		now.AddDate(0, -2, 0), ptr(now.Add(-time.Hour)))
	endless := factory.CreateSubscription(t, bob, proID, models.PlanTypePro, models.StatusActive, now, nil)

	n, err := storage.ExpireOverdueForUser(ctx, alice, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	verification.VerifySubscriptionStatus(t, overdueAlice, models.StatusExpired)
	verification.VerifySubscriptionStatus(t, overdueBob, models.StatusActive)

	n, err = storage.ExpireOverdue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	verification.VerifySubscriptionStatus(t, overdueBob, models.StatusExpired)
	verification.VerifySubscriptionStatus(t, currentAlice, models.StatusActive)
	verification.VerifySubscriptionStatus(t, endless, models.StatusActive)

	expired, err := storage.GetSubscription(ctx, overdueBob)
	require.NoError(t, err)
	assert.False(t, expired.AutoRenew)
}

func TestStorage_ActiveSubscriptions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	user := factory.CreateUser(t, "g@example.com", models.RoleUser)
	other := factory.CreateUser(t, "h@example.com", models.RoleUser)
	freeID := factory.CreatePlan(t, "Free", models.PlanTypeFree, 0, 0, true)
	basicID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	proID := factory.CreatePlan(t, "Pro", models.PlanTypePro, 25.5, 30, true)

	older := factory.CreateSubscription(t, user, freeID, models.PlanTypeFree, models.StatusActive,
		now.Add(-48*time.Hour), nil)
	newer := factory.CreateSubscription(t, user, proID, models.PlanTypePro, models.StatusActive,
		now.Add(-time.Hour), ptr(now.AddDate(0, 0, 29)))
	factory.CreateSubscription(t, user, basicID, models.PlanTypeBasic, models.StatusActive,
		now.AddDate(0, -2, 0), ptr(now.Add(-time.Second)))
	factory.CreateSubscription(t, user, basicID, models.PlanTypeBasic, models.StatusCancelled,
		now.Add(-time.Hour), nil)
	factory.CreateSubscription(t, other, proID, models.PlanTypePro, models.StatusActive, now, nil)

	got, err := storage.ActiveSubscriptions(ctx, user, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer, got[0].ID)
	assert.Equal(t, "Pro", got[0].PlanName)
	assert.Equal(t, 25.5, got[0].PlanPrice)
	assert.Equal(t, older, got[1].ID)
	assert.Nil(t, got[1].EndDate)

	empty, err := storage.ActiveSubscriptions(ctx, factory.CreateUser(t, "i@example.com", models.RoleUser), now)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestStorage_History(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user := factory.CreateUser(t, "j@example.com", models.RoleUser)
	basicID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	proID := factory.CreatePlan(t, "Pro", models.PlanTypePro, 20, 30, true)

	var ids []int64
	for i := range 5 {
		planID, planType, status := basicID, models.PlanTypeBasic, models.StatusCancelled
		if i%2 == 1 {
			planID, planType, status = proID, models.PlanTypePro, models.StatusExpired
		}
		ids = append(ids, factory.CreateSubscription(t, user, planID, planType, status, base.AddDate(0, i, 0), nil))
	}
	// Одинаковая дата начала: порядок определяется id.
	tie := factory.CreateSubscription(t, user, basicID, models.PlanTypeBasic, models.StatusActive, base.AddDate(0, 4, 0), nil)

	page, err := storage.History(ctx, models.HistoryFilter{UserUID: user, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 6, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, tie, page.Items[0].ID)
	assert.Equal(t, ids[4], page.Items[1].ID)
	assert.Equal(t, ids[3], page.Items[2].ID)

	next, err := storage.History(ctx, models.HistoryFilter{UserUID: user, Limit: 3, Offset: 3})
	require.NoError(t, err)
	require.Len(t, next.Items, 3)
	assert.Equal(t, ids[0], next.Items[2].ID)

	pro := models.PlanTypePro
	filtered, err := storage.History(ctx, models.HistoryFilter{UserUID: user, PlanType: &pro, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, filtered.Total)
	require.Len(t, filtered.Items, 2)
	assert.Equal(t, ids[3], filtered.Items[0].ID)
	assert.Equal(t, ids[1], filtered.Items[1].ID)

	beyond, err := storage.History(ctx, models.HistoryFilter{UserUID: user, Limit: 10, Offset: 100})
	require.NoError(t, err)
	assert.Equal(t, 6, beyond.Total)
	assert.Empty(t, beyond.Items)
}

func TestStorage_PlanStatistics(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	now := time.Now().UTC()
	alice := factory.CreateUser(t, "k@example.com", models.RoleUser)
	bob := factory.CreateUser(t, "l@example.com", models.RoleUser)
	basicID := factory.CreatePlan(t, "Basic", models.PlanTypeBasic, 10, 30, true)
	basic2ID := factory.CreatePlan(t, "Basic yearly", models.PlanTypeBasic, 100, 365, true)
	factory.CreatePlan(t, "Free", models.PlanTypeFree, 0, 0, true)

	factory.CreateSubscription(t, alice, basicID, models.PlanTypeBasic, models.StatusCancelled, now.AddDate(0, -1, 0), nil)
	factory.CreateSubscription(t, alice, basic2ID, models.PlanTypeBasic, models.StatusActive, now, ptr(now.AddDate(1, 0, 0)))
	factory.CreateSubscription(t, bob, basicID, models.PlanTypeBasic, models.StatusActive,
		now.AddDate(0, -2, 0), ptr(now.Add(-time.Minute)))

	stats, err := storage.PlanStatistics(ctx, now)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	assert.Equal(t, models.PlanTypeStatistics{Type: models.PlanTypeFree}, stats[0])
	assert.Equal(t, models.PlanTypeStatistics{Type: models.PlanTypeBasic, DistinctUsers: 2, ActiveSubscriptions: 1}, stats[1])
	assert.Equal(t, models.PlanTypeStatistics{Type: models.PlanTypePro}, stats[2])
}
