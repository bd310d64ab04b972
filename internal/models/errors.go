package models

import "errors"

// Доменные ошибки. Оборачиваются через fmt.Errorf("%s: %w", op, err)
// и сравниваются через errors.Is на границе HTTP.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")

	ErrUserNotFound         = errors.New("user not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	ErrValidation                  = errors.New("validation error")
	ErrEmailTaken                  = errors.New("email already registered")
	ErrInvalidCredentials          = errors.New("invalid credentials")
	ErrPlanUnavailable             = errors.New("plan is not available for subscription")
	ErrDuplicateActiveSubscription = errors.New("active subscription of this plan type already exists")
	ErrNotActive                   = errors.New("subscription is not active")
	ErrInvalidUpgradeTarget        = errors.New("invalid upgrade target")
	ErrConflict                    = errors.New("conflict")

	// ErrStorageUnavailable — хранилище недоступно или не ответило вовремя, запрос можно повторить.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError связывает доменную ошибку с исходной ошибкой драйвера.
// Обе доступны через errors.Is/As, текст драйвера клиенту не отдаётся.
type StorageError struct {
	Domain error
	Cause  error
}

func (e *StorageError) Error() string {
	return e.Domain.Error() + ": " + e.Cause.Error()
}

func (e *StorageError) Unwrap() []error {
	return []error{e.Domain, e.Cause}
}
