package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

const (
	activeSubscriptionIndex = "uq_subscriptions_active_user_type"
	usersEmailConstraint    = "users_email_key"
)

// classifyError переводит ошибки драйвера в доменные. Исходная ошибка
// остаётся в цепочке рядом с доменной.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return storageErr(models.ErrStorageUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == activeSubscriptionIndex:
			return storageErr(models.ErrDuplicateActiveSubscription, err)
		case pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == usersEmailConstraint:
			return storageErr(models.ErrEmailTaken, err)
		case pgErr.Code == pgerrcode.UniqueViolation, pgErr.Code == pgerrcode.ForeignKeyViolation:
			return storageErr(models.ErrConflict, err)
		case pgErr.Code == pgerrcode.InvalidTextRepresentation, pgErr.Code == pgerrcode.CheckViolation:
			return storageErr(models.ErrValidation, err)
		case pgErr.Code == pgerrcode.QueryCanceled,
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow,
			pgErr.Code == pgerrcode.TooManyConnections,
			pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgerrcode.IsConnectionException(pgErr.Code):
			return storageErr(models.ErrStorageUnavailable, err)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return storageErr(models.ErrStorageUnavailable, err)
	}
	return err
}

func storageErr(domain, cause error) error {
	return &models.StorageError{Domain: domain, Cause: cause}
}

// notFound заменяет sql.ErrNoRows на доменную ошибку отсутствия сущности.
func notFound(err, domain error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain
	}
	return classifyError(err)
}
