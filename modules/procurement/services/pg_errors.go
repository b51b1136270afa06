package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgError(err error) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return mapPgErrorToServiceError(err)
}

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "PROC_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		switch pgErr.ConstraintName {
		case "change_orders_tenant_id_change_number_key":
			return newServiceError(http.StatusConflict, "PROC_CHANGE_NUMBER_CONFLICT", "change number already exists", err)
		case "boq_items_po_id_item_number_key":
			return newServiceError(http.StatusConflict, "PROC_ITEM_NUMBER_CONFLICT", "item number already exists on this purchase order", err)
		default:
			return newServiceError(http.StatusConflict, "PROC_CONFLICT", "unique constraint violated", err)
		}
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return newServiceError(http.StatusUnprocessableEntity, "PROC_REFERENCE_NOT_FOUND", "referenced record not found", err)
	case "23514": // check_violation
		recordWriteConflict("check")
		return newServiceError(http.StatusUnprocessableEntity, "PROC_INVALID_STATE", "quantity constraint violated", err)
	default:
		return newServiceError(http.StatusInternalServerError, "PROC_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
