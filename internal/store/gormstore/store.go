package gormstore

import (
	"errors"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19

	errorOperationStore = "store"
	errorSubjectEntry   = "entry"
	errorSubjectTotal   = "total"
	errorCodeGet        = "get"
	errorCodeInsert     = "insert"
	errorCodeDuplicate  = "duplicate"
	errorCodeSettle     = "settle"
	errorCodeSum        = "sum"
)

// Store implements the directory and payments persistence contracts using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
