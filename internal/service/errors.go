package service

import (
	"errors"

	"github.com/Freeeeeet/clinic_scheduler/internal/repository/base"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidRule  = errors.New("invalid rule")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	// ErrStoreUnavailable временный сбой хранилища, вызов можно повторить
	ErrStoreUnavailable = base.ErrUnavailable
)
