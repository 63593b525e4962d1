package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrInvalidState          = errors.New("invalid state")
	ErrGameOver              = errors.New("game is over")
	ErrAdCooldown            = errors.New("ad is cooling down")
	ErrNotAuthority          = errors.New("sender is not the price authority")
	ErrForeignRecord         = errors.New("sender cannot write another player's record")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
