package query

import "github.com/screenbook/screenbook/internal/repository"

// Re-exported so transport code switches on one package.
var (
	ErrScreeningNotFound = repository.ErrScreeningNotFound
)
