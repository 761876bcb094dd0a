package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional open GORM transaction.
// Repo methods accept this instead of a bare context so a caller can compose
// several writes (e.g. link chunk + update episode centroid) into one
// relational transaction by passing the same Tx through every call.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func Bare(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// DB returns the transaction if one is open, otherwise the base handle.
func (c Context) DB(base *gorm.DB) *gorm.DB {
	if c.Tx != nil {
		return c.Tx
	}
	return base
}
