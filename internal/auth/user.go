package auth

import "context"

// User is the caller identity taken from a verified token. Accounts live with
// the auth provider; nothing here is persisted.
type User struct {
	ID    string
	Email string
	Role  string
}

type ctxKey string

const userKey ctxKey = "user"

func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}
