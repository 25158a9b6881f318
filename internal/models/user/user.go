package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User description. Fields aligned for the GC optimal scanning.
type User struct {
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Email          string    `db:"email" json:"email"`
	FullName       string    `db:"full_name" json:"full_name"`
	Address        string    `db:"address" json:"address"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	ID             uuid.UUID `db:"id" json:"id"`
}

// key is an unexported type for keys defined in this package.
// This prevents collisions with keys defined in other packages.
type key int

// userKey is the key for user.User values in Contexts. It is
// unexported; clients use user.NewContext and user.FromContext
// instead of using this key directly.
var userKey key

// NewContext returns a new Context that carries value u.
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// FromContext returns the User value stored in ctx, if any.
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey).(*User)
	return u, ok
}
