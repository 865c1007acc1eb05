package principal

import "context"

// Repository issues anonymous principals: opaque tokens that own carts before sign-in.
type Repository interface {
	CreateAnonymous(ctx context.Context) (string, error)
}
