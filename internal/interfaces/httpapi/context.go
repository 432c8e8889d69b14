package httpapi

import (
	"context"

	"github.com/riskibarqy/korfbal-live/internal/domain/user"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p user.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// principalFromContext returns the zero Principal for anonymous requests.
func principalFromContext(ctx context.Context) user.Principal {
	p, _ := ctx.Value(principalKey{}).(user.Principal)
	return p
}
