// Package grpcauth runs gRPC unary calls through the same token pipeline as
// the HTTP client: bearer metadata, one refresh through the shared
// coordinator on codes.Unauthenticated, one replay.
package grpcauth

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/authpipe/internal/client/tokenstore"
	"github.com/dmitrijs2005/authpipe/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var authorizationKey = strings.ToLower(common.AuthorizationHeaderName)

// Acquirer is satisfied by *refresh.Coordinator.
type Acquirer interface {
	Acquire(ctx context.Context) (string, error)
}

// Classifier decides per full method name ("/pkg.Service/Method") whether
// the token is attached. *endpoints.Classifier satisfies it.
type Classifier interface {
	RequiresAuth(method string) bool
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(authorizationKey)
	md.Set(authorizationKey, common.BearerValue(token))

	return metadata.NewOutgoingContext(ctx, md)
}

// UnaryClientInterceptor attaches the access token and recovers from one
// Unauthenticated status per call. A second Unauthenticated after the
// replay is returned wrapped in common.ErrRetryExhausted; a failed refresh
// returns the coordinator's error.
func UnaryClientInterceptor(store tokenstore.Store, acquirer Acquirer, classifier Classifier) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		attach := classifier.RequiresAuth(method)

		callCtx := ctx
		if token, ok := store.Get(); ok && attach {
			callCtx = withAccessToken(ctx, token)
		}

		err := invoker(callCtx, method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		token, rerr := acquirer.Acquire(ctx)
		if rerr != nil {
			return rerr
		}

		callCtx = ctx
		if attach {
			callCtx = withAccessToken(ctx, token)
		}
		err = invoker(callCtx, method, req, reply, cc, opts...)
		if status.Code(err) == codes.Unauthenticated {
			return fmt.Errorf("%w: %s: %w", common.ErrRetryExhausted, method, err)
		}
		return err
	}
}
