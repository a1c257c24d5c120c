package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authpipe/internal/common"
	"github.com/dmitrijs2005/authpipe/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const userKey ctxKey = "user"

var authorizationKey = strings.ToLower(common.AuthorizationHeaderName)

// UserFromContext returns the caller authenticated by the interceptor.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// accessTokenInterceptor rejects unary calls without a valid bearer token
// with codes.Unauthenticated.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != common.BearerScheme || token == "" {
		return nil, status.Error(codes.Unauthenticated, "malformed authorization metadata")
	}

	user, err := s.users.Authenticate(ctx, token)
	if err != nil {
		s.logger.Debug(ctx, "token rejected", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}

	return handler(context.WithValue(ctx, userKey, user), req)
}
