package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/common"
	"github.com/dmitrijs2005/authhub/internal/logging"
	"github.com/dmitrijs2005/authhub/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type principalKey struct{}

func principalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey{}).(*models.Principal)
	return p
}

func bearerFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) > len(common.BearerPrefix) && strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		v = strings.TrimSpace(v[len(common.BearerPrefix):])
	}
	return v
}

// accessTokenInterceptor authenticates the bearer token in the
// authorization metadata when one is present. Calls without a token
// proceed anonymously.
func (s *Server) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	token := bearerFromMetadata(ctx)
	if token == "" {
		return handler(ctx, req)
	}

	p, err := s.auth.Authenticate(ctx, token)
	if err != nil {
		s.logger.Info(ctx, "authentication failed", append(logging.ErrAttrs(err), "method", info.FullMethod)...)
		return nil, toStatus(err)
	}
	return handler(context.WithValue(ctx, principalKey{}, p), req)
}
