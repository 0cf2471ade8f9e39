package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/authhub/internal/logging"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Authorize decides whether the caller may invoke (service, path, method).
// A denial is a normal response with allowed=false, not an RPC error.
func (s *Server) Authorize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	service := strings.TrimSpace(fields["service"].GetStringValue())
	path := strings.TrimSpace(fields["path"].GetStringValue())
	method := strings.TrimSpace(fields["method"].GetStringValue())
	if service == "" || path == "" || method == "" {
		return nil, status.Error(codes.InvalidArgument, "service, path and method are required")
	}

	p := principalFrom(ctx)
	d, err := s.rules.Check(ctx, service, path, method, p)
	if err != nil {
		s.logger.Error(ctx, "authorize failed", append(logging.ErrAttrs(err), "service", service)...)
		return nil, toStatus(err)
	}

	userID := ""
	if p != nil {
		userID = p.UserID
	}
	if !d.Allowed {
		s.logger.Debug(ctx, "denied", "service", service, "path", path, "method", method,
			"user_id", userID, "reason", d.Reason)
	}

	return structpb.NewStruct(map[string]any{
		"allowed": d.Allowed,
		"reason":  d.Reason,
		"userId":  userID,
		"public":  d.Public,
	})
}

var _ GatewayServer = (*Server)(nil)
