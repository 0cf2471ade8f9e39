package grpc

import (
	"github.com/dmitrijs2005/authhub/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CodeOf maps an error kind to its gRPC status code.
func CodeOf(kind common.Kind) codes.Code {
	if kind.IsCredentialFailure() {
		return codes.Unauthenticated
	}
	switch kind {
	case common.KindValidation:
		return codes.InvalidArgument
	case common.KindForbidden:
		return codes.PermissionDenied
	case common.KindNotFound, common.KindEndpointPermissionNotFound, common.KindPermissionNotFound:
		return codes.NotFound
	case common.KindDuplicateEndpointPermission:
		return codes.AlreadyExists
	case common.KindStoreUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	kind := common.KindOf(err)
	return status.Error(CodeOf(kind), kind.String())
}
