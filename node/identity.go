package node

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserIDHeader is the metadata key carrying the acting user's id. The node
// trusts it as resolved by the authentication layer in front of it.
const UserIDHeader = "x-user-id"

func actorFrom(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get(UserIDHeader)
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", status.Errorf(codes.Unauthenticated, "missing %s", UserIDHeader)
	}
	return strings.TrimSpace(values[0]), nil
}
