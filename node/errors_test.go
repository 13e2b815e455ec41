package node

import (
	"context"
	"testing"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func errorInfoOf(t *testing.T, err error) *errdetails.ErrorInfo {
	t.Helper()

	st, ok := status.FromError(err)
	require.True(t, ok)
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	t.Fatalf("no ErrorInfo in %v", err)
	return nil
}

func TestToStatusMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		code   codes.Code
		reason string
	}{
		{ledgererr.NotFound("product p1 not found"), codes.NotFound, "NOT_FOUND"},
		{ledgererr.Unauthorized("nope"), codes.PermissionDenied, "UNAUTHORIZED"},
		{ledgererr.InvalidState("rejected"), codes.FailedPrecondition, "INVALID_STATE"},
		{ledgererr.Validation("bad"), codes.InvalidArgument, "VALIDATION_ERROR"},
		{errors.Wrap(ledgererr.NotFound("deep"), "lookup"), codes.NotFound, "NOT_FOUND"},
	}
	for _, tc := range cases {
		err := toStatus(tc.err)
		assert.Equal(t, tc.code, status.Code(err), "%v", tc.err)
		info := errorInfoOf(t, err)
		assert.Equal(t, tc.reason, info.GetReason())
		assert.Equal(t, ErrorDomain, info.GetDomain())
	}
}

func TestToStatusIntegrityDefects(t *testing.T) {
	err := toStatus(ledgererr.Integrity("p1", []types.BlockDefect{
		{BlockNumber: 2, Reason: "previous hash mismatch"},
		{BlockNumber: 2, Reason: "hash verification failed"},
		{BlockNumber: 3, Reason: "block number sequence broken"},
	}))

	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	info := errorInfoOf(t, err)
	assert.Equal(t, "INTEGRITY_ERROR", info.GetReason())
	assert.Equal(t, "previous hash mismatch; hash verification failed", info.GetMetadata()[DefectKey(2)])
	assert.Equal(t, "block number sequence broken", info.GetMetadata()[DefectKey(3)])
}

func TestToStatusHidesInternalErrors(t *testing.T) {
	err := toStatus(errors.New("pebble: disk on fire"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), "disk")

	err = toStatus(errors.Wrap(context.Canceled, "ledger update cancelled"))
	assert.Equal(t, codes.Canceled, status.Code(err))

	original := status.Error(codes.Unauthenticated, "who are you")
	assert.Equal(t, original, toStatus(original))
	assert.NoError(t, toStatus(nil))
}

func TestActorFrom(t *testing.T) {
	_, err := actorFrom(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(UserIDHeader, " "))
	_, err = actorFrom(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(UserIDHeader, "alice"))
	actor, err := actorFrom(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", actor)
}

func TestCodecRoundTrip(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&HasOwnedRequest{ProductID: "p1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"productId":"p1"}`, string(data))

	var out HasOwnedRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, "p1", out.ProductID)

	// proto messages use their canonical JSON mapping
	data, err = c.Marshal(&errdetails.ErrorInfo{Reason: "NOT_FOUND", Domain: ErrorDomain})
	require.NoError(t, err)
	info := new(errdetails.ErrorInfo)
	require.NoError(t, c.Unmarshal(data, info))
	assert.Equal(t, "NOT_FOUND", info.GetReason())
	assert.Equal(t, CodecName, c.Name())
}
