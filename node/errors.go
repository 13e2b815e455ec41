package node

import (
	"context"
	"fmt"
	"strings"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/pkg/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is set on every ErrorInfo detail the node returns
const ErrorDomain = "agrichain"

func codeFor(kind ledgererr.Kind) codes.Code {
	switch kind {
	case ledgererr.KindNotFound:
		return codes.NotFound
	case ledgererr.KindUnauthorized:
		return codes.PermissionDenied
	case ledgererr.KindInvalidState, ledgererr.KindIntegrity:
		return codes.FailedPrecondition
	case ledgererr.KindValidation:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// DefectKeyPrefix starts the ErrorInfo metadata key of a defective block
const DefectKeyPrefix = "block_"

// DefectKey names the ErrorInfo metadata entry of a defective block
func DefectKey(blockNumber uint64) string {
	return fmt.Sprintf("%s%d", DefectKeyPrefix, blockNumber)
}

// toStatus translates an engine error into a gRPC status carrying the reason
// code. Internal failures are logged by the caller and reported without detail.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(interface{ GRPCStatus() *status.Status }); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	kind := ledgererr.KindOf(err)
	msg := err.Error()
	if kind == ledgererr.KindInternal {
		msg = "internal error"
	}

	info := &errdetails.ErrorInfo{
		Reason:   kind.Reason(),
		Domain:   ErrorDomain,
		Metadata: map[string]string{},
	}
	for _, d := range ledgererr.Defects(err) {
		key := DefectKey(d.BlockNumber)
		if prev, ok := info.Metadata[key]; ok {
			info.Metadata[key] = strings.Join([]string{prev, d.Reason}, "; ")
			continue
		}
		info.Metadata[key] = d.Reason
	}

	st := status.New(codeFor(kind), msg)
	detailed, derr := st.WithDetails(info)
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}
