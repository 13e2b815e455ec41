package client

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ddr4869/agrichain/common/ledgererr"
	"github.com/ddr4869/agrichain/common/types"
	"github.com/ddr4869/agrichain/node"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func errorInfo(err error) *errdetails.ErrorInfo {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == node.ErrorDomain {
			return info
		}
	}
	return nil
}

// KindFromStatus recovers the engine error kind from a call error
func KindFromStatus(err error) ledgererr.Kind {
	if err == nil {
		return ledgererr.KindInternal
	}
	if info := errorInfo(err); info != nil {
		return ledgererr.KindFromReason(info.GetReason())
	}
	switch status.Code(err) {
	case codes.NotFound:
		return ledgererr.KindNotFound
	case codes.PermissionDenied, codes.Unauthenticated:
		return ledgererr.KindUnauthorized
	case codes.InvalidArgument:
		return ledgererr.KindValidation
	case codes.FailedPrecondition:
		return ledgererr.KindInvalidState
	}
	return ledgererr.KindInternal
}

// DefectsFromStatus returns the block defects of an integrity failure, by block number
func DefectsFromStatus(err error) []types.BlockDefect {
	info := errorInfo(err)
	if info == nil {
		return nil
	}

	var defects []types.BlockDefect
	for key, reasons := range info.GetMetadata() {
		if !strings.HasPrefix(key, node.DefectKeyPrefix) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimPrefix(key, node.DefectKeyPrefix), 10, 64)
		if err != nil {
			continue
		}
		for _, reason := range strings.Split(reasons, "; ") {
			defects = append(defects, types.BlockDefect{BlockNumber: n, Reason: reason})
		}
	}
	sort.SliceStable(defects, func(i, j int) bool {
		return defects[i].BlockNumber < defects[j].BlockNumber
	})
	return defects
}
