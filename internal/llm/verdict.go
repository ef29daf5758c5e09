package llm

import (
	"strings"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Answer markers the prompt asks the model to emit.
const (
	ResultMarker = "用例分析结果："
	DetailMarker = "用例分析内容："
)

// ParseVerdict extracts the categorical result and the explanation from the
// model answer. The first line carrying each marker wins. With neither
// marker present the verdict is types.StatusUnparseable with
// types.UnparseableDetail.
func ParseVerdict(final string) (status, detail string) {
	var gotResult, gotDetail bool
	for _, line := range strings.Split(strings.TrimSpace(final), "\n") {
		if !gotResult {
			if _, after, ok := strings.Cut(line, ResultMarker); ok {
				status = strings.TrimSpace(after)
				gotResult = true
				continue
			}
		}
		if !gotDetail {
			if _, after, ok := strings.Cut(line, DetailMarker); ok {
				detail = strings.TrimSpace(after)
				gotDetail = true
			}
		}
	}
	switch {
	case !gotResult && !gotDetail:
		return types.StatusUnparseable, types.UnparseableDetail
	case !gotResult:
		return types.StatusUnparseable, detail
	case status == "":
		return types.StatusUnparseable, detail
	}
	return status, detail
}
