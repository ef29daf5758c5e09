package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name       string
		final      string
		wantStatus string
		wantDetail string
	}{
		{
			name:       "both markers",
			final:      "思考完毕\n用例分析结果：成功\n用例分析内容：所有用例通过\n",
			wantStatus: types.StatusSuccess,
			wantDetail: "所有用例通过",
		},
		{
			name:       "first occurrence wins",
			final:      "用例分析结果：失败\n用例分析内容：超时\n用例分析结果：成功\n用例分析内容：ignored",
			wantStatus: types.StatusFailure,
			wantDetail: "超时",
		},
		{
			name:       "markers mid line",
			final:      "**用例分析结果：** 失败\n> 用例分析内容： 断言错误 ",
			wantStatus: "** 失败",
			wantDetail: "断言错误",
		},
		{
			name:       "neither marker",
			final:      "I cannot tell.",
			wantStatus: types.StatusUnparseable,
			wantDetail: types.UnparseableDetail,
		},
		{
			name:       "empty answer",
			final:      "",
			wantStatus: types.StatusUnparseable,
			wantDetail: types.UnparseableDetail,
		},
		{
			name:       "only explanation",
			final:      "用例分析内容：看不出结果",
			wantStatus: types.StatusUnparseable,
			wantDetail: "看不出结果",
		},
		{
			name:       "only result",
			final:      "用例分析结果：成功",
			wantStatus: types.StatusSuccess,
			wantDetail: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, detail := ParseVerdict(tt.final)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}
