package handler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRequestOptions(t *testing.T) {
	var req getRequest
	require.NoError(t, json.Unmarshal([]byte(`{"command":"show version"}`), &req))
	opts := req.options()
	assert.True(t, opts.Newline, "未指定newline时应该按默认追加换行")

	req = getRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"command":"q","newline":false,"sendonly":true}`), &req))
	opts = req.options()
	assert.False(t, opts.Newline, "显式newline=false应该关闭换行")
	assert.True(t, opts.Sendonly)

	req = getRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"command":"copy run start","prompt":["\\?"],"answer":["y"],"newline":true,"check_all":true}`), &req))
	opts = req.options()
	assert.True(t, opts.Newline)
	assert.Equal(t, []string{`\?`}, opts.Prompt)
	assert.Equal(t, []string{"y"}, opts.Answer)
	assert.True(t, opts.CheckAll)
}
