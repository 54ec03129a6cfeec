package cases

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchText(t *testing.T) {
	tests := []struct {
		actual, expected string
		want             bool
		wantErr          bool
	}{
		{"Dashboard", "Dashboard", true, false},
		{"Dashboard - Acme", "Dashboard", false, false},
		{"Dashboard - Acme", "^Dashboard", true, false},
		{"Welcome back, alice", "alice$", true, false},
		{"Welcome back, bob", "^Welcome back, (alice|carol)$", false, false},
		{"anything", "^([a-z$", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got, err := matchText(tt.actual, tt.expected)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestValidateMap(t *testing.T) {
	actual := decode(t, `{"code":0,"data":{"name":"alice","tags":["a","b","c"],"id":"u-1234"},"extra":true}`)

	tests := []struct {
		name     string
		expected string
		want     bool
	}{
		{"subset", `{"code":0}`, true},
		{"nested", `{"data":{"name":"alice"}}`, true},
		{"nested pattern", `{"data":{"id":"^u-[0-9]+$"}}`, true},
		{"slice prefix", `{"data":{"tags":["a","b"]}}`, true},
		{"slice too long", `{"data":{"tags":["a","b","c","d"]}}`, false},
		{"missing key", `{"missing":1}`, false},
		{"wrong type", `{"data":"alice"}`, false},
		{"wrong value", `{"code":1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateMap(actual, decode(t, tt.expected)))
		})
	}
}

func TestValidateTopLevel(t *testing.T) {
	actual := decode(t, `{"code":0,"msg":"ok: 3 items","data":{"n":3,"more":1}}`)

	assert.True(t, validateTopLevel(actual, decode(t, `{"code":0,"msg":"^ok"}`)))
	assert.True(t, validateTopLevel(actual, decode(t, `{"data":{"n":3,"more":1}}`)))
	// 非严格模式下嵌套对象必须完全相同
	assert.False(t, validateTopLevel(actual, decode(t, `{"data":{"n":3}}`)))
	assert.False(t, validateTopLevel(actual, decode(t, `{"msg":"^failed"}`)))
	assert.False(t, validateTopLevel(actual, decode(t, `{"code":"^0$"}`)))
}
