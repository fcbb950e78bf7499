package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Version(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2024-05-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.2.0", "2024-05-01"), want: "1.2.0"},
		{name: "pre-release tag", ctx: NewContext("1.2.0-rc.1", "2024-05-01"), want: "1.2.0-rc.1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContext_String(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1.2.0 (built 2024-05-01)", NewContext("1.2.0", "2024-05-01").String())
	assert.Equal(t, "unknown (built unknown)", (*Context)(nil).String())
}
