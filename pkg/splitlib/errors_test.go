package splitlib

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid form", invalidForm(errNoParts), MsgInvalidForm},
		{"upstream", upstreamFailed(503), MsgSplitFailed},
		{"transport uses cause", transportFailed(errors.New("connection refused")), "connection refused"},
		{"wrapped tagged error", fmt.Errorf("splitting: %w", upstreamFailed(500)), MsgSplitFailed},
		{"plain error", errors.New("boom"), "boom"},
		{"nil", nil, MsgUnknown},
		{"empty message", errors.New(""), MsgUnknown},
		{"tagged without message", &Error{Kind: KindUnknown}, MsgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 400, StatusOf(invalidForm(nil)))
	assert.Equal(t, 503, StatusOf(upstreamFailed(503)))
	assert.Equal(t, 502, StatusOf(transportFailed(errors.New("x"))))
	assert.Equal(t, 500, StatusOf(errors.New("x")))
	assert.Equal(t, 500, StatusOf(&Error{Kind: KindUnknown}))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidForm, KindOf(invalidForm(nil)))
	assert.Equal(t, KindUpstream, KindOf(fmt.Errorf("wrapped: %w", upstreamFailed(404))))
	assert.Equal(t, KindTransport, KindOf(transportFailed(errors.New("x"))))
	assert.Equal(t, KindUnknown, KindOf(errors.New("x")))
	assert.Equal(t, "upstream", KindUpstream.String())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := transportFailed(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, invalidForm(errNoParts), errNoParts)
}
