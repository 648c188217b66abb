package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", errors.New("boom"), KindTransient},
		{"transient", Transient(CategoryServer, errors.New("503")), KindTransient},
		{"permanent", Permanent(CategoryAuth, errors.New("401")), KindTerminal},
		{"cancelled", Cancelled(context.Canceled), KindCancelled},
		{"bare context error", context.DeadlineExceeded, KindCancelled},
		{"config", Configf("bad rate %v", 0), KindConfiguration},
		{"wrapped", fmt.Errorf("list: %w", Permanent(CategoryNotFound, errors.New("404"))), KindTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestTerminalKeepsLastReasonAndCategory(t *testing.T) {
	quota := errors.New("quota exceeded")
	err := Terminal(Transient(CategoryQuota, quota), 2)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindTerminal, fe.Kind)
	assert.Equal(t, CategoryQuota, fe.Category)
	assert.Equal(t, 2, fe.Attempts)
	assert.ErrorIs(t, err, quota)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestTerminalAnnotatesPermanent(t *testing.T) {
	reason := errors.New("invalid_grant")
	err := Terminal(Permanent(CategoryAuth, reason), 1)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, CategoryAuth, fe.Category)
	assert.Same(t, reason, fe.Err)
}

func TestWithOp(t *testing.T) {
	assert.NoError(t, WithOp(nil, "getMessage"))

	err := WithOp(errors.New("eof"), "getMessage")
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "getMessage", fe.Op)
	assert.Equal(t, "getMessage: transient failure: eof", err.Error())

	orig := Permanent(CategoryAuth, errors.New("401"))
	annotated := WithOp(orig, "listMessages")
	assert.Equal(t, CategoryAuth, CategoryOf(annotated))
	assert.Empty(t, orig.(*Error).Op, "original must not be mutated")
}

func TestIsRetriable(t *testing.T) {
	assert.False(t, IsRetriable(nil))
	assert.True(t, IsRetriable(errors.New("connection reset")))
	assert.True(t, IsRetriable(Transient(CategoryQuota, errors.New("429"))))
	assert.False(t, IsRetriable(Permanent(CategoryAuth, errors.New("401"))))
	assert.False(t, IsRetriable(context.Canceled))
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryUnknown, CategoryOf(errors.New("x")))
	assert.Equal(t, CategoryNetwork, CategoryOf(fmt.Errorf("wrap: %w", Transient(CategoryNetwork, errors.New("dial")))))
	assert.True(t, Is(Cancelled(context.Canceled), KindCancelled))
}
