package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCodes(t *testing.T) {
	tests := []struct {
		kind Kind
		code string
	}{
		{KindInvalidRequest, "invalid_request"},
		{KindNotFound, "not_found"},
		{KindUnauthorized, "unauthorized"},
		{KindUpstreamUnavailable, "upstream_unavailable"},
		{KindPatchInvalid, "patch_invalid"},
		{KindConflict, "conflict"},
		{KindInternal, "internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.kind.Code())
	}
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, KindInternal, SeverityCritical, "should be nil"))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Upstream(cause, "vector store unreachable")

	assert.Equal(t, "vector store unreachable: connection refused", err.Error())
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestKindOfUnwrapsChains(t *testing.T) {
	inner := NotFoundf("repo %s not indexed", "demo")
	wrapped := fmt.Errorf("retrieval failed: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.False(t, IsKind(wrapped, KindConflict))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(fmt.Errorf("boom")))
}

func TestWithDetail(t *testing.T) {
	err := PatchInvalid("validation failed").
		WithDetail("files", []string{"a.py"}).
		WithDetail("issues", 2)

	details := DetailsOf(err)
	assert.Equal(t, []string{"a.py"}, details["files"])
	assert.Equal(t, 2, details["issues"])
}

func TestIsMatchesByKind(t *testing.T) {
	a := Conflict("index already running")
	b := Conflictf("duplicate repo %s", "x")

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, NotFound("missing")))
}

func TestSeverityOf(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityOf(Internal(fmt.Errorf("x"), "boom")))
	assert.Equal(t, SeverityMedium, SeverityOf(fmt.Errorf("plain")))
}
