package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeNetwork, cause, "fetching image")

	assert.Equal(t, CodeNetwork, err.Code())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "NETWORK_ERROR: fetching image", err.Error())
}

func TestAsUnwrapsThroughWrapping(t *testing.T) {
	t.Parallel()

	inner := New(CodeHTTPStatus, "status 404").WithDetails(map[string]any{"status": 404})
	outer := fmt.Errorf("pipeline: %w", inner)

	typed := As(outer)
	require.NotNil(t, typed)
	assert.Equal(t, CodeHTTPStatus, typed.Code())
	assert.Equal(t, map[string]any{"status": 404}, typed.Details())
}

func TestRetryableFollowsTaxonomy(t *testing.T) {
	t.Parallel()

	assert.True(t, Retryable(New(CodeNetwork, "timeout")))
	assert.True(t, Retryable(New(CodeStorage, "upload failed")))
	assert.False(t, Retryable(New(CodeNotAnImage, "text/html")))
	assert.False(t, Retryable(New(CodeDecode, "bad jpeg")))
	assert.False(t, Retryable(fmt.Errorf("untyped")))
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("SOMETHING_NEW"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}
