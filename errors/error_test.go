package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrappedErrors(t *testing.T) {
	err := fmt.Errorf("reading: %w", MissingDatasetError{Path: "out/atlas"})
	require.True(t, IsMissingDataset(err))
	require.False(t, IsNotRetained(err))

	err = StageError{Stage: "Raw", Err: NotRetainedError{Key: "c/1"}}
	require.True(t, IsNotRetained(err))
	require.Equal(t, "Stage Raw failed: Partition c/1 is not retained", err.Error())

	err = ConfigurationError{Message: "no countries"}
	require.True(t, IsConfiguration(fmt.Errorf("wrapped: %w", err)))
}
