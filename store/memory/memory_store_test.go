package memory

import (
	"testing"

	"github.com/go-sif/tablegen"
	"github.com/go-sif/tablegen/errors"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := CreateStore([]*tablegen.Example{{UUID: "a"}, {UUID: "b"}})
	require.Equal(t, 2, store.Len())
	c, err := store.Open()
	require.Nil(t, err)
	example, err := c.Get(1)
	require.Nil(t, err)
	require.Equal(t, "b", example.UUID)
	_, err = c.Get(2)
	require.IsType(t, errors.MissingExampleError{}, err)
	require.Nil(t, c.Close())
	_, err = c.Get(0)
	require.NotNil(t, err)
}
