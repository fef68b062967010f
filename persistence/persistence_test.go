package persistence

import (
	"context"
	"io"
	"testing"

	"github.com/go-sif/atlasgen/errors"
	"github.com/go-sif/atlasgen/internal/collection"
	"github.com/go-sif/atlasgen/sharding"
	"github.com/go-sif/atlasgen/storage"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type textFormat struct{}

func (textFormat) Extension() string { return ".txt" }

func (textFormat) Encode(w io.Writer, value string) error {
	_, err := io.WriteString(w, value)
	return err
}

func (textFormat) Decode(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	return string(data), err
}

func TestSchemeApply(t *testing.T) {
	tile, err := sharding.NewSlippyTile(9, 261, 195)
	require.Nil(t, err)
	require.Equal(t, "9/9-261-195.jsonl", Scheme("zz/zz-xx-yy.jsonl").Apply(tile))
	require.Equal(t, "9/", Scheme("zz/").Apply(tile))
	require.True(t, Scheme("zz/").IsDirectory())
	require.False(t, Scheme("zz/zz-xx-yy.jsonl").IsDirectory())
}

func TestLayoutPath(t *testing.T) {
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	layout := Layout{Scheme: "zz/", Sharding: slippy}
	p, err := layout.Path("BLZ_2-0-1", ".atlas")
	require.Nil(t, err)
	require.Equal(t, "BLZ/2/BLZ_2-0-1.atlas", p)

	p, err = Layout{Scheme: "zz/zz-xx-yy.pbf", Sharding: slippy}.Path("BLZ_2-0-1", ".atlas")
	require.Nil(t, err)
	require.Equal(t, "BLZ/2/BLZ_2-0-1.atlas", p)

	p, err = layout.Path("BLZ", ".txt")
	require.Nil(t, err)
	require.Equal(t, "BLZ/BLZ.txt", p)

	_, err = layout.Path("BLZ_9-0-0", ".atlas")
	require.NotNil(t, err)

	key, ok := KeyFromPath(p, ".txt")
	require.True(t, ok)
	require.Equal(t, "BLZ", key)
	_, ok = KeyFromPath(p, ".atlas")
	require.False(t, ok)
}

func TestSaveAndRead(t *testing.T) {
	ctx := context.Background()
	sc, err := collection.NewContext(collection.Options{Workers: 2})
	require.Nil(t, err)
	defer sc.Close()
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	layout := Layout{Scheme: "zz/", Sharding: slippy}
	store := storage.NewAfero(afero.NewMemMapFs(), "/out")

	pairs := collection.Parallelize[string](sc, "values", []collection.Pair[string]{
		{Key: "BLZ_2-0-1", Value: "a"},
		{Key: "BLZ_2-1-1", Value: "b"},
		{Key: "GTM_2-0-1", Value: "c"},
	}, 2, textFormat{})
	written, err := Save[string](ctx, pairs, store, "atlas", layout, textFormat{})
	require.Nil(t, err)
	require.Equal(t, int64(3), written)

	reader := NewReader[string](store, "atlas", layout, textFormat{})
	value, err := reader.Read(ctx, "BLZ_2-1-1")
	require.Nil(t, err)
	require.Equal(t, "b", value)

	_, err = reader.Read(ctx, "BLZ_2-2-1")
	require.True(t, errors.IsMissingDataset(err))
	_, found, err := reader.Lookup(ctx, "BLZ_2-2-1")
	require.Nil(t, err)
	require.False(t, found)

	keys, err := reader.Keys(ctx)
	require.Nil(t, err)
	require.Equal(t, []string{"BLZ_2-0-1", "BLZ_2-1-1", "GTM_2-0-1"}, keys)
}

func TestSaveGroupsValuesByKey(t *testing.T) {
	ctx := context.Background()
	sc, err := collection.NewContext(collection.Options{Workers: 2})
	require.Nil(t, err)
	defer sc.Close()
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	layout := Layout{Scheme: "zz/", Sharding: slippy}
	fs := afero.NewMemMapFs()
	store := storage.NewAfero(fs, "/out")

	pairs := collection.Parallelize[string](sc, "values", []collection.Pair[string]{
		{Key: "BLZ_2-0-1", Value: "a"},
		{Key: "BLZ_2-1-1", Value: "b"},
	}, 1, textFormat{})
	doubled := collection.FlatMapToPair(pairs, "doubled", nil, func(key string, value string) ([]collection.Pair[string], error) {
		return []collection.Pair[string]{{Key: key, Value: value + "1\n"}, {Key: key, Value: value + "2\n"}}, nil
	})
	written, err := Save[string](ctx, doubled, store, "deltas", layout, textFormat{})
	require.Nil(t, err)
	require.Equal(t, int64(4), written)
	data, err := afero.ReadFile(fs, "/out/deltas/BLZ/2/BLZ_2-0-1.txt")
	require.Nil(t, err)
	require.Equal(t, "a1\na2\n", string(data))
	data, err = afero.ReadFile(fs, "/out/deltas/BLZ/2/BLZ_2-1-1.txt")
	require.Nil(t, err)
	require.Equal(t, "b1\nb2\n", string(data))
}

func TestSaveRejectsKeysSpanningPartitions(t *testing.T) {
	ctx := context.Background()
	sc, err := collection.NewContext(collection.Options{Workers: 2})
	require.Nil(t, err)
	defer sc.Close()
	slippy, err := sharding.NewSlippySharding(2)
	require.Nil(t, err)
	layout := Layout{Scheme: "zz/", Sharding: slippy}
	store := storage.NewAfero(afero.NewMemMapFs(), "/out")

	pairs := collection.Parallelize[string](sc, "values", []collection.Pair[string]{
		{Key: "BLZ_2-0-1", Value: "a"},
		{Key: "BLZ_2-0-1", Value: "b"},
	}, 2, textFormat{})
	_, err = Save[string](ctx, pairs, store, "atlas", layout, textFormat{})
	require.NotNil(t, err)
}
