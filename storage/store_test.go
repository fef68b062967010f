package storage

import (
	"context"
	"testing"

	"github.com/go-sif/atlasgen/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestAferoStore(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	store := NewAfero(fs, "/out")

	require.Nil(t, WriteFile(ctx, store, "atlas/AAA/AAA_1-0-0.atlas", []byte("a")))
	require.Nil(t, WriteFile(ctx, store, "atlas/AAA/AAA_1-1-0.atlas", []byte("b")))
	require.Nil(t, WriteFile(ctx, store, "countryStats/AAA.txt", []byte("c")))

	exists, err := store.Exists(ctx, "atlas/AAA/AAA_1-0-0.atlas")
	require.Nil(t, err)
	require.True(t, exists)

	data, err := ReadAll(ctx, store, "atlas/AAA/AAA_1-1-0.atlas")
	require.Nil(t, err)
	require.Equal(t, []byte("b"), data)

	files, err := store.List(ctx, "atlas")
	require.Nil(t, err)
	require.Equal(t, []string{"atlas/AAA/AAA_1-0-0.atlas", "atlas/AAA/AAA_1-1-0.atlas"}, files)

	files, err = store.List(ctx, "missing")
	require.Nil(t, err)
	require.Empty(t, files)

	require.Nil(t, store.RemoveAll(ctx, "atlas"))
	_, err = store.Open(ctx, "atlas/AAA/AAA_1-0-0.atlas")
	require.True(t, errors.IsMissingDataset(err))

	files, err = store.List(ctx, "")
	require.Nil(t, err)
	require.Equal(t, []string{"countryStats/AAA.txt"}, files)
}

func TestReadAndCopyFile(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.Nil(t, afero.WriteFile(fs, "/in/sharding.txt", []byte("slippy@3"), 0644))
	opener := NewAferoOpener(fs)

	data, err := ReadFile(ctx, opener, "file:///in/sharding.txt")
	require.Nil(t, err)
	require.Equal(t, "slippy@3", string(data))

	out, err := opener(ctx, "/out")
	require.Nil(t, err)
	require.Nil(t, CopyFile(ctx, opener, "/in/sharding.txt", out, "sharding.txt"))
	data, err = ReadAll(ctx, out, "sharding.txt")
	require.Nil(t, err)
	require.Equal(t, "slippy@3", string(data))

	_, err = ReadFile(ctx, opener, "/in/missing.txt")
	require.True(t, errors.IsMissingDataset(err))
}

func TestLocations(t *testing.T) {
	bucket, prefix := splitBucket("bucket/some/prefix/")
	require.Equal(t, "bucket", bucket)
	require.Equal(t, "some/prefix", prefix)
	bucket, prefix = splitBucket("bucket")
	require.Equal(t, "bucket", bucket)
	require.Equal(t, "", prefix)

	require.Equal(t, "s3://bucket/out/atlas", Join("s3://bucket/out", "atlas"))
	require.Equal(t, "/tmp/out/atlas/AAA", Join("/tmp/out", "atlas", "AAA"))

	dir, file := Split("gs://bucket/pbfs/sharding.txt")
	require.Equal(t, "gs://bucket/pbfs", dir)
	require.Equal(t, "sharding.txt", file)
	dir, file = Split("sharding.txt")
	require.Equal(t, ".", dir)
	require.Equal(t, "sharding.txt", file)

	_, err := OpenLocation(context.Background(), "ftp://host/path")
	require.NotNil(t, err)
}
