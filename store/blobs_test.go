package store

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/stretchr/testify/require"
)

func TestSpoolSaveAndRelease(t *testing.T) {
	spool, err := NewSpool(t.TempDir())
	require.NoError(t, err)

	sf, err := spool.Save(strings.NewReader("zip bytes"))
	require.NoError(t, err)
	require.EqualValues(t, 9, sf.Size)

	r, err := sf.Open()
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	require.Equal(t, "zip bytes", string(body))

	require.NoError(t, sf.Release())
	_, err = os.Stat(sf.Path)
	require.True(t, os.IsNotExist(err))
	require.NoError(t, sf.Release())
}

func TestBlobStoreRevokeOnce(t *testing.T) {
	spool, err := NewSpool(t.TempDir())
	require.NoError(t, err)
	blobs := NewBlobStore(spool)

	ref, err := blobs.Create(models.FileHandle{
		Name:   "clip.mp4",
		Type:   "video/mp4",
		Source: models.BytesSource("frames"),
	})
	require.NoError(t, err)
	require.Equal(t, "blob:"+ref.ID, ref.URL)
	require.EqualValues(t, 6, ref.Size)
	require.Equal(t, 1, blobs.Live())

	f, got, err := blobs.Open(ref.ID)
	require.NoError(t, err)
	require.Equal(t, ref, got)
	f.Close()

	require.NoError(t, blobs.Revoke(ref.ID))
	require.ErrorIs(t, blobs.Revoke(ref.ID), apperror.ErrBlobRevoked)
	require.Equal(t, 1, blobs.Revoked())
	require.Zero(t, blobs.Live())

	_, _, err = blobs.Open(ref.ID)
	require.ErrorIs(t, err, apperror.ErrBlobRevoked)
}
