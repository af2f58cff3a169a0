package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	bucket, key, contentType string
	body                     []byte
	err                      error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestArchiveKey(t *testing.T) {
	// 31 января 23:30 UTC — уже февраль в Риме
	at := time.Date(2026, 1, 31, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "exports/2026/02/richieste.csv", ArchiveKey("richieste.csv", at, rome))
	assert.Equal(t, "exports/2026/01/richieste.csv", ArchiveKey("richieste.csv", at, time.UTC))
}

func TestArchive_Store(t *testing.T) {
	putter := &fakePutter{}
	a := NewArchive(putter, "parco-exports", rome, discardLogger())
	file := &ExportFile{Name: "richieste_20260315_1030.csv", Content: []byte("\ufeffNome\n")}

	key, err := a.Store(context.Background(), file, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "exports/2026/03/richieste_20260315_1030.csv", key)
	assert.Equal(t, "parco-exports", putter.bucket)
	assert.Equal(t, key, putter.key)
	assert.Equal(t, "text/csv; charset=utf-8", putter.contentType)
	assert.Equal(t, file.Content, putter.body)
}

func TestArchive_Errors(t *testing.T) {
	file := &ExportFile{Name: "x.csv"}

	_, err := NewArchive(nil, "", nil, discardLogger()).Store(context.Background(), file, fixedNow)
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	var nilArchive *Archive
	_, err = nilArchive.Store(context.Background(), file, fixedNow)
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	_, err = NewArchive(&fakePutter{err: errBoom}, "b", nil, discardLogger()).Store(context.Background(), file, fixedNow)
	assert.ErrorIs(t, err, errBoom)
}
