package stream

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-aio/driver"
)

type byteInput struct {
	*strings.Reader
}

func (byteInput) LeastSize() int { return 0 }

func newInput(s string) driver.Input { return byteInput{strings.NewReader(s)} }

func TestCountingReader_TracksBytesAndCallback(t *testing.T) {
	var delta int64
	r := NewCountingReader(newInput("hello world"), func(d int64) { delta += d })
	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.EqualValues(t, 11, r.Count())
	assert.EqualValues(t, 11, delta)
}

func TestLimitedReader_ErrorsPastLimit(t *testing.T) {
	r := NewLimitedReader(newInput("0123456789"), 4)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = r.Read(buf)
	require.Error(t, err)
}

func TestPipe_WriteThenRead(t *testing.T) {
	p := NewPipe(0, false)
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := p.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, "abcde", string(buf[:n]))
	}()

	n, err := p.Write([]byte("abcde"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	<-done
}

func TestPipe_BoundedBufferBlocksWriterUntilReaderDrains(t *testing.T) {
	// spec.md §8 scenario S5: 10 KiB through a 2 KiB buffer, reader
	// reading 100 bytes at a time; exact byte-for-byte delivery and the
	// writer must block while the reader stalls.
	const (
		total = 10 * 1024
		bufSz = 2 * 1024
		chunk = 100
	)
	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i)
	}

	p := NewPipe(bufSz, false)

	writeDone := make(chan error, 1)
	go func() {
		_, err := p.Write(src)
		writeDone <- err
	}()

	// the writer can only get bufSz ahead before Write blocks
	time.Sleep(20 * time.Millisecond)
	select {
	case err := <-writeDone:
		t.Fatalf("writer finished early (err=%v) without the reader ever stalling it", err)
	default:
	}

	got := make([]byte, 0, total)
	buf := make([]byte, chunk)
	for len(got) < total {
		n, err := p.Read(buf)
		require.NoError(t, err)
		got = append(got, buf[:n]...)
	}

	require.NoError(t, <-writeDone)
	assert.Equal(t, src, got)
}

func TestPipe_GrowWhenFullDoesNotBlockWriter(t *testing.T) {
	p := NewPipe(8, true)

	payload := bytes.Repeat([]byte{'x'}, 64)
	n, err := p.Write(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, len(payload), p.LeastSize())

	got := make([]byte, len(payload))
	n, err = p.Read(got)
	require.NoError(t, err)
	assert.Equal(t, payload, got[:n])
}

func TestPipe_CloseWriteDeliversEOFAfterDrain(t *testing.T) {
	p := NewPipe(16, false)
	_, err := p.Write([]byte("tail"))
	require.NoError(t, err)
	require.NoError(t, p.CloseWrite())

	buf := make([]byte, 4)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "tail", string(buf[:n]))

	_, err = p.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipe_CloseMakesFurtherReadAndWriteErrors(t *testing.T) {
	p := NewPipe(16, false)
	require.NoError(t, p.Close())

	_, err := p.Read(make([]byte, 4))
	require.Error(t, err)

	_, err = p.Write([]byte("x"))
	require.Error(t, err)
}

func TestPipe_WaitForDataReturnsOnceWriterSends(t *testing.T) {
	p := NewPipe(16, false)
	assert.False(t, p.WaitForData(20*time.Millisecond), "no writer yet, should time out")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = p.Write([]byte("x"))
	}()
	assert.True(t, p.WaitForData(time.Second))
}

func TestFileStream_SizeReadableWritableTell(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/f.txt"
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	require.NoError(t, err)
	fs := NewFileStream(f, os.O_RDWR)
	defer fs.Close()

	assert.True(t, fs.Readable())
	assert.True(t, fs.Writable())

	size, err := fs.Size()
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)

	buf := make([]byte, 3)
	n, err := fs.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(buf[:n]))

	pos, err := fs.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 3, pos)

	_, err = fs.Seek(0, io.SeekStart)
	require.NoError(t, err)
	pos, err = fs.Tell()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos)
}

func TestEndCallback_FiresOnceAtEOF(t *testing.T) {
	calls := 0
	r := NewEndCallback(newInput("x"), func(error) { calls++ })
	buf := make([]byte, 16)
	_, _ = r.Read(buf)
	_, _ = r.Read(buf)
	_, _ = r.Read(buf)
	assert.Equal(t, 1, calls)
}

func TestMulticaster_FailsFastOnDownstreamError(t *testing.T) {
	var good bytes.Buffer
	bad := failingWriter{}
	m := NewMulticaster(&good, bad)
	_, err := m.Write([]byte("x"))
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestNullSink_DiscardsWithoutError(t *testing.T) {
	n, err := NullSink{}.Write([]byte("anything"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	gw, err := NewGzipWriter(&buf, 0)
	require.NoError(t, err)
	_, err = gw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	gr, err := NewGzipReader(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(out))
}

func TestZlibRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	zw, err := NewZlibWriter(&buf, 0)
	require.NoError(t, err)
	_, err = zw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	zr, err := NewZlibReader(&buf)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(out))
}

func TestDeflateRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	dw, err := NewDeflateWriter(&buf, 0)
	require.NoError(t, err)
	_, err = dw.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, dw.Close())

	dr := NewDeflateReader(&buf)
	out, err := io.ReadAll(dr)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(out))
}

func TestBase64RoundTrip_WithLineWrapping(t *testing.T) {
	var buf bytes.Buffer
	bw := NewBase64Writer(&buf)
	payload := bytes.Repeat([]byte("a"), 200)
	_, err := bw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	assert.Contains(t, buf.String(), "\r\n", "must be line-wrapped")

	br := NewBase64Reader(&buf)
	out, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, payload, out)
}
