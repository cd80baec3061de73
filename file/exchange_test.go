//go:build unix

package file

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/opd-ai/wavlink/limits"
	"github.com/opd-ai/wavlink/registry"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	engine  *transport.Engine
	port    int
	store   *memStore
	results chan Result
	status  *status.Chan
}

func startServer(t *testing.T) *testServer {
	t.Helper()
	reg, err := registry.New(limits.DefaultMaxPerRole)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.ShutdownAll() })

	engine, err := transport.NewEngine(reg)
	require.NoError(t, err)

	ts := &testServer{
		engine:  engine,
		store:   newMemStore(),
		results: make(chan Result, 8),
		status:  status.NewChan(64),
	}

	ln, err := engine.CreateSocket(context.Background(), transport.RoleListener, transport.KindTCP, "")
	require.NoError(t, err)
	require.NoError(t, engine.SetReuseAddr(ln))
	require.NoError(t, engine.Bind(ln, 0))
	require.NoError(t, engine.Listen(ln, limits.DefaultListenBacklog))
	ts.port = ln.LocalAddr().(*net.TCPAddr).Port

	srv := NewServer(engine, ts.store, ts.status,
		WithClock(fixedClock),
		WithResultHandler(func(r Result) { ts.results <- r }))
	require.NoError(t, srv.Serve(ln))
	return ts
}

func (ts *testServer) nextResult(t *testing.T) Result {
	t.Helper()
	select {
	case r := <-ts.results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("server reported no result")
		return Result{}
	}
}

func newTestClient(t *testing.T) (*Client, *memStore) {
	t.Helper()
	reg, err := registry.New(limits.DefaultMaxPerRole)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.ShutdownAll() })

	engine, err := transport.NewEngine(reg)
	require.NoError(t, err)
	store := newMemStore()
	return NewClient(engine, store, nil), store
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDownloadStreamsInPayloadChunks(t *testing.T) {
	ts := startServer(t)
	content := pattern(130000)
	ts.store.put("song.wav", content)

	client, local := newTestClient(t)
	req := NewTransferRequest("127.0.0.1", ts.port, "song.wav", DirectionDownload)
	req.SaveAs = "copy.wav"

	res, err := client.Download(testContext(t), req)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, int64(130000), res.Bytes)
	assert.Equal(t, req.ID, res.RequestID)

	got, ok := local.get("copy.wav")
	require.True(t, ok)
	assert.Equal(t, content, got)

	served := ts.nextResult(t)
	assert.Equal(t, DirectionDownload, served.Direction)
	assert.Equal(t, OutcomeSuccess, served.Outcome)
	assert.Equal(t, []int{64000, 64000, 2000}, ts.store.chunkSizes())
}

func TestDownloadDefaultSaveName(t *testing.T) {
	ts := startServer(t)
	ts.store.put("short.wav", []byte("RIFF"))

	client, local := newTestClient(t)
	res, err := client.Download(testContext(t), NewTransferRequest("127.0.0.1", ts.port, "short.wav", DirectionDownload))
	require.NoError(t, err)

	assert.Equal(t, strconv.FormatUint(res.ConnID, 10)+"Socket.wav", res.FileName)
	got, ok := local.get(res.FileName)
	require.True(t, ok)
	assert.Equal(t, "RIFF", string(got))
}

func TestDownloadNotFound(t *testing.T) {
	ts := startServer(t)
	client, local := newTestClient(t)

	req := NewTransferRequest("127.0.0.1", ts.port, "missing.wav", DirectionDownload)
	req.SaveAs = "missing.wav"
	res, err := client.Download(testContext(t), req)
	require.NoError(t, err, "not found is an outcome, not an error")
	assert.Equal(t, OutcomeNotFound, res.Outcome)

	_, ok := local.get("missing.wav")
	assert.False(t, ok, "nothing is saved for a missing file")

	served := ts.nextResult(t)
	assert.Equal(t, OutcomeNotFound, served.Outcome)
	assert.Equal(t, "missing.wav", served.FileName)
}

func TestNotFoundAnswerIsExactlyTheSentinel(t *testing.T) {
	ts := startServer(t)

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(ts.port)))
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte("nothing-here.wav"))
	require.NoError(t, err)

	answer, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, NotFoundSentinel, string(answer))
}

func TestTraversalIsNotFound(t *testing.T) {
	ts := startServer(t)
	client, _ := newTestClient(t)

	res, err := client.Download(testContext(t), NewTransferRequest("127.0.0.1", ts.port, "../../etc/passwd.wav", DirectionDownload))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	for _, size := range []int{0, 200000} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			ts := startServer(t)
			client, local := newTestClient(t)
			content := pattern(size)
			local.put("take.wav", content)

			up, err := client.Upload(testContext(t), NewTransferRequest("127.0.0.1", ts.port, "take.wav", DirectionUpload))
			require.NoError(t, err)
			assert.Equal(t, OutcomeSuccess, up.Outcome)
			assert.Equal(t, int64(len(content)), up.Bytes)

			stored := ts.nextResult(t)
			require.Equal(t, DirectionUpload, stored.Direction)
			require.Equal(t, OutcomeSuccess, stored.Outcome)
			assert.Equal(t, int64(len(content)), stored.Bytes)
			require.True(t, ts.store.Exists(stored.FileName), "the upload is stored even when empty")

			req := NewTransferRequest("127.0.0.1", ts.port, stored.FileName, DirectionDownload)
			req.SaveAs = "back.wav"
			down, err := client.Download(testContext(t), req)
			require.NoError(t, err)
			assert.Equal(t, OutcomeSuccess, down.Outcome)

			got, ok := local.get("back.wav")
			require.True(t, ok)
			assert.Len(t, got, len(content))
			if size > 0 {
				assert.Equal(t, content, got)
			}
		})
	}
}

func TestOversizedWavChunkIsStoredAsPayload(t *testing.T) {
	ts := startServer(t)

	chunk := append(pattern(2000), []byte(".wav")...)
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(ts.port)))
	require.NoError(t, err)
	_, err = conn.Write(chunk)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	stored := ts.nextResult(t)
	assert.Equal(t, DirectionUpload, stored.Direction)
	assert.Equal(t, OutcomeSuccess, stored.Outcome)

	got, ok := ts.store.get(stored.FileName)
	require.True(t, ok)
	assert.Equal(t, chunk, got)
}

func TestUploadMissingLocalFile(t *testing.T) {
	client, _ := newTestClient(t)
	res, err := client.Upload(testContext(t), NewTransferRequest("127.0.0.1", 9, "absent.wav", DirectionUpload))
	assert.ErrorIs(t, err, ErrFileNotFound)
	assert.Equal(t, OutcomeNotFound, res.Outcome)
}

func TestDownloadConnectionRefused(t *testing.T) {
	ts := startServer(t)
	port := ts.port
	require.NoError(t, ts.engine.Registry().ShutdownAll())

	client, _ := newTestClient(t)
	res, err := client.Download(testContext(t), NewTransferRequest("127.0.0.1", port, "song.wav", DirectionDownload))
	assert.ErrorIs(t, err, transport.ErrConnectFailed)
	assert.Equal(t, OutcomeConnectionError, res.Outcome)
}

func TestServerPostsMilestones(t *testing.T) {
	ts := startServer(t)
	ts.store.put("song.wav", pattern(10))

	client, _ := newTestClient(t)
	_, err := client.Download(testContext(t), NewTransferRequest("127.0.0.1", ts.port, "song.wav", DirectionDownload))
	require.NoError(t, err)
	ts.nextResult(t)

	var msgs []string
	require.Eventually(t, func() bool {
		for {
			select {
			case m := <-ts.status.C:
				msgs = append(msgs, m)
			default:
				return len(msgs) >= 4
			}
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Regexp(t, `^Client Connected on Socket: \d+\nTime: Thu, 01 Jan 2026 00:00:00 UTC$`, msgs[0])
	assert.Equal(t, "Reading file name: song.wav", msgs[1])
	assert.Equal(t, "Sending file contents..", msgs[2])
	assert.Regexp(t, `^Read Complete on socket: \d+$`, msgs[3])
}
