//go:build unix

package wavlink

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/wavlink/file"
	"github.com/opd-ai/wavlink/status"
	"github.com/opd-ai/wavlink/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) *Options {
	t.Helper()
	opts := NewOptions()
	opts.Config.Server.Host = "127.0.0.1"
	opts.Config.Server.Port = 0
	opts.Config.Server.FilesDir = t.TempDir()
	opts.Config.Voice.Port = 0
	opts.Config.Voice.IntervalMS = 5
	opts.Config.Voice.RecordingFile = filepath.Join(t.TempDir(), "recording.wav")
	opts.Sink = newRecordingSink()
	return opts
}

func startServer(t *testing.T, opts *Options, protos ...Protocol) *Server {
	t.Helper()
	srv, err := NewServer(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown() })
	for _, p := range protos {
		require.NoError(t, srv.Start(context.Background(), p))
	}
	return srv
}

func clientFor(t *testing.T, srv *Server) (*Client, *Options) {
	t.Helper()
	opts := testOptions(t)
	if addr := srv.Addr(); addr != nil {
		opts.Config.Server.Port = addr.(*net.TCPAddr).Port
	}
	cli, err := NewClient(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Disconnect() })
	return cli, opts
}

func drain(ch *status.Chan) []string {
	var out []string
	for {
		select {
		case msg := <-ch.C:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestUploadThenDownloadReproducesFile(t *testing.T) {
	srvOpts := testOptions(t)
	srv := startServer(t, srvOpts, ProtocolTCP)
	cli, cliOpts := clientFor(t, srv)
	ctx := context.Background()

	content := bytes.Repeat([]byte("riff"), 40000)
	require.NoError(t, os.WriteFile(filepath.Join(cliOpts.Config.Server.FilesDir, "take.wav"), content, 0o644))

	res, err := cli.Upload(ctx, "take.wav")
	require.NoError(t, err)
	assert.Equal(t, file.OutcomeSuccess, res.Outcome)

	require.Eventually(t, func() bool { return len(srv.Results()) == 1 }, 5*time.Second, 10*time.Millisecond)
	stored := srv.Results()[0]
	assert.Equal(t, file.DirectionUpload, stored.Direction)
	assert.Equal(t, int64(len(content)), stored.Bytes)

	got, err := cli.DownloadAs(ctx, stored.FileName, "again.wav")
	require.NoError(t, err)
	assert.Equal(t, file.OutcomeSuccess, got.Outcome)

	data, err := os.ReadFile(filepath.Join(cliOpts.Config.Server.FilesDir, "again.wav"))
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestDownloadMissingFile(t *testing.T) {
	srv := startServer(t, testOptions(t), ProtocolTCP)
	cli, _ := clientFor(t, srv)

	res, err := cli.Download(context.Background(), "absent.wav")
	require.NoError(t, err)
	assert.Equal(t, file.OutcomeNotFound, res.Outcome)
	assert.Zero(t, res.Bytes)
}

func TestServerStatusMilestones(t *testing.T) {
	opts := testOptions(t)
	ch := status.NewChan(64)
	opts.Status = ch

	srv, err := NewServer(opts)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background(), ProtocolTCP))
	require.NoError(t, srv.Shutdown())

	assert.Equal(t, []string{"Started Server..", "Shut Down Server.."}, drain(ch))
}

func TestClientDisconnectMilestones(t *testing.T) {
	opts := testOptions(t)
	ch := status.NewChan(8)
	opts.Status = ch

	cli, err := NewClient(opts)
	require.NoError(t, err)
	require.NoError(t, cli.Disconnect())

	assert.Equal(t, []string{"Disconnecting Client..", "Disconnected.."}, drain(ch))
}

func TestStartTwiceIsRefused(t *testing.T) {
	srv := startServer(t, testOptions(t), ProtocolTCP)
	assert.ErrorIs(t, srv.Start(context.Background(), ProtocolTCP), ErrAlreadyRunning)
}

func TestServerRestartsAfterShutdown(t *testing.T) {
	srv := startServer(t, testOptions(t), ProtocolTCP)
	require.NoError(t, srv.Shutdown())
	assert.Nil(t, srv.Addr())
	require.NoError(t, srv.Start(context.Background(), ProtocolTCP))
	assert.NotNil(t, srv.Addr())
}

func TestSecondServerOnSameDirectory(t *testing.T) {
	opts := testOptions(t)
	startServer(t, opts, ProtocolTCP)

	other := testOptions(t)
	other.Config.Server.FilesDir = opts.Config.Server.FilesDir
	second, err := NewServer(other)
	require.NoError(t, err)
	assert.ErrorIs(t, second.Start(context.Background(), ProtocolTCP), file.ErrStoreLocked)
}

func TestMulticastNeedsSelectedFile(t *testing.T) {
	srv := startServer(t, testOptions(t))
	assert.ErrorIs(t, srv.Start(context.Background(), ProtocolMulticast), stream.ErrNoFileSelected)

	srv.Select("missing.wav")
	assert.ErrorIs(t, srv.Start(context.Background(), ProtocolMulticast), stream.ErrSourceNotFound)
}

func TestCallNeedsMicrophone(t *testing.T) {
	cli, err := NewClient(testOptions(t))
	require.NoError(t, err)
	defer cli.Disconnect()

	_, err = cli.Call(context.Background())
	assert.ErrorIs(t, err, ErrNoMicrophone)
}

func TestCallIsAnswered(t *testing.T) {
	srvOpts := testOptions(t)
	srvSink := newRecordingSink()
	srvOpts.Sink = srvSink
	srvOpts.Microphone = &queueMic{queue: [][]byte{bytes.Repeat([]byte{2}, 300)}}
	srv := startServer(t, srvOpts, ProtocolCall)

	incoming, _ := srv.Call()
	require.NotNil(t, incoming)

	cliOpts := testOptions(t)
	cliOpts.Config.Voice.Port = incoming.LocalAddr().(*net.UDPAddr).Port
	cliSink := newRecordingSink()
	cliOpts.Sink = cliSink
	cliOpts.Microphone = &queueMic{queue: [][]byte{bytes.Repeat([]byte{1}, 1000)}}
	cli, err := NewClient(cliOpts)
	require.NoError(t, err)
	defer cli.Disconnect()

	call, err := cli.Call(context.Background())
	require.NoError(t, err)
	assert.True(t, call.Active())

	require.Eventually(t, func() bool { return len(srvSink.played()) == 1 }, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(cliSink.played()) == 1 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, bytes.Repeat([]byte{2}, 300), cliSink.played()[0])

	require.Eventually(t, func() bool {
		_, answer := srv.Call()
		return answer != nil && answer.Frames() == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, cli.Disconnect())
	recorded, err := os.ReadFile(cliOpts.Config.Voice.RecordingFile)
	require.NoError(t, err)
	assert.Len(t, recorded, 1000)
}

func TestParseProtocol(t *testing.T) {
	for name, want := range map[string]Protocol{"tcp": ProtocolTCP, "Stream": ProtocolMulticast, "call": ProtocolCall} {
		got, err := ParseProtocol(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseProtocol("smtp")
	assert.ErrorIs(t, err, ErrUnknownProtocol)
	assert.Equal(t, "multicast", ProtocolMulticast.String())
}
