// Package wavlink exchanges audio files and live audio between two peers on
// a LAN.
//
// A [Server] offers one or more protocols at once:
//
//   - TCP file transfer: a client names a .wav file and receives it, or
//     streams a file up which the server stores as "<socket id>Socket.wav".
//     A missing file is answered with the literal FILE_NOT_EXIST.
//   - Multicast streaming: the selected file is sent to group 234.5.6.7 in
//     4000-byte datagrams, one per chunk the local audio sink has consumed.
//   - Voice calls: 1000-byte microphone chunks every 100 ms over UDP, answered
//     on the address the first datagram came from.
//
// A [Client] downloads, uploads, joins a stream or places a call.
//
// # Getting Started
//
//	opts := wavlink.NewOptions()
//	opts.Config.Server.FilesDir = "./files"
//
//	srv, err := wavlink.NewServer(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Shutdown()
//
//	if err := srv.Start(ctx, wavlink.ProtocolTCP); err != nil {
//	    log.Fatal(err)
//	}
//
// and on the other machine:
//
//	cli, err := wavlink.NewClient(opts)
//	res, err := cli.Download(ctx, "song.wav")
//
// Every service owns its own [registry.Registry]; Shutdown and Disconnect
// close all of its sockets and wait for its goroutines.
//
// Status milestones ("Started Server..", "Connected to Server..") go to
// Options.Status, which defaults to logrus.
package wavlink
