// Package file implements wavlink's TCP file exchange.
//
// The protocol has no framing. Each connection carries one exchange, and the
// first chunk read on a connection decides what the exchange is:
//
//   - a chunk of at most limits.MaxFileNameSize bytes containing ".wav" is a
//     filename announcement, answered with the file contents or with the
//     NotFoundSentinel;
//   - the exact bytes "FILE_NOT_EXIST" report a missing file;
//   - anything else starts an upload, stored as "<id>Socket.wav" where id
//     identifies the connection.
//
// The end of an exchange is the peer closing the connection.
//
// # Server
//
//	store, _ := file.NewDirStore("./files")
//	srv := file.NewServer(engine, store, status.NewLogger("file"))
//	err := srv.Serve(listener)
//
// # Client
//
//	c := file.NewClient(engine, store, status.NewLogger("file"))
//	res, err := c.Download(ctx, file.NewTransferRequest("10.0.0.2", 9000, "song.wav", file.DirectionDownload))
//	if res.Outcome == file.OutcomeNotFound {
//	    // the server does not have song.wav
//	}
//
// Payload is streamed in limits.FilePayloadChunkSize writes. Files are read
// through interfaces.IFileStore; DirStore confines every name to one
// directory.
package file
