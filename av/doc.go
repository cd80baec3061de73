// Package av relays live voice over UDP.
//
// Each direction of a call is one loop. The Sender captures the microphone
// and, on every tick (100 ms by default), sends the next captured chunk of up
// to limits.VoiceChunkSize bytes to the remote voice port. The Receiver binds
// that port and pushes every datagram into its playback sink.
//
// There is no signalling: a call starts when the first datagram arrives and
// ends locally with Hangup. The callee learns the caller's address from that
// first datagram (CallSession.PeerSeen) and may answer with Sender.Reply,
// which sends from the receiving socket. The caller hears the answer by
// attaching a Receiver to its own call socket.
//
//	recv := av.NewReceiver(engine, speaker, ch, av.DefaultOptions())
//	incoming, err := recv.Listen(ctx, 9001)
//
//	send := av.NewSender(engine, mic, ch, av.DefaultOptions())
//	call, err := send.Call(ctx, "10.0.0.2", 9001)
//	back, err := av.NewReceiver(engine, speaker, ch, av.DefaultOptions()).Attach(call)
//	...
//	call.Hangup()
package av
