// Package stream distributes a .wav file over UDP multicast.
//
// The broadcaster sends the file in limits.StreamChunkSize datagrams to a
// multicast group and paces itself with its own playback device: each chunk
// sent is also pushed into a silently playing sink, and the next chunk is
// sent when that sink reports its buffer exhausted. The sink reports an empty
// buffer once right after it starts; that first event is ignored.
//
// Listeners join the group and push every datagram they receive into their
// playback sink. There is no acknowledgement, retransmission or reordering.
//
//	b := stream.NewBroadcaster(engine, store, sink, ch, stream.DefaultOptions())
//	sess, err := b.Start(ctx, "song.wav")
//	...
//	<-sess.Done()
package stream
