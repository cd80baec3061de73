// Command wavlink serves and fetches .wav files, streams them to a multicast
// group and relays voice calls.
//
//	wavlink serve --protocol tcp --protocol call
//	wavlink get song.wav --host 192.168.1.20
//	wavlink put take.wav
//	wavlink listen --output stream.pcm
//	wavlink call --input mic.pcm
//	wavlink config init
//
// Settings come from ~/.config/wavlink/config.toml (see "wavlink config
// init"); flags override the file.
package main
