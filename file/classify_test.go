package file

import (
	"bytes"
	"testing"

	"github.com/opd-ai/wavlink/limits"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	oversized := append(bytes.Repeat([]byte{'a'}, limits.MaxFileNameSize), []byte(".wav")...)
	atBound := append(bytes.Repeat([]byte{'a'}, limits.MaxFileNameSize-4), []byte(".wav")...)

	tests := []struct {
		name  string
		chunk []byte
		want  ChunkClass
	}{
		{"filename", []byte("song.wav"), ClassFileName},
		{"filename with path", []byte("music/song.wav"), ClassFileName},
		{"filename at bound", atBound, ClassFileName},
		{"oversized chunk with extension", oversized, ClassPayload},
		{"sentinel", []byte(NotFoundSentinel), ClassNotFound},
		{"sentinel with suffix", []byte(NotFoundSentinel + "!"), ClassPayload},
		{"filename beats sentinel", []byte(NotFoundSentinel + ".wav"), ClassFileName},
		{"payload", []byte("RIFF....WAVEfmt "), ClassPayload},
		{"empty", nil, ClassPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.chunk))
		})
	}
}

func TestAnnouncedName(t *testing.T) {
	assert.Equal(t, "song.wav", AnnouncedName([]byte(" song.wav\n\x00\x00")))
}

func TestUploadName(t *testing.T) {
	assert.Equal(t, "42Socket.wav", UploadName(42))
	assert.Equal(t, ClassFileName, Classify([]byte(UploadName(7))), "stored uploads can be requested back")
}

func TestTransferRequestValidate(t *testing.T) {
	req := NewTransferRequest("127.0.0.1", 9000, "song.wav", DirectionDownload)
	assert.NoError(t, req.Validate())
	assert.NotEqual(t, req.ID, NewTransferRequest("127.0.0.1", 9000, "song.wav", DirectionDownload).ID)

	req.FileName = "notes.txt"
	assert.ErrorIs(t, req.Validate(), ErrNotAnnounceable)

	req.Direction = DirectionUpload
	assert.NoError(t, req.Validate(), "uploads carry no announcement")

	req.FileName = string(bytes.Repeat([]byte{'a'}, limits.MaxFileNameSize)) + ".wav"
	req.Direction = DirectionDownload
	assert.ErrorIs(t, req.Validate(), ErrFileNameTooLong)

	req.FileName = "song.wav"
	req.Port = 0
	assert.Error(t, req.Validate())
}
