package file

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/opd-ai/wavlink/limits"
)

const (
	// FileExtension marks a filename announcement.
	FileExtension = ".wav"

	// NotFoundSentinel is sent instead of the contents of a missing file.
	NotFoundSentinel = "FILE_NOT_EXIST"

	// uploadSuffix names stored uploads: "<id>Socket.wav".
	uploadSuffix = "Socket" + FileExtension
)

// ChunkClass is the meaning of the first chunk of an exchange.
type ChunkClass uint8

const (
	ClassPayload ChunkClass = iota
	ClassFileName
	ClassNotFound
)

func (c ChunkClass) String() string {
	switch c {
	case ClassFileName:
		return "filename"
	case ClassNotFound:
		return "not-found"
	default:
		return "payload"
	}
}

// Classify decides what a chunk means. A filename wins over the sentinel,
// which wins over payload. Chunks longer than limits.MaxFileNameSize are
// always payload.
func Classify(chunk []byte) ChunkClass {
	if len(chunk) <= limits.MaxFileNameSize && bytes.Contains(chunk, []byte(FileExtension)) {
		return ClassFileName
	}
	if string(chunk) == NotFoundSentinel {
		return ClassNotFound
	}
	return ClassPayload
}

// AnnouncedName extracts the requested name from a filename announcement.
func AnnouncedName(chunk []byte) string {
	return strings.TrimSpace(strings.TrimRight(string(chunk), "\x00"))
}

// UploadName is the store name of an upload received on connection id.
func UploadName(id uint64) string {
	return strconv.FormatUint(id, 10) + uploadSuffix
}
