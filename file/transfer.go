package file

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/opd-ai/wavlink/limits"
)

// Direction is the way file bytes flow, seen from the client.
type Direction uint8

const (
	// DirectionDownload moves a file from server to client.
	DirectionDownload Direction = iota
	// DirectionUpload moves a file from client to server.
	DirectionUpload
)

func (d Direction) String() string {
	if d == DirectionUpload {
		return "upload"
	}
	return "download"
}

// Outcome is how an exchange ended.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound means the requested file does not exist. It is a
	// protocol answer, not a failure of the connection.
	OutcomeNotFound
	OutcomeConnectionError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not-found"
	default:
		return "connection-error"
	}
}

// TransferRequest describes one client exchange.
type TransferRequest struct {
	ID        uuid.UUID
	Host      string
	Port      int
	FileName  string
	Direction Direction
	// SaveAs names the downloaded file in the local store. Empty selects
	// "<id>Socket.wav".
	SaveAs string
}

// NewTransferRequest creates a request with a fresh ID.
func NewTransferRequest(host string, port int, fileName string, dir Direction) TransferRequest {
	return TransferRequest{
		ID:        uuid.New(),
		Host:      host,
		Port:      port,
		FileName:  fileName,
		Direction: dir,
	}
}

// Validate rejects requests the protocol cannot carry.
func (r TransferRequest) Validate() error {
	if r.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidFileName)
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("port %d out of range", r.Port)
	}
	if strings.TrimSpace(r.FileName) == "" {
		return ErrInvalidFileName
	}
	if r.Direction == DirectionDownload {
		if len(r.FileName) > limits.MaxFileNameSize {
			return fmt.Errorf("%w: %d bytes", ErrFileNameTooLong, len(r.FileName))
		}
		if !strings.Contains(r.FileName, FileExtension) {
			return ErrNotAnnounceable
		}
	}
	return nil
}

// Result reports a finished exchange.
type Result struct {
	// RequestID is the client request; zero on the server side.
	RequestID uuid.UUID
	// ConnID is the transport endpoint that carried the exchange.
	ConnID    uint64
	Direction Direction
	// FileName is the local file read or written.
	FileName string
	Outcome  Outcome
	Bytes    int64
	// Digest is the BLAKE2b-256 of a stored upload or download, when the
	// store can compute it.
	Digest string
	Err    error
}

// digester is implemented by stores that can hash their files.
type digester interface {
	Digest(name string) (string, error)
}
