package file

import "errors"

// Store errors.
var (
	// ErrDirectoryTraversal indicates a name that would escape the store root.
	ErrDirectoryTraversal = errors.New("path contains directory traversal")

	// ErrInvalidFileName indicates an empty or absolute file name.
	ErrInvalidFileName = errors.New("invalid file name")

	// ErrFileNotFound indicates a local file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrStoreLocked indicates another process holds the directory lock.
	ErrStoreLocked = errors.New("file store locked by another process")
)

// Transfer errors.
var (
	// ErrFileNameTooLong indicates a requested name cannot be announced
	// because it exceeds the filename bound.
	ErrFileNameTooLong = errors.New("file name too long")

	// ErrNotAnnounceable indicates a requested name the peer would not
	// recognize as a filename announcement.
	ErrNotAnnounceable = errors.New("file name must contain " + FileExtension)

	// ErrTransferInterrupted indicates the connection broke before the peer
	// closed it gracefully.
	ErrTransferInterrupted = errors.New("transfer interrupted")
)
