package upload

import "fmt"

// FileTooLargeError rejects an upload over the size cap.
type FileTooLargeError struct {
	Size int64
	Max  int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("upload: file too large: %d bytes (max %d)", e.Size, e.Max)
}

// UnsupportedFileTypeError rejects a media type outside the allow-list.
type UnsupportedFileTypeError struct {
	MIME string
}

func (e *UnsupportedFileTypeError) Error() string {
	return "upload: unsupported file type: " + e.MIME
}

// FileNotFoundError marks an id with no registry record.
type FileNotFoundError struct {
	ID int
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("upload: file %d not found", e.ID)
}

// DeleteError marks a record whose on-disk file could not be removed.
type DeleteError struct {
	ID  int
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("upload: delete of file %d failed: %v", e.ID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }

// SyncError marks a failed registry/directory reconciliation.
type SyncError struct {
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("upload: sync failed: %v", e.Err) }

func (e *SyncError) Unwrap() error { return e.Err }

// ProcessingError marks a failed write of uploaded bytes.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string { return fmt.Sprintf("upload: processing failed: %v", e.Err) }

func (e *ProcessingError) Unwrap() error { return e.Err }
