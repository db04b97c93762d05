package transport

// Access is the desired access requested in SMB2 CREATE.
type Access uint32

const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessDelete
	// AccessReadAttributes opens an object only to query it.
	AccessReadAttributes

	AccessReadWrite = AccessRead | AccessWrite
)

// Disposition is the SMB2 CREATE disposition. Values match [MS-SMB2] 2.2.13.
type Disposition uint32

const (
	// FileSupersede replaces an existing file or creates a new one.
	FileSupersede Disposition = 0
	// FileOpen opens an existing file and fails if it does not exist.
	FileOpen Disposition = 1
	// FileCreate creates a new file and fails if it exists.
	FileCreate Disposition = 2
	// FileOpenIf opens an existing file or creates it.
	FileOpenIf Disposition = 3
	// FileOverwrite truncates an existing file and fails if it does not exist.
	FileOverwrite Disposition = 4
	// FileOverwriteIf truncates an existing file or creates it.
	FileOverwriteIf Disposition = 5
)

func (d Disposition) String() string {
	switch d {
	case FileSupersede:
		return "FILE_SUPERSEDE"
	case FileOpen:
		return "FILE_OPEN"
	case FileCreate:
		return "FILE_CREATE"
	case FileOpenIf:
		return "FILE_OPEN_IF"
	case FileOverwrite:
		return "FILE_OVERWRITE"
	case FileOverwriteIf:
		return "FILE_OVERWRITE_IF"
	default:
		return "FILE_DISPOSITION_UNKNOWN"
	}
}

// Creates reports whether d may create a missing file.
func (d Disposition) Creates() bool {
	return d != FileOpen && d != FileOverwrite
}

// Truncates reports whether d discards existing content.
func (d Disposition) Truncates() bool {
	return d == FileSupersede || d == FileOverwrite || d == FileOverwriteIf
}

// CreateRequest describes an SMB2 CREATE. Directory requests
// FILE_DIRECTORY_FILE.
type CreateRequest struct {
	Access      Access
	Disposition Disposition
	Directory   bool
}

// OpenRead opens an existing file or directory for reading.
func OpenRead() CreateRequest {
	return CreateRequest{Access: AccessRead, Disposition: FileOpen}
}

// OpenAttributes opens an existing object only to query its attributes.
func OpenAttributes() CreateRequest {
	return CreateRequest{Access: AccessReadAttributes, Disposition: FileOpen}
}

// CreateTruncate opens a file for writing, creating or truncating it.
func CreateTruncate() CreateRequest {
	return CreateRequest{Access: AccessReadWrite, Disposition: FileOverwriteIf}
}
