package transfer

// UploadConfig bounds what the upload pipeline will accept.
type UploadConfig struct {
	MaxFileSize          int64
	AllowedExtensions    []string // lowercase, with leading dot; empty means "no allow-list"
	BlockedExtensions    []string // lowercase, with leading dot
	MaxFilesPerDay       int
	MaxBytesPerDay       uint64
	EnableDuplicateCheck bool
	EnableVirusScan      bool
	RequiredAccessLevel  int // minimum security level to upload at all, area ACS is checked separately
}

// DownloadConfig bounds what the download pipeline will serve and tells
// it which protocol engine to hand the file to.
type DownloadConfig struct {
	Protocol       string // "xmodem", "ymodem", "zmodem", or "" for auto-detect
	BufferSize     int
	TimeoutSeconds int
	MaxRetries     int
	EnableResume   bool
	UseCRC32       bool
	Overwrite      bool
	MaxRatio       float64 // download_bytes / upload_bytes ceiling, see CanDownload
	MaxFilesPerDay int
	MaxBytesPerDay uint64
}

// gracePeriodBytes is the cumulative download allowance a zero-upload
// user gets before ratio enforcement engages.
const gracePeriodBytes uint64 = 10 * 1024 * 1024
