package chat

import "strings"

type AttachmentType string

const (
	AttachmentTypeImage AttachmentType = "image"
	AttachmentTypeFile  AttachmentType = "file"
	AttachmentTypeVideo AttachmentType = "video"
	AttachmentTypeAudio AttachmentType = "audio"
)

// Attachment is the wire shape of a message attachment.
type Attachment struct {
	Type        AttachmentType
	Title       string
	TitleLink   string
	Text        string
	ImageURL    string
	ThumbURL    string
	AssetURL    string
	OGScrapeURL string
	AuthorName  string
	MimeType    string
	FileSize    int64
	Fallback    string
	Custom      map[string]any
}

type UploadState string

const (
	UploadStatePending   UploadState = "pending"
	UploadStateUploading UploadState = "uploading"
	UploadStateFinished  UploadState = "finished"
	UploadStateFailed    UploadState = "failed"
	UploadStateBlocked   UploadState = "blocked"
)

// PreviewResource is a temporary local handle for rendering a file before it is uploaded.
type PreviewResource interface {
	URI() string
	Release()
}

// File is a local file selected for upload.
type File struct {
	Name     string
	MimeType string
	Size     int64
	Data     []byte
	Preview  PreviewResource
}

// IsImage reports whether f should be uploaded as an image.
func (f File) IsImage() bool {
	return strings.HasPrefix(f.MimeType, "image/")
}

// UploadPermissionCheck is the result of asking whether a file may be uploaded.
type UploadPermissionCheck struct {
	UploadBlocked bool
	Reason        string
}

// UploadResponse is what the upload transport returns for a finished upload.
type UploadResponse struct {
	File     string
	ThumbURL string
}

type LocalMetadata struct {
	ID                    string
	File                  *File
	UploadState           UploadState
	UploadPermissionCheck *UploadPermissionCheck
	Preview               PreviewResource
	Progress              float64
}

// LocalAttachment carries local-only metadata next to the wire attachment.
type LocalAttachment struct {
	Attachment
	LocalMetadata LocalMetadata
}

// ToAttachment strips local metadata.
func (a LocalAttachment) ToAttachment() Attachment {
	return a.Attachment
}

// IsUploadSuccessful reports whether the attachment can be sent.
func (a LocalAttachment) IsUploadSuccessful() bool {
	return a.LocalMetadata.UploadState == UploadStateFinished || a.LocalMetadata.UploadState == ""
}

// IsScrapedLink reports whether an attachment comes from URL enrichment.
func (a Attachment) IsScrapedLink() bool {
	return a.OGScrapeURL != ""
}
