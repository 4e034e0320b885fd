package chat

import "time"

// EnrichedURL is the scraped metadata for a URL.
type EnrichedURL struct {
	Type        string
	Title       string
	TitleLink   string
	Text        string
	ImageURL    string
	ThumbURL    string
	AssetURL    string
	AuthorName  string
	OGScrapeURL string
	Duration    time.Duration
}

// FileUploadConfig restricts what may be uploaded.
type FileUploadConfig struct {
	AllowedFileExtensions []string
	BlockedFileExtensions []string
	AllowedMimeTypes      []string
	BlockedMimeTypes      []string
	SizeLimit             int64
}

type AppSettings struct {
	FileUploadConfig  FileUploadConfig
	ImageUploadConfig FileUploadConfig
}
