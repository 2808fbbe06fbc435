package model

type ActivityKind string

const (
	ActivityDownload ActivityKind = "download"
	ActivityChat     ActivityKind = "chat"
)

type AnonymousSession struct {
	ID            string `json:"id"`
	TokenID       string `json:"-"`
	Ctime         int64  `json:"ctime"`
	LastActive    int64  `json:"last_active"`
	DownloadCount int64  `json:"download_count"`
	ChatCount     int64  `json:"chat_count"`
}
