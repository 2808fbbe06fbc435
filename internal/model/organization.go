package model

type Organization struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ctime int64  `json:"ctime"`
	Mtime int64  `json:"mtime"`
}
