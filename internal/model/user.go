package model

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	OrgID        string `json:"org_id"`
	IsOrgAdmin   bool   `json:"is_org_admin"`
	IsSuperuser  bool   `json:"is_superuser"`
	Ctime        int64  `json:"ctime"`
	Mtime        int64  `json:"mtime"`
}
