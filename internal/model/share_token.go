package model

type ShareTokenState int

const (
	ShareTokenActive  ShareTokenState = 1
	ShareTokenRevoked ShareTokenState = 2
	// ShareTokenExpired is written by the sweeper once expires_at has passed.
	// Readers must still treat an active row past expires_at as expired.
	ShareTokenExpired ShareTokenState = 3
)

type ShareToken struct {
	ID           string          `json:"id"`
	Token        string          `json:"token"`
	DatasetID    string          `json:"dataset_id"`
	CreatedBy    string          `json:"created_by"`
	SharingLevel SharingLevel    `json:"sharing_level"`
	PasswordHash string          `json:"-"`
	ExpiresAt    int64           `json:"expires_at"`
	State        ShareTokenState `json:"state"`
	Ctime        int64           `json:"ctime"`
	Mtime        int64           `json:"mtime"`
}

func (t *ShareToken) HasPassword() bool {
	return t.PasswordHash != ""
}

// ExpiredAt reports whether the token is past its expiry at the given unix time.
func (t *ShareToken) ExpiredAt(now int64) bool {
	if t.State == ShareTokenExpired {
		return true
	}
	return t.ExpiresAt > 0 && now >= t.ExpiresAt
}
