package service

import "github.com/xxxsen/dshare/internal/model"

// AuthenticatedUser is the identity resolved by the authentication layer.
type AuthenticatedUser struct {
	ID          string
	Email       string
	OrgID       string
	IsOrgAdmin  bool
	IsSuperuser bool
}

func NewAuthenticatedUser(user *model.User) *AuthenticatedUser {
	return &AuthenticatedUser{
		ID:          user.ID,
		Email:       user.Email,
		OrgID:       user.OrgID,
		IsOrgAdmin:  user.IsOrgAdmin,
		IsSuperuser: user.IsSuperuser,
	}
}

// Requester is everything an access decision may look at. User is nil for
// anonymous callers. ShareToken, Password and SessionID are only consulted
// for public datasets. An empty Password means none was supplied.
type Requester struct {
	User       *AuthenticatedUser
	ShareToken string
	Password   string
	SessionID  string
}

func AnonymousRequester() Requester {
	return Requester{}
}

func UserRequester(user *AuthenticatedUser) Requester {
	return Requester{User: user}
}

func (r Requester) Authenticated() bool {
	return r.User != nil
}

func (r Requester) owns(ds *model.Dataset) bool {
	return r.User != nil && r.User.ID == ds.OwnerID
}
