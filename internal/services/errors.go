package services

import "errors"

// 业务错误集合，handler 层用 errors.Is 统一映射到 HTTP 状态码。
var (
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("email or password incorrect")
	ErrEmailTaken         = errors.New("email already registered")
	ErrGroupExists        = errors.New("group already exists")
	ErrGroupNotFound      = errors.New("group not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotMember          = errors.New("not a member of this group")
	ErrNotAdmin           = errors.New("only admins can manage group members")
	ErrAlreadyMember      = errors.New("user is already a member of this group")
	ErrMembershipNotFound = errors.New("user is not a member of this group")
)
