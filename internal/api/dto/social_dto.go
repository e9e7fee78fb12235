package dto

type ProfileDTO struct {
	UserID         string `json:"userId"`
	Username       string `json:"username,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
	FollowerCount  int    `json:"followerCount"`
	FollowingCount int    `json:"followingCount"`
}
