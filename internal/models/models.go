package models

import "time"

// User represents an account (and channel) on the platform. PasswordHash and
// RefreshToken never serialise, so any User written to a client is sanitised.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullname"`
	Avatar       string    `json:"avatar"`
	CoverImage   string    `json:"coverImage"`
	PasswordHash string    `json:"-"`
	RefreshToken string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sanitized returns a copy without credential material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}

// Video is an uploaded video owned by a user.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner"`
	VideoFile   string    `json:"videoFile"`
	Thumbnail   string    `json:"thumbnail"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"isPublished"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// VideoUpdate carries the optional fields of an edit; nil leaves a field as is.
type VideoUpdate struct {
	Title       *string
	Description *string
	Thumbnail   *string
}

// VideoQuery filters and pages the video listing.
type VideoQuery struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDesc bool
	OwnerID  string
	ViewerID string
}

// VideoPage is one page of a video listing.
type VideoPage struct {
	Videos []Video `json:"videos"`
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Total  int64   `json:"total"`
}

// ChannelProfile is the whitelisted projection shown on a channel page.
type ChannelProfile struct {
	ID                        string `json:"id"`
	FullName                  string `json:"fullname"`
	Username                  string `json:"username"`
	SubscribersCount          int64  `json:"subscribersCount"`
	ChannelsSubscribedToCount int64  `json:"channelsSubscribedToCount"`
	IsSubscribed              bool   `json:"isSubscribed"`
	Avatar                    string `json:"avatar"`
	CoverImage                string `json:"coverImage"`
	Email                     string `json:"email"`
}

// UserSummary is the reduced user projection embedded in other views.
type UserSummary struct {
	ID       string `json:"id"`
	FullName string `json:"fullname"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// HistoryEntry is a watched video with its owner resolved.
type HistoryEntry struct {
	Video
	Owner     UserSummary `json:"owner"`
	WatchedAt time.Time   `json:"watchedAt"`
}

// TokenPair groups the credentials issued on login and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
