// Package video manages video catalog metadata; file bytes live in object
// storage, transcoding and playback are out of scope.
package video

import "time"

type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoURL    string    `json:"video_url"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    float64   `json:"duration"`
	Views       int64     `json:"views"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type UpdateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPublished *bool  `json:"isPublished"`
}
