package domain

import "time"

// CallRecording is a listener-submitted podcast call. The audio object lives
// in S3 under Object; only metadata is kept here. Transcoding happens
// elsewhere — this record never changes once uploaded.
type CallRecording struct {
	CallID      string    `json:"id" dynamodbav:"call_id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Title       string    `json:"title" dynamodbav:"title"`
	Description string    `json:"description" dynamodbav:"description"`
	Object      string    `json:"-" dynamodbav:"object"`
	Size        int64     `json:"size" dynamodbav:"size"`
	ContentType string    `json:"content_type" dynamodbav:"content_type"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
}
