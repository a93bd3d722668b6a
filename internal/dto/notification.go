package dto

// NotificationQuery pages through the caller's notifications.
type NotificationQuery struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page"`
	PageSize   int  `form:"pageSize"`
}
