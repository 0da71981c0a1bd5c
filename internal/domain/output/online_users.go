package output

// OnlineUserInfo содержит информацию об онлайн пользователе
type OnlineUserInfo struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}
