package notify

import "fmt"

// Fixed zh-TW texts shown by the alert surface.
const (
	TitleSuccess = "成功"
	TitleError   = "錯誤"
	TitleConfirm = "確認刪除"

	ButtonConfirm = "確定"
	ButtonCancel  = "取消"

	MsgLogout      = "登出成功。"
	MsgOperationKO = "操作失敗"
	MsgServerError = "伺服器錯誤"
)

// LoginMessage greets a returning user.
func LoginMessage(name string) string {
	return fmt.Sprintf("歡迎回來，%s。", name)
}

// RegisterMessage greets a newly registered user.
func RegisterMessage(name string) string {
	return fmt.Sprintf("註冊成功！歡迎 %s。", name)
}
