package reorder

import "github.com/jeterchen1226/fastapi-trello/pkg/models"

// SuccessMessage is the alert text for an accepted move.
func SuccessMessage(kind models.ItemKind) string {
	if kind == models.KindLane {
		return "泳道位置已更新"
	}
	return "任務位置已更新"
}

// FailureMessage is the alert text for a rejected move.
func FailureMessage(kind models.ItemKind, reason string) string {
	if kind == models.KindLane {
		return "更新泳道位置失敗：" + reason
	}
	return "更新任務位置失敗：" + reason
}
