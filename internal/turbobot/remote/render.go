package remote

import "fmt"

// UnauthorizedMessage is the fixed reply for a 401 from any command.
const UnauthorizedMessage = "请求的Token缺失或不合法，请检查权限。"

// BannedMessage is the fixed reply for a 410 from any command.
const BannedMessage = "该用户已被封禁，请联系管理员。"

// Render turns a non-success outcome into the one reply the user sees.
// action is the verb phrase of the command, e.g. "设置票" or "获取好友列表".
// Callers format successes themselves; passing one here yields a generic
// confirmation.
func Render(action string, o Outcome) string {
	switch o.Kind {
	case KindSuccess:
		return action + "成功！"
	case KindClientRejected:
		return fmt.Sprintf("%s失败，请求数据不合法，请检查输入。", action)
	case KindUnauthorized:
		return UnauthorizedMessage
	case KindForbidden:
		return fmt.Sprintf("权限不足，无法%s。", action)
	case KindAccountBanned:
		return BannedMessage
	case KindServerError:
		return o.Message
	case KindUnknownStatus:
		return fmt.Sprintf("%s失败，HTTP响应状态码为 %d。", action, o.Status)
	default:
		return fmt.Sprintf("%s过程中出现错误：%v", action, o.Cause)
	}
}

// RenderMalformed is the reply for a 200 whose payload could not be used.
func RenderMalformed(action string, o Outcome) string {
	return fmt.Sprintf("%s失败，服务器返回数据异常：%s", action, o.Excerpt(100))
}
