package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/bdobrica/turbobot/common/redact"
	"github.com/bdobrica/turbobot/internal/turbobot/credentials"
	"github.com/bdobrica/turbobot/internal/turbobot/format"
	"github.com/bdobrica/turbobot/internal/turbobot/observability"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

const (
	alreadyBoundMessage = "您已经绑定过一个bot_token，无需重复绑定。"
	bindSuccessMessage  = "绑定成功！"
)

// HandleBind exchanges the caller's bot token for a service key.
func (h *Handlers) HandleBind(ctx context.Context, cmd *Command) (string, error) {
	log := observability.WithTrace(ctx)
	token := cmd.Arg

	if h.recallBind {
		if err := cmd.Transport.Recall(ctx, cmd.Message); err != nil {
			log.Debug("bind: recall failed", "user", cmd.Message.UserID, "err", err)
		}
	}

	if token == "" {
		return "绑定命令后需要包含botToken。", invalid("missing bot token")
	}
	userID := cmd.Message.UserID
	if h.creds.IsBound(userID) {
		return alreadyBoundMessage, credentials.ErrAlreadyBound
	}

	o := h.remote.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   "/bot/bind",
		Body:   map[string]string{"botToken": token, "botName": h.botName},
	})
	switch {
	case o.Kind == remote.KindTransportFailure:
		return fmt.Sprintf("绑定过程中出现错误：%v", redactErr(o.Cause, token)), o.Err()
	case !o.OK():
		return fmt.Sprintf("绑定失败，HTTP响应状态码为%d，响应：%s", o.Status, o.Excerpt(100)), o.Err()
	}

	serviceKey := gjson.GetBytes(o.Body, "botKey").String()
	if !gjson.ValidBytes(o.Body) || serviceKey == "" {
		return remote.RenderMalformed("绑定", o), remote.ErrMalformedResponse
	}

	if err := h.creds.Bind(userID, token, serviceKey); err != nil {
		// The remote side issued a key we cannot keep; give it back.
		h.releaseKey(ctx, serviceKey)
		if errors.Is(err, credentials.ErrAlreadyBound) {
			return alreadyBoundMessage, err
		}
		log.Error("bind: persist failed", "user", userID, "err", err)
		return fmt.Sprintf("绑定过程中出现错误：%v", err), err
	}
	log.Info("bind: user bound", "user", userID)
	return bindSuccessMessage, nil
}

// releaseKey unbinds a service key that lost a concurrent bind race.
func (h *Handlers) releaseKey(ctx context.Context, serviceKey string) {
	o := h.remote.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   "/bot/unbind",
		Body:   map[string]string{"botKey": serviceKey},
	})
	if !o.OK() {
		observability.WithTrace(ctx).Warn("bind: failed to release orphaned key",
			"outcome", o.Kind.String(), "status", o.Status)
	}
}

func redactErr(err error, secrets ...string) string {
	if err == nil {
		return ""
	}
	return redact.String(err.Error(), secrets...)
}

// HandleUnbind releases the caller's service key and forgets the binding.
func (h *Handlers) HandleUnbind(ctx context.Context, cmd *Command) (string, error) {
	userID := cmd.Message.UserID
	key, ok := h.creds.Key(userID)
	if !ok {
		return "您还未绑定bot，无法解绑！", credentials.ErrNotBound
	}

	o := h.remote.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   "/bot/unbind",
		Body:   map[string]string{"botKey": key},
	})
	switch {
	case o.Kind == remote.KindTransportFailure:
		return fmt.Sprintf("解绑过程中出现错误：%v", redactErr(o.Cause, key)), o.Err()
	case !o.OK():
		return fmt.Sprintf("解绑失败，HTTP响应状态码为%d。", o.Status), o.Err()
	}

	if err := h.creds.Unbind(userID); err != nil && !errors.Is(err, credentials.ErrNotBound) {
		return fmt.Sprintf("解绑过程中出现错误：%v", err), err
	}
	return "解绑成功！", nil
}

// HandleSetName sets the caller's maimai display name.
func (h *Handlers) HandleSetName(ctx context.Context, cmd *Command) (string, error) {
	if cmd.Arg == "" {
		return "修改名称命令后需要包含新的名称。", invalid("missing name")
	}
	return h.invoke(ctx, cmd,
		post("修改名称", "/web/setMaimaiName", map[string]string{"maimaiName": cmd.Arg}),
		fixed("名称修改成功！"))
}

// HandleResetName restores the default display name.
func (h *Handlers) HandleResetName(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, post("重置名称", "/web/resetMaimaiName", nil), fixed("名称重置成功！"))
}

// HandleShowName shows the current display name. The endpoint answers in
// plain text.
func (h *Handlers) HandleShowName(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取ID", "/web/showMaimaiName", nil), func(o remote.Outcome) (string, error) {
		return "您当前的ID为：" + strings.TrimSpace(string(o.Body)), nil
	})
}

// HandleSetTicket locks a function ticket.
func (h *Handlers) HandleSetTicket(ctx context.Context, cmd *Command) (string, error) {
	const usage = "设置票的命令后需要跟一个数字作为ticketId。"
	if !isDigits(cmd.Arg) {
		return usage, invalid("ticket id must be numeric")
	}
	id, err := strconv.Atoi(cmd.Arg)
	if err != nil {
		return usage, invalid("ticket id out of range")
	}
	return h.invoke(ctx, cmd, post("设置票", "/web/setTickets", map[string]int{"ticketId": id}),
		fixed("用户功能票成功锁定为："+h.format.Catalog().Ticket(id)))
}

// HandleResetTicket releases the locked ticket.
func (h *Handlers) HandleResetTicket(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, post("取消票", "/web/resetTickets", nil), fixed("用户功能票取消锁定成功！"))
}

// HandleShowTicket shows the locked ticket and the ticket inventory.
func (h *Handlers) HandleShowTicket(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取功能票信息", "/web/currentTickets", nil), func(o remote.Outcome) (string, error) {
		return h.format.Tickets(o.Body)
	})
}

// HandleShowPermission shows the permission level followed by the granted
// detailed permissions. A failure of the second call is appended to the
// level instead of replacing it.
func (h *Handlers) HandleShowPermission(ctx context.Context, cmd *Command) (string, error) {
	key, ok := h.creds.Key(cmd.Message.UserID)
	if !ok {
		return NotBoundMessage, credentials.ErrNotBound
	}

	const action = "获取权限信息"
	o := h.remote.Do(ctx, remote.Request{Method: http.MethodGet, Path: "/permission/showPermission", Key: key})
	if !o.OK() {
		return remote.Render(action, o), o.Err()
	}
	level := h.format.PermissionLevel(o.Body)

	const detailAction = "获取详细Turbo权限"
	o = h.remote.Do(ctx, remote.Request{Method: http.MethodGet, Path: "/web/showTurboPermission", Key: key})
	if !o.OK() {
		return level + "\n\n" + remote.Render(detailAction, o), o.Err()
	}
	detail, err := format.GrantedPermissions(o.Body)
	if err != nil {
		return level + "\n\n" + remote.RenderMalformed(detailAction, o), err
	}
	return level + "\n\n" + detail, nil
}

// HandleShowUser shows the caller's account profile.
func (h *Handlers) HandleShowUser(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取用户信息", "/web/user", nil), func(o remote.Outcome) (string, error) {
		return format.User(o.Body)
	})
}

// HandleShowSettings lists the caller's user settings.
func (h *Handlers) HandleShowSettings(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取用户设置", "/web/showUserSettings", nil), func(o remote.Outcome) (string, error) {
		return h.format.Settings(o.Body)
	})
}

var (
	truthy = []string{"true", "开启", "是", "on", "1"}
	falsy  = []string{"false", "关闭", "否", "off", "0"}
)

// settingValue turns switch words into booleans and leaves anything else as
// the literal string.
func settingValue(v string) any {
	switch lower := strings.ToLower(v); {
	case slices.Contains(truthy, lower):
		return true
	case slices.Contains(falsy, lower):
		return false
	default:
		return v
	}
}

// sjsonKey escapes s so sjson treats it as one literal object key.
func sjsonKey(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', ':':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// settingsBody builds the {key: value} body of setUserSettings.
func settingsBody(key string, value any) (json.RawMessage, error) {
	body, err := sjson.SetBytes([]byte(`{}`), sjsonKey(key), value)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// HandleSetSettings changes one user setting: "<key> <value>".
func (h *Handlers) HandleSetSettings(ctx context.Context, cmd *Command) (string, error) {
	args := cmd.Args()
	if len(args) < 2 {
		return "请提供设置名和值，格式：/setSettings 设置名 值", invalid("need a setting name and a value")
	}
	body, err := settingsBody(args[0], settingValue(args[1]))
	if err != nil {
		return "请提供设置名和值，格式：/setSettings 设置名 值", invalid(err.Error())
	}
	return h.invoke(ctx, cmd, post("修改设置", "/web/setUserSettings", body), fixed("设置修改成功！"))
}

var (
	allowWords = []string{"true", "开启", "是", "on", "1", "允许"}
	denyWords  = []string{"false", "关闭", "否", "off", "0", "禁止"}
)

// HandleSetSearchPolicy toggles whether others can find the caller.
func (h *Handlers) HandleSetSearchPolicy(ctx context.Context, cmd *Command) (string, error) {
	policy := strings.ToLower(cmd.Arg)
	if policy == "" {
		return "请提供好友查找策略：开启 或 关闭", invalid("missing policy")
	}

	var allow bool
	switch {
	case slices.Contains(allowWords, policy):
		allow = true
	case slices.Contains(denyWords, policy):
		allow = false
	default:
		return "无效的策略值，请使用：开启 或 关闭", invalid("unknown policy " + policy)
	}

	status := "关闭"
	if allow {
		status = "开启"
	}
	return h.invoke(ctx, cmd,
		post("设置好友查找策略", "/web/setFriendSearchPolicy", map[string]bool{"allowSearch": allow}),
		fixed("好友查找策略已设置为："+status))
}

// HandleSetAvatar opens an upload session; the image arrives in a later
// message.
func (h *Handlers) HandleSetAvatar(ctx context.Context, cmd *Command) (string, error) {
	return h.sessions.Start(ctx, cmd.Transport, cmd.Message)
}

// HandleResetAvatar restores the default avatar.
func (h *Handlers) HandleResetAvatar(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, post("重置头像", "/web/resetAvatar", nil), fixed("头像重置成功！"))
}
