package commands

import (
	"context"
	"fmt"

	"github.com/bdobrica/turbobot/internal/turbobot/format"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

// nameAction is a POST that takes one {turboName} argument.
type nameAction struct {
	action  string
	path    string
	missing string
	// done is a format string receiving the name.
	done string
}

var (
	addFriend    = nameAction{"添加好友", "/web/addFriend", "请提供要添加好友的名称。", "好友请求已发送给：%s"}
	acceptFriend = nameAction{"接受好友请求", "/web/acceptFriend", "请提供要接受好友请求的名称。", "您已接受 %s 的好友请求。"}
	denyFriend   = nameAction{"拒绝好友请求", "/web/denyFriend", "请提供要拒绝的好友请求的名称。", "您已拒绝 %s 的好友请求。"}
	removeFriend = nameAction{"删除好友", "/web/removeFriend", "请提供要删除的好友名称。", "您已成功删除好友：%s"}
	addRival     = nameAction{"添加对手", "/web/addRival", "请提供要添加的对手名称。", "已成功添加对手：%s"}
	removeRival  = nameAction{"删除对手", "/web/removeRival", "请提供要删除的对手名称。", "已成功删除对手：%s"}
)

func (h *Handlers) byName(a nameAction) Handler {
	return func(ctx context.Context, cmd *Command) (string, error) {
		if cmd.Arg == "" {
			return a.missing, invalid("missing turbo name")
		}
		return h.invoke(ctx, cmd,
			post(a.action, a.path, map[string]string{"turboName": cmd.Arg}),
			fixed(fmt.Sprintf(a.done, cmd.Arg)))
	}
}

// HandleAddFriend sends a friend request.
func (h *Handlers) HandleAddFriend(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(addFriend)(ctx, cmd)
}

// HandleAcceptFriend accepts a pending friend request.
func (h *Handlers) HandleAcceptFriend(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(acceptFriend)(ctx, cmd)
}

// HandleDenyFriend declines a pending friend request.
func (h *Handlers) HandleDenyFriend(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(denyFriend)(ctx, cmd)
}

// HandleRemoveFriend removes a friend.
func (h *Handlers) HandleRemoveFriend(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(removeFriend)(ctx, cmd)
}

// HandleAddRival adds a rival.
func (h *Handlers) HandleAddRival(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(addRival)(ctx, cmd)
}

// HandleRemoveRival removes a rival.
func (h *Handlers) HandleRemoveRival(ctx context.Context, cmd *Command) (string, error) {
	return h.byName(removeRival)(ctx, cmd)
}

// HandleShowFriends lists one page of friends.
func (h *Handlers) HandleShowFriends(ctx context.Context, cmd *Command) (string, error) {
	page := pageArg(cmd.Arg)
	return h.invoke(ctx, cmd, get("获取好友列表", "/web/showFriends", pageQuery(page)), func(o remote.Outcome) (string, error) {
		return format.NameList(o.Body, page, format.FriendsPage)
	})
}

// HandleShowRivals lists one page of rivals.
func (h *Handlers) HandleShowRivals(ctx context.Context, cmd *Command) (string, error) {
	page := pageArg(cmd.Arg)
	return h.invoke(ctx, cmd, get("获取对手列表", "/web/showRivals", pageQuery(page)), func(o remote.Outcome) (string, error) {
		return format.NameList(o.Body, page, format.RivalsPage)
	})
}

// HandleShowFriendRequests lists pending friend requests.
func (h *Handlers) HandleShowFriendRequests(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取好友请求", "/web/showFriendRequests", nil), func(o remote.Outcome) (string, error) {
		return format.FriendRequests(o.Body)
	})
}
