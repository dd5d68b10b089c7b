package commands

import (
	"context"
	"errors"
	"net/url"

	"github.com/bdobrica/turbobot/internal/turbobot/format"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

const missingArcadeMessage = "请提供要查询的机厅名称。"

var errNoNetworkData = errors.New("network statistics empty")

// HandleNetwork shows the service's request statistics for the last hour.
func (h *Handlers) HandleNetwork(ctx context.Context, cmd *Command) (string, error) {
	return h.invoke(ctx, cmd, get("获取网络数据", "/web/showServerRequests", nil), func(o remote.Outcome) (string, error) {
		text, ok, err := format.ServerRequests(o.Body)
		if err != nil {
			return "", err
		}
		if !ok {
			return "获取网络数据失败。", errNoNetworkData
		}
		return text, nil
	})
}

// HandleArcadeInfo shows player counts and cache statistics for an arcade.
func (h *Handlers) HandleArcadeInfo(ctx context.Context, cmd *Command) (string, error) {
	if cmd.Arg == "" {
		return missingArcadeMessage, invalid("missing arcade name")
	}
	return h.invoke(ctx, cmd, get("获取机厅信息", "/web/arcadeInfoDetail", url.Values{"arcadeName": {cmd.Arg}}),
		func(o remote.Outcome) (string, error) {
			return h.format.Arcade(o.Body)
		})
}

// HandleNetworkStatus shows the network health of an arcade.
func (h *Handlers) HandleNetworkStatus(ctx context.Context, cmd *Command) (string, error) {
	if cmd.Arg == "" {
		return missingArcadeMessage, invalid("missing arcade name")
	}
	return h.invoke(ctx, cmd, get("获取机厅状态", "/web/showNetworkStatus", url.Values{"arcadeName": {cmd.Arg}}),
		func(o remote.Outcome) (string, error) {
			return format.NetworkStatus(o.Body, cmd.Arg)
		})
}

// HandleRecords lists one page of play records.
func (h *Handlers) HandleRecords(ctx context.Context, cmd *Command) (string, error) {
	page := pageArg(cmd.Arg)
	return h.invoke(ctx, cmd, get("获取历史记录", "/web/records", pageQuery(page)), func(o remote.Outcome) (string, error) {
		return format.Records(o.Body, page)
	})
}
