package commands

import (
	"context"
	"fmt"
)

const overview = `指令帮助信息：

【基础功能】
1. /bind 或 /绑定 - 绑定您的Turbo账号
2. /unbind 或 /解绑 - 解绑您的Turbo账号
3. /user 或 /用户信息 - 查看个人信息
4. /showPermission 或 /权限查询 - 显示您的权限信息

【名称管理】
5. /setName 或 /设置名称 - 设置您的名称
6. /resetName 或 /重置名称 - 重置您的名称
7. /name 或 /查询名称 - 查看当前名称

【头像管理】
8. /setAvatar 或 /设置头像 - 设置头像
9. /resetAvatar 或 /重置头像 - 重置头像

【功能票】
10. /setTicket 或 /设置票 - 锁定功能票
11. /resetTicket 或 /重置票 - 重置功能票
12. /ticket 或 /查询票 - 查看功能票状态

【网络与机厅】
13. /network 或 /网络状态 - 查看当前网络状态
14. /networkStatus 或 /机厅状态 - 查询机厅网络状态
15. /info 或 /机厅 - 查询机厅信息

【历史记录】
16. /records 或 /历史记录 - 查询游玩记录

【用户设置】
17. /showSettings 或 /查看设置 - 查看用户设置
18. /setSettings 或 /修改设置 - 修改用户设置
19. /setSearchPolicy 或 /设置好友查找 - 设置好友查找策略

【好友系统】
20. /showFriends 或 /好友列表 - 查看好友列表
21. /showFriendRequests 或 /好友请求 - 查看好友请求
22. /addFriend 或 /添加好友 - 添加好友
23. /acceptFriend 或 /同意好友 - 接受好友请求
24. /denyFriend 或 /拒绝好友 - 拒绝好友请求
25. /removeFriend 或 /删除好友 - 删除好友

【对手系统】
26. /showRivals 或 /对手列表 - 查看对手列表
27. /addRival 或 /添加对手 - 添加对手
28. /removeRival 或 /删除对手 - 删除对手

在任意指令后加 help 查看该指令的详细用法，例如：/bind help`

// HandleHelp shows the command overview.
func (h *Handlers) HandleHelp(ctx context.Context, cmd *Command) (string, error) {
	return overview, nil
}

// Descriptors returns the full command table bound to h.
func (h *Handlers) Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name: "tbhelp", Aliases: []string{"帮助"},
			Usage:   "【/tbhelp 帮助】\n用法：/tbhelp\n别名：/帮助\n\n功能：列出所有指令。",
			Handler: h.HandleHelp,
		},
		{
			Name: "bind", Aliases: []string{"绑定"},
			Usage: `【/bind 绑定账号】
用法：/bind <botToken>
别名：/绑定

参数说明：
  botToken - 您的Turbo机器人令牌（必填）

功能：将您的账号与Turbo账号进行绑定，绑定后可使用所有功能。

示例：/bind abc123xyz

注意：发送的消息将自动撤回以保护您的隐私。`,
			Handler: h.HandleBind,
		},
		{
			Name: "unbind", Aliases: []string{"解绑"},
			Usage: `【/unbind 解绑账号】
用法：/unbind
别名：/解绑

功能：解除当前账号与Turbo账号的绑定关系。

注意：解绑后需要重新绑定才能使用相关功能。`,
			Handler: h.HandleUnbind,
		},
		{
			Name: "setName", Aliases: []string{"setname", "设置名称", "修改名称"},
			Usage: `【/setName 设置名称】
用法：/setName <maimaiName>
别名：/setname, /设置名称, /修改名称

参数说明：
  maimaiName - 要设置的新名称（必填）

功能：设置您在maimai中显示的名称。

示例：/setName 我的新名字`,
			Handler: h.HandleSetName,
		},
		{
			Name: "resetName", Aliases: []string{"resetname", "重置名称", "删除名称"},
			Usage: `【/resetName 重置名称】
用法：/resetName
别名：/resetname, /重置名称, /删除名称

功能：将您的maimai名称重置为默认状态。`,
			Handler: h.HandleResetName,
		},
		{
			Name: "name", Aliases: []string{"showName", "查询名称", "查看名称"},
			Usage: `【/name 查询名称】
用法：/name
别名：/showName, /查询名称, /查看名称

功能：查看您当前设置的maimai名称。`,
			Handler: h.HandleShowName,
		},
		{
			Name: "setTicket", Aliases: []string{"setticket", "设置票", "锁定票"},
			Usage: `【/setTicket 设置功能票】
用法：/setTicket <ticketId>
别名：/setticket, /设置票, /锁定票

参数说明：
  ticketId - 票ID（必填，数字）

常见票ID：
  2-6: 付费2-6倍票
  10005/10105/10205: 活动5倍票
  11001-11005: 免费票（1.5-5倍）
  30001: 特殊2倍票

功能：锁定指定的功能票，每次游玩时自动使用。

示例：/setTicket 3`,
			Handler: h.HandleSetTicket,
		},
		{
			Name: "resetTicket", Aliases: []string{"resetticket", "重置票", "取消票"},
			Usage: `【/resetTicket 重置功能票】
用法：/resetTicket
别名：/resetticket, /重置票, /取消票

功能：取消当前锁定的功能票，恢复正常游玩模式。`,
			Handler: h.HandleResetTicket,
		},
		{
			Name: "ticket", Aliases: []string{"showTicket", "查询票", "查看票"},
			Usage: `【/ticket 查询功能票】
用法：/ticket
别名：/showTicket, /查询票, /查看票

功能：查看当前锁定的功能票以及账号内的票库存。`,
			Handler: h.HandleShowTicket,
		},
		{
			Name: "network", Aliases: []string{"网络状态", "查询网络"},
			Usage: `【/network 网络状态】
用法：/network
别名：/网络状态, /查询网络, 舞萌状态, 舞萌活着吗

功能：查看当前服务器网络请求统计信息。

返回信息包括：
  - 一小时内总请求数
  - 异常请求数和占比
  - Z-LIB压缩跳过数
  - 重试/失败请求数
  - 小黑屋预估概率`,
			Handler: h.HandleNetwork,
		},
		{
			Name: "showPermission", Aliases: []string{"permission", "获取权限", "展示权限", "权限", "权限查询"},
			Usage: `【/showPermission 权限查询】
用法：/showPermission
别名：/permission, /获取权限, /展示权限, /权限, /权限查询

功能：查看您当前的权限级别和已授予的详细权限。`,
			Handler: h.HandleShowPermission,
		},
		{
			Name: "showFriends", Aliases: []string{"showfriends", "friends", "friendslist", "好友", "好友列表", "查询好友", "查看好友"},
			Usage: `【/showFriends 好友列表】
用法：/showFriends [页码]
别名：/showfriends, /friends, /friendslist, /好友, /好友列表, /查询好友, /查看好友

参数说明：
  页码 - 可选，默认为1

功能：查看您的好友列表，支持分页显示。

示例：/showFriends 2`,
			Handler: h.HandleShowFriends,
		},
		{
			Name: "showFriendRequests", Aliases: []string{"showfriendrequests", "好友请求", "好友请求列表", "查询好友请求"},
			Usage: `【/showFriendRequests 好友请求】
用法：/showFriendRequests
别名：/showfriendrequests, /好友请求, /好友请求列表, /查询好友请求

功能：查看待处理的好友请求列表。`,
			Handler: h.HandleShowFriendRequests,
		},
		{
			Name: "addFriend", Aliases: []string{"addfriend", "add", "加好友", "添加好友", "好友添加"},
			Usage: `【/addFriend 添加好友】
用法：/addFriend <turboName>
别名：/addfriend, /add, /加好友, /添加好友, /好友添加

功能：向指定用户发送好友请求。

示例：/addFriend 张三`,
			Handler: h.HandleAddFriend,
		},
		{
			Name: "acceptFriend", Aliases: []string{"acceptfriend", "accept", "同意好友", "同意好友申请", "同意好友请求", "接受好友请求"},
			Usage: `【/acceptFriend 同意好友】
用法：/acceptFriend <turboName>
别名：/acceptfriend, /accept, /同意好友, /同意好友申请, /同意好友请求, /接受好友请求

功能：接受指定用户的好友请求。

示例：/acceptFriend 李四`,
			Handler: h.HandleAcceptFriend,
		},
		{
			Name: "denyFriend", Aliases: []string{"denyfriend", "deny", "拒绝好友", "拒绝好友请求", "拒绝好友申请"},
			Usage: `【/denyFriend 拒绝好友】
用法：/denyFriend <turboName>
别名：/denyfriend, /deny, /拒绝好友, /拒绝好友请求, /拒绝好友申请

功能：拒绝指定用户的好友请求。

示例：/denyFriend 王五`,
			Handler: h.HandleDenyFriend,
		},
		{
			Name: "removeFriend", Aliases: []string{"removefriend", "remove", "删除好友", "移除好友"},
			Usage: `【/removeFriend 删除好友】
用法：/removeFriend <turboName>
别名：/removefriend, /remove, /删除好友, /移除好友

功能：删除指定的好友。

示例：/removeFriend 赵六`,
			Handler: h.HandleRemoveFriend,
		},
		{
			Name: "arcadeInfo", Aliases: []string{"arcadeinfo", "info", "arcade", "机厅", "查卡", "机厅信息"},
			Usage: `【/arcadeInfo 机厅信息】
用法：/arcadeInfo <机厅名称>
别名：/arcadeinfo, /info, /arcade, /机厅, /查卡, /机厅信息, 万几

功能：查询指定机厅的详细信息，包括玩家数、pc数、网络状态等。

示例：/arcadeInfo 万达`,
			Handler: h.HandleArcadeInfo,
		},
		{
			Name: "user", Aliases: []string{"showUser", "用户信息", "查询用户", "我的信息"},
			Usage: `【/user 用户信息】
用法：/user
别名：/showUser, /用户信息, /查询用户, /我的信息

功能：查看您的Turbo名称、用户ID、创建时间、最后登录时间和权限等级。`,
			Handler: h.HandleShowUser,
		},
		{
			Name: "networkStatus", Aliases: []string{"机厅状态", "机厅网络", "查询机厅状态"},
			Usage: `【/networkStatus 机厅网络状态】
用法：/networkStatus <机厅名称>
别名：/机厅状态, /机厅网络, /查询机厅状态

功能：查询指定机厅的网络状态。

示例：/networkStatus 万达店`,
			Handler: h.HandleNetworkStatus,
		},
		{
			Name: "records", Aliases: []string{"历史记录", "游玩记录", "查询记录"},
			Usage: `【/records 历史记录】
用法：/records [页码]
别名：/历史记录, /游玩记录, /查询记录

功能：查询您的游玩历史记录，支持分页显示。

示例：/records 2`,
			Handler: h.HandleRecords,
		},
		{
			Name: "showSettings", Aliases: []string{"settings", "查看设置", "显示设置", "用户设置"},
			Usage: `【/showSettings 查看设置】
用法：/showSettings
别名：/settings, /查看设置, /显示设置, /用户设置

功能：查看您当前的用户设置。`,
			Handler: h.HandleShowSettings,
		},
		{
			Name: "setSettings", Aliases: []string{"设置", "修改设置"},
			Usage: `【/setSettings 修改设置】
用法：/setSettings <设置名> <值>
别名：/设置, /修改设置

参数说明：
  设置名 - 要修改的设置项（必填）
  值 - 新的设置值（必填，支持: true/false/开启/关闭）

可修改的设置项：
  - allowSearch (允许好友查找)
  - showOnlineStatus (显示在线状态)
  - showPlayHistory (显示游玩历史)
  - allowFriendRequest (允许好友请求)
  - showRating (显示 Rating)
  - showAchievement (显示成就)

示例：/setSettings showRating 开启`,
			Handler: h.HandleSetSettings,
		},
		{
			Name: "setAvatar", Aliases: []string{"setavatar", "设置头像", "修改头像"},
			Usage: `【/setAvatar 设置头像】
用法：/setAvatar
别名：/setavatar, /设置头像, /修改头像

功能：设置您的头像。
使用方法：输入命令后，根据提示发送图片即可。

注意：图片将被base64编码后上传，超时时间为60秒。`,
			Handler: h.HandleSetAvatar,
		},
		{
			Name: "resetAvatar", Aliases: []string{"resetavatar", "重置头像", "删除头像"},
			Usage: `【/resetAvatar 重置头像】
用法：/resetAvatar
别名：/resetavatar, /重置头像, /删除头像

功能：将您的头像重置为默认状态。`,
			Handler: h.HandleResetAvatar,
		},
		{
			Name: "setSearchPolicy", Aliases: []string{"setsearchpolicy", "设置好友查找", "好友查找设置"},
			Usage: `【/setSearchPolicy 设置好友查找】
用法：/setSearchPolicy <策略>
别名：/setsearchpolicy, /设置好友查找, /好友查找设置

参数说明：
  策略 - 开启/关闭 或 true/false（必填）

功能：设置是否允许其他用户通过查找找到您。

示例：/setSearchPolicy 开启`,
			Handler: h.HandleSetSearchPolicy,
		},
		{
			Name: "showRivals", Aliases: []string{"showrivals", "rivals", "对手", "对手列表", "查询对手", "查看对手"},
			Usage: `【/showRivals 对手列表】
用法：/showRivals [页码]
别名：/showrivals, /rivals, /对手, /对手列表, /查询对手, /查看对手

功能：查看您的对手列表，支持分页显示。

示例：/showRivals 2`,
			Handler: h.HandleShowRivals,
		},
		{
			Name: "addRival", Aliases: []string{"addrival", "添加对手", "加对手"},
			Usage: `【/addRival 添加对手】
用法：/addRival <turboName>
别名：/addrival, /添加对手, /加对手

功能：添加指定用户为您的对手。

示例：/addRival 张三`,
			Handler: h.HandleAddRival,
		},
		{
			Name: "removeRival", Aliases: []string{"removerival", "删除对手", "移除对手"},
			Usage: `【/removeRival 删除对手】
用法：/removeRival <turboName>
别名：/removerival, /删除对手, /移除对手

功能：从对手列表中删除指定用户。

示例：/removeRival 李四`,
			Handler: h.HandleRemoveRival,
		},
	}
}

// Register adds every command and keyword shortcut to r.
func (h *Handlers) Register(r *Router) error {
	for _, d := range h.Descriptors() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	shortcuts := []struct{ text, name, arg string }{
		{"舞萌状态", "network", ""},
		{"舞萌活着吗", "network", ""},
		{"万几", "arcadeInfo", "w"},
	}
	for _, s := range shortcuts {
		if err := r.Shortcut(s.text, s.name, s.arg); err != nil {
			return fmt.Errorf("register shortcuts: %w", err)
		}
	}
	return nil
}
