// Package format renders successful account service payloads as chat text.
//
// Every function reads the raw 200 body with gjson and falls back to a
// default for each missing field. Only a body that is not JSON at all is an
// error (remote.ErrMalformedResponse).
package format

import (
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/bdobrica/turbobot/internal/turbobot/catalog"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

const (
	// DateTime is the layout for full timestamps.
	DateTime = "2006/01/02 15:04:05"
	// ShortDateTime is the layout used in play records.
	ShortDateTime = "01/02 15:04"
)

// RecentPlayerLimit caps the recent player list of an arcade.
const RecentPlayerLimit = 6

// Formatter renders payloads whose output depends on the lookup tables.
type Formatter struct {
	cat *catalog.Catalog
}

// New returns a Formatter over cat.
func New(cat *catalog.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

// Catalog returns the lookup tables in use.
func (f *Formatter) Catalog() *catalog.Catalog { return f.cat }

func parse(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, remote.ErrMalformedResponse
	}
	return gjson.ParseBytes(body), nil
}

func str(r gjson.Result, def string) string {
	if !r.Exists() || r.Type == gjson.Null {
		return def
	}
	return r.String()
}

// Timestamp reformats an ISO-8601 timestamp with layout. Values that do not
// parse are returned unchanged.
func Timestamp(s, layout string) string {
	if s == "" {
		return s
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.Format(layout)
}

// BlackRoomProbability estimates the chance of at least one failed session
// in ten plays given the hourly exception rate in percent.
func BlackRoomProbability(exceptionRate float64) float64 {
	return 1 - math.Pow(1-exceptionRate/100, 10)
}

// Tickets renders /web/currentTickets.
func (f *Formatter) Tickets(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	turbo := doc.Get("turboTicket")
	if turbo.Get("isEnable").Bool() {
		fmt.Fprintf(&b, "已启用功能票锁定，当前锁定功能票为：%s\n", f.cat.Ticket(int(turbo.Get("ticketId").Int())))
	} else {
		b.WriteString("未启用功能票锁定\n")
	}

	var stock []string
	doc.Get("maimaiTickets").ForEach(func(_, t gjson.Result) bool {
		if n := t.Get("stock").Int(); n > 0 {
			stock = append(stock, fmt.Sprintf("%s：%d张", f.cat.Ticket(int(t.Get("ticketId").Int())), n))
		}
		return true
	})
	if len(stock) > 0 {
		b.WriteString("\n账号内功能票库存：\n")
		b.WriteString(strings.Join(stock, "\n"))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ServerRequests renders /web/showServerRequests. An empty object yields
// ok=false so the caller can report that no data was returned.
func ServerRequests(body []byte) (text string, ok bool, err error) {
	doc, err := parse(body)
	if err != nil {
		return "", false, err
	}
	if !doc.IsObject() || len(doc.Map()) == 0 {
		return "", false, nil
	}

	rate := doc.Get("exceptionRequestsRate").Float()
	var b strings.Builder
	fmt.Fprintf(&b, "一小时内总请求数：%d\n", doc.Get("requestsCount").Int())
	fmt.Fprintf(&b, "异常请求数：%d\n", doc.Get("exceptionRequestsCount").Int())
	fmt.Fprintf(&b, "异常请求占比：%.2f%%\n", rate)
	fmt.Fprintf(&b, "Z-LIB 跳过数量：%d\n", doc.Get("zlibSkippedRequestsCount").Int())
	fmt.Fprintf(&b, "重试请求数：%d\n", doc.Get("retryRequestsCount").Int())
	fmt.Fprintf(&b, "失败请求数：%d\n\n", doc.Get("panicRequestsCount").Int())
	fmt.Fprintf(&b, "10pc至少有一次小黑屋的预估概率：%.2f%%\n\n", BlackRoomProbability(rate)*100)
	b.WriteString("响应数据的「Z-LIB」压缩跳过率与请求重试次数可以反应当前网络情况。\n")
	b.WriteString("压缩跳过率超过「3%」时，可能会出现网络不稳定现象。\n")
	b.WriteString("请求重试率和失败率较高时，网络或服务器可能存在问题。\n")
	b.WriteString("小黑屋率为使用一小时异常率估算的数据，仅供参考。")
	return b.String(), true, nil
}

// Page describes one page of a paged listing.
type Page struct {
	// Noun names the listed items, e.g. "好友".
	Noun string
	// Counter is the measure word used in the total, e.g. "位" or "条".
	Counter string
	// Empty is the reply when the page has no content.
	Empty string
}

var (
	FriendsPage = Page{Noun: "好友", Counter: "位", Empty: "您目前还没有添加好友。"}
	RivalsPage  = Page{Noun: "对手", Counter: "位", Empty: "您目前还没有添加对手。"}
)

// NameList renders a paged list of turboName entries (friends, rivals).
func NameList(body []byte, page int, p Page) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	content := doc.Get("content").Array()
	if len(content) == 0 {
		return p.Empty, nil
	}

	names := make([]string, 0, len(content))
	for _, item := range content {
		names = append(names, str(item.Get("turboName"), "未知"))
	}
	totalPages := doc.Get("totalPages").Int()

	var b strings.Builder
	fmt.Fprintf(&b, "%s列表：\n%s\n\n", p.Noun, strings.Join(names, "\n"))
	fmt.Fprintf(&b, "共 %d %s%s，当前 %d/%d 页。", doc.Get("totalElements").Int(), p.Counter, p.Noun, page, totalPages)
	if totalPages > 1 {
		fmt.Fprintf(&b, "\n可以在命令后添加页数查看对应页数的%s。", p.Noun)
	}
	return b.String(), nil
}

// FriendRequests renders /web/showFriendRequests.
func FriendRequests(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	if doc.Type == gjson.Null {
		return "当前没有待处理的好友请求。", nil
	}
	if !doc.IsArray() {
		return "", remote.ErrMalformedResponse
	}
	reqs := doc.Array()
	if len(reqs) == 0 {
		return "当前没有待处理的好友请求。", nil
	}

	var b strings.Builder
	b.WriteString("好友请求列表：")
	for _, r := range reqs {
		fmt.Fprintf(&b, "\n%s - 请求时间：%s",
			str(r.Get("turboName"), "未知用户"),
			Timestamp(r.Get("requestTime").String(), DateTime))
	}
	return b.String(), nil
}

// Arcade renders /web/arcadeInfoDetail.
func (f *Formatter) Arcade(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	info := doc.Get("arcadeInfo")

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", f.cat.ArcadeName(str(info.Get("arcadeName"), "未知机厅")))
	fmt.Fprintf(&b, "30 分钟内有 %d 名玩家，共 %d pc\n", doc.Get("thirtyMinutesPlayer").Int(), doc.Get("thirtyMinutesPlayCount").Int())
	fmt.Fprintf(&b, "1 小时内有 %d 名玩家，共 %d pc\n", doc.Get("oneHourPlayer").Int(), doc.Get("oneHourPlayCount").Int())
	fmt.Fprintf(&b, "2 小时内有 %d 名玩家，共 %d pc\n\n", doc.Get("twoHoursPlayer").Int(), doc.Get("twoHoursPlayCount").Int())

	var players []string
	for _, p := range doc.Get("playerList").Array() {
		if len(players) == RecentPlayerLimit {
			break
		}
		players = append(players, str(p.Get("maimaiName"), "未知玩家"))
	}
	if len(players) > 0 {
		fmt.Fprintf(&b, "最近游玩的 %d 名玩家：\n%s\n\n", RecentPlayerLimit, strings.Join(players, "\n"))
	} else {
		fmt.Fprintf(&b, "最近游玩的 %d 名玩家：无\n\n", RecentPlayerLimit)
	}

	requested := info.Get("arcadeRequested").Int()
	fixed := info.Get("arcadeFixedRequest").Int()
	hitRate := math.Max(info.Get("arcadeCachedHitRate").Float(), 0)
	var fixRate float64
	if requested > 0 {
		fixRate = float64(fixed) / float64(requested) * 100
	}
	fmt.Fprintf(&b, "在 %d 次网络请求中，缓存击中 %d 次，修复 %d 次错误，缓存击中率 %.2f%%，缓外错误率 %.2f%%",
		requested, info.Get("arcadeCachedRequest").Int(), fixed, hitRate, fixRate)
	return b.String(), nil
}

// NetworkStatus renders /web/showNetworkStatus. queried is shown when the
// payload does not name the arcade.
func NetworkStatus(body []byte, queried string) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "机厅：%s\n", str(doc.Get("arcadeInfo.arcadeName"), queried))
	fmt.Fprintf(&b, "网络状态：%s\n", str(doc.Get("networkStatus"), "未知"))
	fmt.Fprintf(&b, "最后更新：%s\n", Timestamp(doc.Get("lastUpdate").String(), DateTime))
	fmt.Fprintf(&b, "请求数：%d\n", doc.Get("requestCount").Int())
	fmt.Fprintf(&b, "错误数：%d\n", doc.Get("errorCount").Int())
	fmt.Fprintf(&b, "错误率：%.2f%%", doc.Get("errorRate").Float())
	return b.String(), nil
}

// User renders /web/user.
func User(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("用户信息\n")
	fmt.Fprintf(&b, "Turbo名称：%s\n", str(doc.Get("turboName"), "未知"))
	fmt.Fprintf(&b, "用户ID：%s\n", str(doc.Get("userId"), "未知"))
	fmt.Fprintf(&b, "创建时间：%s\n", Timestamp(doc.Get("createTime").String(), DateTime))
	fmt.Fprintf(&b, "最后登录：%s\n", Timestamp(doc.Get("lastLoginTime").String(), DateTime))
	fmt.Fprintf(&b, "权限等级：%s", str(doc.Get("permission"), "未知"))
	return b.String(), nil
}

// Records renders one page of /web/records.
func Records(body []byte, page int) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	content := doc.Get("content").Array()
	if len(content) == 0 {
		return "暂无历史记录。", nil
	}

	var b strings.Builder
	b.WriteString("历史记录：\n")
	for _, r := range content {
		fmt.Fprintf(&b, "%s | %s | %s | %s\n",
			Timestamp(r.Get("playTime").String(), ShortDateTime),
			str(r.Get("songName"), "未知歌曲"),
			str(r.Get("difficulty"), "未知"),
			str(r.Get("score"), "0"))
	}
	totalPages := doc.Get("totalPages").Int()
	fmt.Fprintf(&b, "\n共 %d 条记录，当前 %d/%d 页", doc.Get("totalElements").Int(), page, totalPages)
	if totalPages > 1 {
		b.WriteString("\n可以在命令后添加页数查看对应页数的记录。")
	}
	return b.String(), nil
}

// Settings renders /web/showUserSettings in payload order.
func (f *Formatter) Settings(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("用户设置：")
	doc.ForEach(func(k, v gjson.Result) bool {
		value := v.String()
		switch v.Type {
		case gjson.True:
			value = "开启"
		case gjson.False:
			value = "关闭"
		}
		fmt.Fprintf(&b, "\n%s：%s", f.cat.Setting(k.String()), value)
		return true
	})
	return b.String(), nil
}

// PermissionLevel renders the plain-text body of /permission/showPermission.
func (f *Formatter) PermissionLevel(body []byte) string {
	level := strings.ReplaceAll(strings.TrimSpace(string(body)), `"`, "")
	return fmt.Sprintf("用户权限级别：%s", f.cat.Permission(level))
}

// GrantedPermissions renders /web/showTurboPermission, listing the granted
// entries with their HTML entities decoded.
func GrantedPermissions(body []byte) (string, error) {
	doc, err := parse(body)
	if err != nil {
		return "", err
	}
	if doc.Type != gjson.Null && !doc.IsArray() {
		return "", remote.ErrMalformedResponse
	}
	perms := doc.Array()
	if len(perms) == 0 {
		return "无法获取详细权限信息。", nil
	}

	var granted []string
	for _, p := range perms {
		if p.Get("isGranted").Bool() {
			granted = append(granted, html.UnescapeString(str(p.Get("permissionDescription"), "未知权限")))
		}
	}
	if len(granted) == 0 {
		return "未授予任何详细权限。", nil
	}
	return "已授予的详细权限：\n" + strings.Join(granted, "\n"), nil
}
