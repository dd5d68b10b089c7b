package format

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/bdobrica/turbobot/internal/turbobot/catalog"
	"github.com/bdobrica/turbobot/internal/turbobot/remote"
)

func newFormatter() *Formatter { return New(catalog.Default()) }

func TestTimestamp(t *testing.T) {
	tests := []struct {
		in, layout, want string
	}{
		{"2024-03-05T07:08:09.123Z", DateTime, "2024/03/05 07:08:09"},
		{"2024-03-05T07:08:09Z", DateTime, "2024/03/05 07:08:09"},
		{"2024-12-31T23:59:00.5Z", ShortDateTime, "12/31 23:59"},
		{"yesterday", DateTime, "yesterday"},
		{"", DateTime, ""},
	}
	for _, tt := range tests {
		if got := Timestamp(tt.in, tt.layout); got != tt.want {
			t.Errorf("Timestamp(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBlackRoomProbability(t *testing.T) {
	if got := BlackRoomProbability(0); got != 0 {
		t.Errorf("rate 0 = %v", got)
	}
	if got := BlackRoomProbability(100); got != 1 {
		t.Errorf("rate 100 = %v", got)
	}
	want := 1 - math.Pow(0.95, 10)
	if got := BlackRoomProbability(5); math.Abs(got-want) > 1e-12 {
		t.Errorf("rate 5 = %v, want %v", got, want)
	}
}

func TestMalformedBody(t *testing.T) {
	f := newFormatter()
	bad := []byte("<html>gateway</html>")
	checks := map[string]error{}
	_, checks["tickets"] = f.Tickets(bad)
	_, checks["arcade"] = f.Arcade(bad)
	_, checks["settings"] = f.Settings(bad)
	_, _, checks["server"] = ServerRequests(bad)
	_, checks["names"] = NameList(bad, 1, FriendsPage)
	_, checks["requests"] = FriendRequests(bad)
	_, checks["records"] = Records(bad, 1)
	_, checks["user"] = User(bad)
	_, checks["status"] = NetworkStatus(bad, "x")
	_, checks["granted"] = GrantedPermissions(bad)
	for name, err := range checks {
		if !errors.Is(err, remote.ErrMalformedResponse) {
			t.Errorf("%s: err = %v, want ErrMalformedResponse", name, err)
		}
	}
}

func TestTickets(t *testing.T) {
	f := newFormatter()

	got, err := f.Tickets([]byte(`{
		"turboTicket": {"isEnable": true, "ticketId": 3},
		"maimaiTickets": [
			{"ticketId": 11005, "stock": 2},
			{"ticketId": 4, "stock": 0},
			{"ticketId": 30001, "stock": 1}
		]}`))
	if err != nil {
		t.Fatal(err)
	}
	want := "已启用功能票锁定，当前锁定功能票为：付费3倍票\n\n账号内功能票库存：\n免费5倍票：2张\n特殊2倍票：1张"
	if got != want {
		t.Errorf("Tickets =\n%s\nwant\n%s", got, want)
	}

	got, err = f.Tickets([]byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if got != "未启用功能票锁定" {
		t.Errorf("empty Tickets = %q", got)
	}
}

func TestServerRequests(t *testing.T) {
	got, ok, err := ServerRequests([]byte(`{
		"requestsCount": 1000, "exceptionRequestsCount": 50,
		"zlibSkippedRequestsCount": 3, "retryRequestsCount": 7,
		"panicRequestsCount": 1, "exceptionRequestsRate": 5}`))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	for _, want := range []string{
		"一小时内总请求数：1000\n",
		"异常请求占比：5.00%\n",
		"失败请求数：1\n",
		"10pc至少有一次小黑屋的预估概率：40.13%",
		"仅供参考。",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}

	if _, ok, err := ServerRequests([]byte(`{}`)); ok || err != nil {
		t.Errorf("empty object: ok=%v err=%v", ok, err)
	}
}

func TestNameList(t *testing.T) {
	body := []byte(`{"content":[{"turboName":"alice"},{"turboName":"bob"},{}],"totalElements":23,"totalPages":3}`)
	got, err := NameList(body, 2, FriendsPage)
	if err != nil {
		t.Fatal(err)
	}
	want := "好友列表：\nalice\nbob\n未知\n\n共 23 位好友，当前 2/3 页。\n可以在命令后添加页数查看对应页数的好友。"
	if got != want {
		t.Errorf("NameList =\n%q\nwant\n%q", got, want)
	}

	got, _ = NameList([]byte(`{"content":[{"turboName":"x"}],"totalElements":1,"totalPages":1}`), 1, RivalsPage)
	if got != "对手列表：\nx\n\n共 1 位对手，当前 1/1 页。" {
		t.Errorf("single page = %q", got)
	}

	got, _ = NameList([]byte(`{"content":[]}`), 1, RivalsPage)
	if got != RivalsPage.Empty {
		t.Errorf("empty = %q", got)
	}
}

func TestFriendRequests(t *testing.T) {
	got, err := FriendRequests([]byte(`[
		{"turboName":"alice","requestTime":"2024-01-02T03:04:05.000Z"},
		{"requestTime":"soon"}]`))
	if err != nil {
		t.Fatal(err)
	}
	want := "好友请求列表：\nalice - 请求时间：2024/01/02 03:04:05\n未知用户 - 请求时间：soon"
	if got != want {
		t.Errorf("FriendRequests = %q", got)
	}

	got, _ = FriendRequests([]byte(`[]`))
	if got != "当前没有待处理的好友请求。" {
		t.Errorf("empty = %q", got)
	}
	if _, err := FriendRequests([]byte(`{"a":1}`)); !errors.Is(err, remote.ErrMalformedResponse) {
		t.Errorf("object body err = %v", err)
	}
}

func TestArcade(t *testing.T) {
	f := newFormatter()
	got, err := f.Arcade([]byte(`{
		"arcadeInfo": {
			"arcadeName": "黑龙江哈尔滨牡丹江万达店大玩家",
			"arcadeRequested": 200, "arcadeCachedRequest": 150,
			"arcadeFixedRequest": 4, "arcadeCachedHitRate": 75
		},
		"thirtyMinutesPlayer": 2, "thirtyMinutesPlayCount": 5,
		"oneHourPlayer": 3, "oneHourPlayCount": 9,
		"twoHoursPlayer": 4, "twoHoursPlayCount": 12,
		"playerList": [
			{"maimaiName":"p1"},{"maimaiName":"p2"},{"maimaiName":"p3"},
			{"maimaiName":"p4"},{"maimaiName":"p5"},{},{"maimaiName":"p7"}
		]}`))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"牡丹江-万达大玩家 舞萌状态\n\n",
		"30 分钟内有 2 名玩家，共 5 pc\n",
		"2 小时内有 4 名玩家，共 12 pc\n\n",
		"最近游玩的 6 名玩家：\np1\np2\np3\np4\np5\n未知玩家\n\n",
		"在 200 次网络请求中，缓存击中 150 次，修复 4 次错误，缓存击中率 75.00%，缓外错误率 2.00%",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
	if strings.Contains(got, "p7") {
		t.Error("player list should stop at six entries")
	}

	got, _ = f.Arcade([]byte(`{}`))
	if !strings.HasPrefix(got, "未知机厅\n") || !strings.Contains(got, "最近游玩的 6 名玩家：无") {
		t.Errorf("empty arcade =\n%s", got)
	}
	if !strings.Contains(got, "缓外错误率 0.00%") {
		t.Errorf("zero requests should give a zero rate:\n%s", got)
	}
}

func TestNetworkStatus(t *testing.T) {
	got, err := NetworkStatus([]byte(`{"networkStatus":"良好","lastUpdate":"2024-05-06T10:11:12.000Z","requestCount":10,"errorCount":1,"errorRate":10}`), "万达")
	if err != nil {
		t.Fatal(err)
	}
	want := "机厅：万达\n网络状态：良好\n最后更新：2024/05/06 10:11:12\n请求数：10\n错误数：1\n错误率：10.00%"
	if got != want {
		t.Errorf("NetworkStatus = %q", got)
	}
}

func TestUser(t *testing.T) {
	got, err := User([]byte(`{"turboName":"neo","userId":42,"createTime":"2023-01-01T00:00:00.000Z","permission":"USER"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := "用户信息\nTurbo名称：neo\n用户ID：42\n创建时间：2023/01/01 00:00:00\n最后登录：\n权限等级：USER"
	if got != want {
		t.Errorf("User = %q", got)
	}
}

func TestRecords(t *testing.T) {
	got, err := Records([]byte(`{"content":[
		{"playTime":"2024-02-03T04:05:06.000Z","songName":"Oshama","difficulty":"MASTER","score":100.5},
		{}],"totalElements":2,"totalPages":1}`), 1)
	if err != nil {
		t.Fatal(err)
	}
	want := "历史记录：\n02/03 04:05 | Oshama | MASTER | 100.5\n | 未知歌曲 | 未知 | 0\n\n共 2 条记录，当前 1/1 页"
	if got != want {
		t.Errorf("Records = %q", got)
	}

	got, _ = Records([]byte(`{"content":[]}`), 1)
	if got != "暂无历史记录。" {
		t.Errorf("empty = %q", got)
	}
}

func TestSettings(t *testing.T) {
	f := newFormatter()
	got, err := f.Settings([]byte(`{"showRating":true,"allowSearch":false,"theme":"dark"}`))
	if err != nil {
		t.Fatal(err)
	}
	want := "用户设置：\n显示 Rating：开启\n允许好友查找：关闭\ntheme：dark"
	if got != want {
		t.Errorf("Settings = %q", got)
	}
}

func TestPermission(t *testing.T) {
	f := newFormatter()
	if got := f.PermissionLevel([]byte(" \"ADMIN\"\n")); got != "用户权限级别：管理员" {
		t.Errorf("PermissionLevel = %q", got)
	}
	if got := f.PermissionLevel([]byte("GOD")); got != "用户权限级别：GOD" {
		t.Errorf("unknown level = %q", got)
	}

	got, err := GrantedPermissions([]byte(`[
		{"permissionDescription":"查询 &amp; 修改","isGranted":true},
		{"permissionDescription":"管理","isGranted":false},
		{"isGranted":true}]`))
	if err != nil {
		t.Fatal(err)
	}
	if got != "已授予的详细权限：\n查询 & 修改\n未知权限" {
		t.Errorf("GrantedPermissions = %q", got)
	}

	got, _ = GrantedPermissions([]byte(`[{"permissionDescription":"x","isGranted":false}]`))
	if got != "未授予任何详细权限。" {
		t.Errorf("none granted = %q", got)
	}
	got, _ = GrantedPermissions([]byte(`[]`))
	if got != "无法获取详细权限信息。" {
		t.Errorf("empty = %q", got)
	}
}
