package provider

// DNSRecord DNS记录
type DNSRecord struct {
	RecordID string // 记录ID
	Domain   string // 主域名
	ZoneID   string // 区域ID (Cloudflare、华为云)
	RR       string // 主机记录 (子域名)
	Type     string // 记录类型
	Value    string // 记录值
	Line     string // 解析线路 (腾讯云修改记录时必填)
	TTL      int    // TTL
}

// Action EnsureRecord 的执行结果
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)
