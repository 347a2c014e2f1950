package origindefense

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
)

// 文档注释：源站防御（IP/CIDR 白名单）
// 背景：服务部署在 CDN 之后时，仅允许回源网段与指定调试 IP 直接访问源站；其他请求统一返回 403。
// 约束：
// 1) 不依赖项目内部代码，提供独立包以便在其他项目直接复用；
// 2) 支持 IPv4/IPv6 CIDR；
// 3) 真实来源 IP 以 RemoteAddr 为准；如需识别上游真实 IP，请通过 RealIPHeader 指定。
type Middleware struct {
	l            *slog.Logger
	allowIPs     map[string]struct{}
	allowCIDRs   []*net.IPNet
	realIPHeader string
	mu           sync.RWMutex
}

// Options：白名单参数
type Options struct {
	AllowIPs     []string
	AllowCIDRs   []string
	AllowLocal   bool
	RealIPHeader string
}

// New 构建中间件；无法解析的条目记录日志后忽略
func New(opts Options, l *slog.Logger) *Middleware {
	m := &Middleware{l: l, allowIPs: map[string]struct{}{}, realIPHeader: strings.TrimSpace(opts.RealIPHeader)}
	for _, p := range opts.AllowIPs {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			m.allowIPs[ip.String()] = struct{}{}
		} else if strings.TrimSpace(p) != "" {
			l.Warn("origin_defense_bad_ip", "value", p)
		}
	}
	var cidrs []*net.IPNet
	for _, c := range opts.AllowCIDRs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(c); err == nil {
			cidrs = append(cidrs, n)
		} else {
			l.Warn("origin_defense_bad_cidr", "value", c, "err", err)
		}
	}
	m.allowCIDRs = mergeCIDRs(nil, cidrs)
	if opts.AllowLocal {
		m.allowIPs["127.0.0.1"] = struct{}{}
		m.allowIPs["::1"] = struct{}{}
	}
	return m
}

// AddCIDRs 追加允许网段（例如从 CDN 控制台同步的回源网段），重复条目自动去重
func (m *Middleware) AddCIDRs(cidrs []string) int {
	var parsed []*net.IPNet
	for _, c := range cidrs {
		if _, n, err := net.ParseCIDR(strings.TrimSpace(c)); err == nil {
			parsed = append(parsed, n)
		}
	}
	m.mu.Lock()
	m.allowCIDRs = mergeCIDRs(m.allowCIDRs, parsed)
	m.mu.Unlock()
	return len(parsed)
}

// Wrap：生成 http.Handler 中间件
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := m.extractIP(r)
		if ip == nil {
			m.l.Debug("origin_defense_block", "reason", "no_ip")
			write403(w)
			return
		}
		if m.Allowed(ip) {
			next.ServeHTTP(w, r)
			return
		}
		m.l.Debug("origin_defense_block", "ip", ip.String())
		write403(w)
	})
}

// Allowed：判断 IP 是否在允许集合
func (m *Middleware) Allowed(ip net.IP) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.allowIPs[ip.String()]; ok {
		return true
	}
	for _, n := range m.allowCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP：解析请求来源 IP；优先指定头的首个有效 IP
func (m *Middleware) extractIP(r *http.Request) net.IP {
	if m.realIPHeader != "" {
		if raw := r.Header.Get(m.realIPHeader); raw != "" {
			first := strings.TrimSpace(strings.Split(raw, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	// RemoteAddr 可能包含端口
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func write403(w http.ResponseWriter) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden: origin only accepts trusted networks"}` + "\n"))
}

// mergeCIDRs：合并并去重 CIDR 列表，保持首次出现的顺序
func mergeCIDRs(old, add []*net.IPNet) []*net.IPNet {
	seen := map[string]struct{}{}
	out := make([]*net.IPNet, 0, len(old)+len(add))
	for _, n := range append(append([]*net.IPNet{}, old...), add...) {
		if _, ok := seen[n.String()]; ok {
			continue
		}
		seen[n.String()] = struct{}{}
		out = append(out, n)
	}
	return out
}
