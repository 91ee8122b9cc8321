package validator

import (
	"net"
	"strings"
)

// NormalizeIP 规范化 IP 地址，移除 IPv6 zone（fe80::1%eth0 -> fe80::1）
func NormalizeIP(ip string) string {
	if idx := strings.IndexByte(ip, '%'); idx != -1 {
		return ip[:idx]
	}
	return ip
}

// ClientKey 返回用于限流的客户端标识；非法地址统一归入 unknown
func ClientKey(ip string) string {
	normalized := NormalizeIP(strings.TrimSpace(ip))
	parsed := net.ParseIP(normalized)
	if parsed == nil {
		return "unknown"
	}
	return parsed.String()
}
