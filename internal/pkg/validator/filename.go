package validator

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxFilenameLength 文件名最大字节数（常见文件系统上限）
const MaxFilenameLength = 255

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename 把客户端提供的文件名转换为可安全用于存储和展示的形式：
//   - NFKD 归一化后丢弃非 ASCII 字符
//   - 路径分隔符视为空白，空白折叠为 "_"
//   - 只保留 [A-Za-z0-9_.-]，去掉首尾的 "." 和 "_"
//   - Windows 设备名加 "_" 前缀
//
// 结果可能为空字符串，调用方必须拒绝空结果。
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r > unicode.MaxASCII:
			continue
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
	}

	name = strings.Join(strings.Fields(b.String()), "_")

	b.Reset()
	for _, r := range name {
		if isSafeFilenameRune(r) {
			b.WriteRune(r)
		}
	}
	name = strings.Trim(b.String(), "._")

	if name != "" {
		base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
		if _, ok := windowsDeviceNames[base]; ok {
			name = "_" + name
		}
	}

	return truncateFilename(name)
}

func isSafeFilenameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '_' || r == '.' || r == '-'
}

// truncateFilename 超长时截断主文件名，尽量保留扩展名
func truncateFilename(name string) string {
	if len(name) <= MaxFilenameLength {
		return name
	}
	ext := path.Ext(name)
	if len(ext) >= MaxFilenameLength/2 {
		ext = ""
	}
	return name[:MaxFilenameLength-len(ext)] + ext
}
