// Package diskstat 读取本地文件系统容量。
package diskstat

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// Usage 文件系统容量（字节）
type Usage struct {
	Total uint64
	Used  uint64
	Free  uint64 // 非特权用户可用空间
}

// Of 返回 path 所在文件系统的容量信息
func Of(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}

	bsize := uint64(stat.Bsize)
	total := stat.Blocks * bsize
	free := stat.Bavail * bsize
	return Usage{Total: total, Used: total - stat.Bfree*bsize, Free: free}, nil
}

// String 以人类可读格式输出，例如 "12 GB used, 3.4 GB free"
func (u Usage) String() string {
	return fmt.Sprintf("%s used, %s free", humanize.Bytes(u.Used), humanize.Bytes(u.Free))
}
