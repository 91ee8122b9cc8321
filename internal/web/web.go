// Package web 内嵌页面模板与静态资源
package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Templates 解析全部页面模板，模板名为文件名（index.html、admin.html ...）
func Templates() (*template.Template, error) {
	return template.New("").Funcs(FuncMap()).ParseFS(templateFS, "templates/*.html")
}

// FuncMap 模板辅助函数
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"bytes": func(n int64) string {
			if n < 0 {
				n = 0
			}
			return humanize.IBytes(uint64(n))
		},
		"ubytes": humanize.IBytes,
		"iso": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},
		"ago": func(t time.Time) string {
			return humanize.Time(t)
		},
	}
}

// StaticFS /static 下的资源
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
