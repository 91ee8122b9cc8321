package response

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const flashCookie = "tempshare_flash"

const (
	CategorySuccess = "success"
	CategoryDanger  = "danger"
	CategoryInfo    = "info"
)

// Flash 一次性提示消息，在下一次页面渲染时展示
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// AddFlash 追加一条 flash，存放在短期 cookie 中
func AddFlash(c *gin.Context, category, message string) {
	if message == "" {
		return
	}
	flashes := append(readFlashes(c), Flash{Category: category, Message: message})
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, encoded, 60, "/", "", false, true)
	// 同一请求内后续读取也能看到
	c.Set(flashCookie, flashes)
}

// PopFlashes 读取并清除所有 flash
func PopFlashes(c *gin.Context) []Flash {
	flashes := readFlashes(c)
	if len(flashes) > 0 {
		c.SetCookie(flashCookie, "", -1, "/", "", false, true)
		c.Set(flashCookie, []Flash(nil))
	}
	return flashes
}

// RedirectWithFlash 设置 flash 并以 303 重定向
func RedirectWithFlash(c *gin.Context, location, category, message string) {
	AddFlash(c, category, message)
	c.Redirect(http.StatusSeeOther, location)
}

func readFlashes(c *gin.Context) []Flash {
	if v, ok := c.Get(flashCookie); ok {
		flashes, _ := v.([]Flash)
		return flashes
	}

	encoded, err := c.Cookie(flashCookie)
	if err != nil || encoded == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}
