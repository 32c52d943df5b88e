package render

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

// SetLogo embeds data as the company logo of every document. An empty slice
// removes it.
func (r *Renderer) SetLogo(data []byte) error {
	if len(data) == 0 {
		r.logo = ""
		return nil
	}
	contentType := http.DetectContentType(data)
	if strings.HasPrefix(contentType, "text/xml") || strings.HasPrefix(contentType, "text/plain") {
		if strings.Contains(string(data[:min(len(data), 512)]), "<svg") {
			contentType = "image/svg+xml"
		}
	}
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("logo is %s, not an image", contentType)
	}
	r.logo = template.URL("data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data))
	return nil
}
