package printer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/pkg/exchange"
)

type formattedBody struct {
	Text    string
	Notices []string
}

// formatBody prepares a request body for display: JSON is indented, form
// bodies are listed as key/value pairs and long bodies are cut at the
// configured preview size.
func formatBody(ex *exchange.Exchange, cfg *config.OutputConfig) formattedBody {
	body := ex.Body
	if len(body) == 0 {
		return formattedBody{}
	}

	var res formattedBody
	mediaType, _, _ := mime.ParseMediaType(ex.ContentType)
	switch {
	case cfg.PrettyJSON && looksLikeJSON(mediaType, body):
		var buf bytes.Buffer
		if err := json.Indent(&buf, bytes.TrimSpace(body), "", "  "); err == nil {
			res.Text = buf.String()
		}
	case mediaType == "application/x-www-form-urlencoded":
		res.Text = formatForm(body)
	}
	if res.Text == "" {
		res.Text = string(body)
	}

	if limit := cfg.MaxPreviewBytes; limit > 0 && len(res.Text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(res.Text[cut]) {
			cut--
		}
		res.Text = res.Text[:cut]
		res.Notices = append(res.Notices, fmt.Sprintf("[Body truncated: showing %s of %s]",
			humanize.Bytes(uint64(cut)), humanize.Bytes(uint64(len(body)))))
	}
	return res
}

func looksLikeJSON(mediaType string, body []byte) bool {
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		return json.Valid(bytes.TrimSpace(body))
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return false
	}
	return json.Valid(trimmed)
}

func formatForm(body []byte) string {
	values, err := url.ParseQuery(string(body))
	if err != nil || len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, v := range values[key] {
			fmt.Fprintf(&b, "%s = %s\n", key, v)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
