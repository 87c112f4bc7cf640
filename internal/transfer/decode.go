package transfer

import (
	"bytes"
	"encoding/json"
	"mime"
	"net/url"
	"strings"
	"unicode/utf8"
)

// keys a text payload may be wrapped under
var textKeys = []string{"content", "script", "data", "genesis", "config"}

// keys a download link may be wrapped under
var linkKeys = []string{"url", "link"}

// links are short, anything bigger is a payload
const maxLinkSize = 4096

var unescaper = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\r`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)

// decodeText returns either the normalized text of body or a direct link to follow
func decodeText(body []byte, contentType string) (string, string) {
	text := string(body)

	trimmed := strings.TrimSpace(text)
	if isJSON(contentType) || strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "{") {
		if unwrapped, ok := unwrapJSONText(trimmed); ok {
			text = unwrapped
		}
	}

	if link := asLink(text); link != "" {
		return "", link
	}

	return normalizeText(text), ""
}

// decodeBinary returns either the raw payload or a direct link to follow
func decodeBinary(body []byte, contentType string) ([]byte, string) {
	if mediaType(contentType) == "application/octet-stream" {
		return body, ""
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > maxLinkSize || !utf8.Valid(trimmed) {
		return body, ""
	}

	var decoded interface{}
	if err := json.Unmarshal(trimmed, &decoded); err == nil {
		switch v := decoded.(type) {
		case string:
			if link := asLink(v); link != "" {
				return nil, link
			}
		case map[string]interface{}:
			for _, key := range linkKeys {
				if s, ok := v[key].(string); ok {
					if link := asLink(s); link != "" {
						return nil, link
					}
				}
			}
		}
	}

	if link := asLink(string(trimmed)); link != "" {
		return nil, link
	}

	return body, ""
}

// normalizeText unescapes literal newlines and converts line endings to LF
func normalizeText(text string) string {
	if !strings.Contains(text, "\n") && strings.Contains(text, `\n`) {
		text = unescaper.Replace(text)
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func unwrapJSONText(trimmed string) (string, bool) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return "", false
	}

	switch v := decoded.(type) {
	case string:
		return v, true
	case map[string]interface{}:
		for _, key := range textKeys {
			if s, ok := v[key].(string); ok {
				return s, true
			}
		}
	}

	return "", false
}

func asLink(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxLinkSize || strings.ContainsAny(s, " \t\r\n") {
		return ""
	}

	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return ""
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}

	return s
}

func isJSON(contentType string) bool {
	t := mediaType(contentType)
	return t == "application/json" || strings.HasSuffix(t, "+json")
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}

	t, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return t
}
