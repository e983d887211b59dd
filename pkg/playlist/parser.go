// Package playlist fetches multivariant manifests and turns them into quality maps.
package playlist

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"stream-resolver-go/pkg/types"
)

// lookahead is how many lines after a media tag may hold its URL.
const lookahead = 2

// Parse scans body for rendition groups and returns a map seeded with the
// auto entry for manifestURL. A line carrying GROUP-ID and NAME attributes
// followed within two lines by an http(s) URL yields one entry keyed by
// GROUP-ID. Later duplicates overwrite earlier ones in place.
func Parse(manifestURL string, body []byte) *types.QualityMap {
	qualities := types.NewAutoQualityMap(manifestURL)
	lines := splitLines(body)

	for i := 0; i < len(lines); i++ {
		groupID, name, ok := mediaGroup(lines[i])
		if !ok {
			continue
		}

		urlLine := -1
		for j := i + 1; j <= i+lookahead && j < len(lines); j++ {
			if isHTTPURL(lines[j]) {
				urlLine = j
				break
			}
		}
		if urlLine < 0 {
			continue
		}

		q := types.Quality{Label: name, URL: firstField(lines[urlLine])}
		for k := i + 1; k < urlLine; k++ {
			applyStreamInf(&q, lines[k])
		}
		qualities.Set(groupID, q)
		i = urlLine
	}

	enrichFromDecoder(qualities, body)
	return qualities
}

func splitLines(body []byte) []string {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines
}

func mediaGroup(line string) (groupID, name string, ok bool) {
	if !strings.Contains(line, `GROUP-ID="`) || !strings.Contains(line, `NAME="`) {
		return "", "", false
	}
	attrs := parseAttributes(tagValue(line))
	groupID, name = attrs["GROUP-ID"], attrs["NAME"]
	if groupID == "" || name == "" {
		return "", "", false
	}
	return groupID, name, true
}

func isHTTPURL(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://")
}

func firstField(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func applyStreamInf(q *types.Quality, line string) {
	if !strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
		return
	}
	attrs := parseAttributes(tagValue(line))
	if v, err := strconv.ParseUint(attrs["BANDWIDTH"], 10, 32); err == nil {
		q.Bandwidth = uint32(v)
	}
	if v := attrs["RESOLUTION"]; v != "" {
		q.Resolution = v
	}
	if v, err := strconv.ParseFloat(attrs["FRAME-RATE"], 64); err == nil {
		q.FrameRate = v
	}
	if v := attrs["CODECS"]; v != "" {
		q.Codecs = v
	}
}

// tagValue returns the attribute list following "#TAG:".
func tagValue(line string) string {
	if strings.HasPrefix(line, "#") {
		if i := strings.IndexByte(line, ':'); i >= 0 {
			return line[i+1:]
		}
	}
	return line
}

// parseAttributes splits an HLS attribute list. Quoted values may contain commas.
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	for len(list) > 0 {
		eq := strings.IndexByte(list, '=')
		if eq < 0 {
			break
		}
		key := strings.TrimSpace(list[:eq])
		list = list[eq+1:]

		var value string
		if strings.HasPrefix(list, `"`) {
			end := strings.IndexByte(list[1:], '"')
			if end < 0 {
				value, list = list[1:], ""
			} else {
				value, list = list[1:end+1], list[end+2:]
			}
			if c := strings.IndexByte(list, ','); c >= 0 {
				list = list[c+1:]
			} else {
				list = ""
			}
		} else if c := strings.IndexByte(list, ','); c >= 0 {
			value, list = list[:c], list[c+1:]
		} else {
			value, list = list, ""
		}

		if key != "" {
			attrs[key] = strings.TrimSpace(value)
		}
	}
	return attrs
}
