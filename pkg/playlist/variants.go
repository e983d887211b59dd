package playlist

import (
	"bytes"

	"github.com/grafov/m3u8"

	"stream-resolver-go/pkg/types"
)

// Variant is the structured view of one EXT-X-STREAM-INF entry.
type Variant struct {
	URI        string
	Bandwidth  uint32
	Resolution string
	FrameRate  float64
	Codecs     string
	Video      string
}

// DecodeVariants decodes body as a master playlist. It returns nil when the
// body is not a master playlist or cannot be decoded.
func DecodeVariants(body []byte) (variants []Variant) {
	defer func() {
		if recover() != nil {
			variants = nil
		}
	}()

	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), false)
	if err != nil || listType != m3u8.MASTER {
		return nil
	}
	master, ok := p.(*m3u8.MasterPlaylist)
	if !ok {
		return nil
	}

	for _, v := range master.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		variants = append(variants, Variant{
			URI:        v.URI,
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
			FrameRate:  v.FrameRate,
			Codecs:     v.Codecs,
			Video:      v.Video,
		})
	}
	return variants
}

// enrichFromDecoder fills metadata the scanner left empty. It never adds or
// removes entries.
func enrichFromDecoder(qualities *types.QualityMap, body []byte) {
	variants := DecodeVariants(body)
	if len(variants) == 0 {
		return
	}
	byURI := make(map[string]Variant, len(variants))
	for _, v := range variants {
		byURI[v.URI] = v
	}

	for _, e := range qualities.Entries() {
		if e.Key == types.AutoKey {
			continue
		}
		v, ok := byURI[e.Quality.URL]
		if !ok {
			continue
		}
		q := e.Quality
		if q.Bandwidth == 0 {
			q.Bandwidth = v.Bandwidth
		}
		if q.Resolution == "" {
			q.Resolution = v.Resolution
		}
		if q.FrameRate == 0 {
			q.FrameRate = v.FrameRate
		}
		if q.Codecs == "" {
			q.Codecs = v.Codecs
		}
		if q != e.Quality {
			qualities.Set(e.Key, q)
		}
	}
}
