package types

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAutoQualityMap(t *testing.T) {
	qm := NewAutoQualityMap("https://cdn.example.com/master.m3u8")

	require.Equal(t, 1, qm.Len())
	first, ok := qm.First()
	require.True(t, ok)
	assert.Equal(t, AutoKey, first.Key)
	assert.Equal(t, Quality{Label: "Auto", URL: "https://cdn.example.com/master.m3u8"}, first.Quality)
}

func TestQualityMap_PreservesInsertionOrder(t *testing.T) {
	qm := NewAutoQualityMap("m")
	qm.Set("chunked", Quality{Label: "1080p60 (source)", URL: "a"})
	qm.Set("720p60", Quality{Label: "720p60", URL: "b"})
	qm.Set("audio_only", Quality{Label: "audio_only", URL: "c"})

	want := []string{"auto", "chunked", "720p60", "audio_only"}
	if diff := cmp.Diff(want, qm.Keys()); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
}

func TestQualityMap_DuplicateKeyOverwritesInPlace(t *testing.T) {
	qm := NewAutoQualityMap("m")
	qm.Set("720p", Quality{Label: "first", URL: "a"})
	qm.Set("480p", Quality{Label: "480p", URL: "b"})
	qm.Set("720p", Quality{Label: "second", URL: "c"})

	assert.Equal(t, []string{"auto", "720p", "480p"}, qm.Keys())
	got, ok := qm.Get("720p")
	require.True(t, ok)
	assert.Equal(t, "second", got.Label)
	assert.Equal(t, "c", got.URL)
}

func TestQualityMap_Best(t *testing.T) {
	qm := NewAutoQualityMap("m")
	_, ok := qm.Best()
	assert.False(t, ok, "auto-only map has no best variant")

	qm.Set("chunked", Quality{Label: "source", URL: "s"})
	qm.Set("480p", Quality{Label: "480p", URL: "l"})
	best, ok := qm.Best()
	require.True(t, ok)
	assert.Equal(t, "chunked", best.Key)
}

func TestQualityMap_JSONKeepsOrder(t *testing.T) {
	qm := NewAutoQualityMap("m")
	qm.Set("zzz", Quality{Label: "z", URL: "z"})
	qm.Set("aaa", Quality{Label: "a", URL: "a"})

	data, err := json.Marshal(qm)
	require.NoError(t, err)
	assert.Equal(t, `{"auto":{"label":"Auto","url":"m"},"zzz":{"label":"z","url":"z"},"aaa":{"label":"a","url":"a"}}`, string(data))

	decoded := NewQualityMap()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, qm.Entries(), decoded.Entries())
}

func TestQualityMap_NilSafe(t *testing.T) {
	var qm *QualityMap
	assert.Equal(t, 0, qm.Len())
	assert.Empty(t, qm.Entries())
	data, err := qm.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestDeliveryStrategy_String(t *testing.T) {
	assert.Equal(t, "default", StrategyDefault.String())
	assert.Equal(t, "alternate", StrategyAlternate.String())

	data, err := json.Marshal(struct {
		S DeliveryStrategy `json:"s"`
	}{StrategyAlternate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"alternate"}`, string(data))
}
