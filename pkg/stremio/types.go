// Package stremio exposes resolved Twitch streams as a Stremio addon.
package stremio

// IDPrefix marks item ids this addon answers for: twitch:<login> or twitch:v<id>.
const IDPrefix = "twitch:"

const catalogID = "twitch-channels"

// manifest returns the addon manifest. version is the build version.
func manifest(version string) map[string]any {
	return map[string]any{
		"id":          "org.stremio.stream-resolver.twitch",
		"version":     version,
		"name":        "Twitch (stream-resolver)",
		"description": "Live channels and VODs resolved into HLS qualities",
		"resources":   []string{"catalog", "stream", "meta"},
		"types":       []string{"tv"},
		"catalogs": []map[string]any{
			{
				"type": "tv",
				"id":   catalogID,
				"name": "Twitch",
				"extra": []map[string]any{
					{
						"name":       "search",
						"isRequired": true,
					},
				},
			},
		},
		"idPrefixes": []string{IDPrefix},
	}
}

// Meta represents a Stremio catalog item.
type Meta struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Stream represents a Stremio stream item.
type Stream struct {
	URL           string         `json:"url"`
	Name          string         `json:"name,omitempty"`
	Title         string         `json:"title"`
	BehaviorHints map[string]any `json:"behaviorHints,omitempty"`
}
