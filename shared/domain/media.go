package domain

import "sort"

// MediaItem is one file known to the media server.
type MediaItem struct {
	Id            MediaId     `json:"id"`
	Name          string      `json:"name"`
	Path          MediaPath   `json:"path"`
	Type          MediaType   `json:"type"`
	Size          int64       `json:"size"`
	LastModified  EpochMillis `json:"lastModified"`
	ThumbnailPath string      `json:"thumbnailPath,omitempty"`
	IsTemp        bool        `json:"isTemp,omitempty"`
}

// Catalog is the server-side inventory grouped by type.
// An empty catalog means "unknown", not "no files exist".
type Catalog struct {
	Videos []MediaItem `json:"videos"`
	Photos []MediaItem `json:"photos"`
	Audio  []MediaItem `json:"audio"`
}

func EmptyCatalog() Catalog {
	return Catalog{
		Videos: []MediaItem{},
		Photos: []MediaItem{},
		Audio:  []MediaItem{},
	}
}

func (c Catalog) Bucket(t MediaType) []MediaItem {
	switch t {
	case Videos:
		return c.Videos
	case Photos:
		return c.Photos
	case Audio:
		return c.Audio
	}
	return nil
}

func (c Catalog) Len() int {
	return len(c.Videos) + len(c.Photos) + len(c.Audio)
}

// FindByPath looks the exact server path up in every bucket.
func (c Catalog) FindByPath(p MediaPath) (MediaItem, bool) {
	for _, bucket := range [][]MediaItem{c.Videos, c.Photos, c.Audio} {
		for _, item := range bucket {
			if item.Path == p {
				return item, true
			}
		}
	}
	return MediaItem{}, false
}

// NewestFirst returns a copy of items ordered by LastModified, newest first.
func NewestFirst(items []MediaItem) []MediaItem {
	sorted := make([]MediaItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastModified > sorted[j].LastModified
	})
	return sorted
}

// MediaContext is the preview state attached to an outgoing command.
type MediaContext struct {
	Video *MediaItem
	Audio *MediaItem
}
