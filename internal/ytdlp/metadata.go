package ytdlp

// Metadata contains extracted information about a remote video
type Metadata struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	WebpageURL  string  `json:"webpage_url"`
	Extractor   string  `json:"extractor"`
	Description string  `json:"description"`
}

// probeOutput represents the JSON output from yt-dlp --dump-json
type probeOutput struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Thumbnails  []thumb `json:"thumbnails"`
	WebpageURL  string  `json:"webpage_url"`
	Extractor   string  `json:"extractor"`
	Description string  `json:"description"`
	Ext         string  `json:"ext"`

	// Set for playlist/channel pages, which --dump-json reports with
	// _type "playlist" even under --no-playlist when there is no video.
	Type string `json:"_type"`
}

type thumb struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (o *probeOutput) toMetadata() *Metadata {
	m := &Metadata{
		ID:          o.ID,
		Title:       o.Title,
		Uploader:    o.Uploader,
		Duration:    o.Duration,
		Thumbnail:   o.Thumbnail,
		WebpageURL:  o.WebpageURL,
		Extractor:   o.Extractor,
		Description: o.Description,
	}

	if m.Uploader == "" {
		m.Uploader = o.Channel
	}
	if m.Thumbnail == "" && len(o.Thumbnails) > 0 {
		m.Thumbnail = o.Thumbnails[len(o.Thumbnails)-1].URL
	}

	return m
}
