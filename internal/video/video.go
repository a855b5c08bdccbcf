// Package video turns stored YouTube links into embeddable player references.
package video

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidURL = errors.New("invalid video url")

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,64}$`)

// ParseID extracts the video ID from a YouTube link: the v query parameter
// when present, otherwise the last path segment (youtu.be, /shorts, /embed)
func ParseID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	id := u.Query().Get("v")
	if id == "" {
		parts := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		id = parts[len(parts)-1]
	}
	if !idPattern.MatchString(id) {
		return "", fmt.Errorf("%w: no video id in %q", ErrInvalidURL, raw)
	}
	return id, nil
}

// Embed is a playable reference to one video
type Embed struct {
	VideoID string
	Title   string
}

// New parses rawURL into an Embed
func New(rawURL, title string) (Embed, error) {
	id, err := ParseID(rawURL)
	if err != nil {
		return Embed{}, err
	}
	return Embed{VideoID: id, Title: title}, nil
}

// PlayerOptions are the player parameters passed in the embed URL
type PlayerOptions struct {
	Autoplay bool
	Mute     bool
	Start    time.Duration
}

// EmbedURL returns the iframe source. Native controls, related videos and
// branding are always disabled; the page draws its own controls.
func (e Embed) EmbedURL(opts PlayerOptions) string {
	q := url.Values{}
	q.Set("controls", "0")
	q.Set("modestbranding", "1")
	q.Set("rel", "0")
	q.Set("enablejsapi", "1")
	if opts.Autoplay {
		q.Set("autoplay", "1")
	}
	if opts.Mute {
		q.Set("mute", "1")
	}
	if opts.Start > 0 {
		q.Set("start", strconv.Itoa(int(opts.Start.Seconds())))
	}
	return "https://www.youtube.com/embed/" + url.PathEscape(e.VideoID) + "?" + q.Encode()
}

// ThumbnailURL returns the high quality still for the video
func (e Embed) ThumbnailURL() string {
	return "https://img.youtube.com/vi/" + url.PathEscape(e.VideoID) + "/hqdefault.jpg"
}

// Seek returns current+delta clamped to [0, duration]. A zero duration
// means the length is not known yet and only the lower bound applies.
func Seek(current, delta, duration time.Duration) time.Duration {
	t := current + delta
	if t < 0 {
		return 0
	}
	if duration > 0 && t > duration {
		return duration
	}
	return t
}

// FormatTime renders a position as m:ss
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
