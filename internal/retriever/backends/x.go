package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// X retrieves posts and profiles from X (Twitter) through API v2. Requires
// "Basic" API access — the free tier does not include reading tweets.
type X struct {
	bearer  string
	apiBase string
}

// NewX builds the X backend from the engine configuration.
func NewX() *X {
	return &X{
		bearer:  retriever.Cfg.XBearerToken,
		apiBase: "https://api.twitter.com/2",
	}
}

func (x *X) Name() string { return "x" }

// Match claims twitter.com, x.com and t.co URLs.
func (x *X) Match(rawURL string) bool {
	return matchDomain(rawURL, "twitter.com", "x.com", "t.co")
}

// Fetch retrieves a tweet (status URL) or a user profile (bare handle URL).
// Search URLs are not supported by the API and are skipped.
func (x *X) Fetch(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	if x.bearer == "" {
		slog.Debug("x backend not configured, skipping")
		return nil, nil
	}
	if strings.Contains(rawURL, "/search?") {
		slog.Debug("x search URLs are unsupported", slog.String("url", rawURL))
		return nil, nil
	}

	retriever.Metrics.XRequests.Add(1)
	client, release := ensureClient(client)
	defer release()

	if id := extractTweetID(rawURL); id != "" {
		return x.fetchTweet(ctx, id, client)
	}
	if username := extractUsername(rawURL); username != "" {
		return x.fetchUser(ctx, username, client)
	}
	return nil, fmt.Errorf("unrecognized X URL: %s", rawURL)
}

var (
	tweetIDRe  = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	usernameRe = regexp.MustCompile(`^https?://(?:www\.)?(?:twitter\.com|x\.com)/(@?\w{1,15})(?:[/?].*)?$`)
)

func extractTweetID(rawURL string) string {
	if m := tweetIDRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// extractUsername pulls the handle out of a profile URL. Reserved path
// segments that are not usernames map to "".
func extractUsername(rawURL string) string {
	m := usernameRe.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	name := strings.TrimPrefix(m[1], "@")
	switch strings.ToLower(name) {
	case "i", "home", "search", "explore", "notifications", "messages", "settings", "hashtag", "intent", "share":
		return ""
	}
	return name
}

// API v2 response shapes — only the fields this backend reads.

type xTweet struct {
	ID             string         `json:"id"`
	Text           string         `json:"text"`
	CreatedAt      time.Time      `json:"created_at"`
	ConversationID string         `json:"conversation_id"`
	PublicMetrics  map[string]int `json:"public_metrics"`
}

type xUser struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Username        string         `json:"username"`
	CreatedAt       string         `json:"created_at"`
	Description     string         `json:"description"`
	Location        string         `json:"location"`
	ProfileImageURL string         `json:"profile_image_url"`
	Protected       bool           `json:"protected"`
	Verified        bool           `json:"verified"`
	VerifiedType    string         `json:"verified_type"`
	PublicMetrics   map[string]int `json:"public_metrics"`
}

type xMedia struct {
	MediaKey string     `json:"media_key"`
	Type     string     `json:"type"`
	URL      string     `json:"url"`
	Variants []xVariant `json:"variants"`
}

type xVariant struct {
	BitRate     int    `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

type xTweetResponse struct {
	Data     *xTweet `json:"data"`
	Includes struct {
		Users []xUser  `json:"users"`
		Media []xMedia `json:"media"`
	} `json:"includes"`
}

func (x *X) fetchTweet(ctx context.Context, tweetID string, client *http.Client) (*media.Sequence, error) {
	params := url.Values{
		"expansions":   {"author_id,attachments.media_keys"},
		"media.fields": {"url,variants,type"},
		"tweet.fields": {"created_at,public_metrics,conversation_id"},
		"user.fields":  {"created_at,description,location,profile_image_url,protected,public_metrics,url,verified,verified_type"},
	}

	var resp xTweetResponse
	if err := x.apiGet(ctx, client, "/tweets/"+tweetID, params, &resp); err != nil {
		return nil, fmt.Errorf("tweet %s: %w", tweetID, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("tweet %s: no data in response", tweetID)
	}
	tweet := resp.Data

	var author xUser
	if len(resp.Includes.Users) > 0 {
		author = resp.Includes.Users[0]
	}

	// Shortlink noise is stripped: the media it points at is attached below.
	text := strings.TrimSpace(tcoLinkRe.ReplaceAllString(tweet.Text, ""))

	items := []media.Item{media.Text(fmt.Sprintf(
		"**Post on X**\nAuthor: %s, @%s\nPosted on: %s\nLikes: %d - Retweets: %d - Replies: %d - Views: %d\n%s",
		author.Name, author.Username,
		tweet.CreatedAt.Format("January 02, 2006 at 15:04"),
		tweet.PublicMetrics["like_count"], tweet.PublicMetrics["retweet_count"],
		tweet.PublicMetrics["reply_count"], tweet.PublicMetrics["impression_count"],
		text,
	))}

	for _, m := range resp.Includes.Media {
		switch m.Type {
		case "photo":
			if img := media.DownloadImage(ctx, m.URL, client); img != nil {
				retriever.Metrics.MediaDownloads.Add(1)
				items = append(items, media.FromImage(img))
			}
		case "video", "animated_gif":
			variantURL := bestVideoVariant(m.Variants)
			if variantURL == "" {
				continue
			}
			if vid := media.DownloadVideo(ctx, variantURL, client); vid != nil {
				retriever.Metrics.MediaDownloads.Add(1)
				items = append(items, media.FromVideo(vid))
			}
		default:
			slog.Warn("unsupported tweet media type", slog.String("type", m.Type))
		}
	}

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{
		"author_id":             author.ID,
		"author_name":           author.Name,
		"author_username":       author.Username,
		"author_verified":       author.Verified,
		"author_verified_type":  author.VerifiedType,
		"author_protected":      author.Protected,
		"author_public_metrics": author.PublicMetrics,
		"tweet_text":            text,
		"post_public_metrics":   tweet.PublicMetrics,
	}

	// Comments are only searchable for ~7 days; 6 is a safe buffer.
	if time.Since(tweet.CreatedAt) < 6*24*time.Hour {
		if comments := x.fetchComments(ctx, tweet.ConversationID); len(comments) > 0 {
			seq.Metadata["comments"] = comments
		}
	}
	return seq, nil
}

var tcoLinkRe = regexp.MustCompile(`https?://t\.co/\S+`)

// bestVideoVariant picks the highest-bitrate MP4 variant URL.
func bestVideoVariant(variants []xVariant) string {
	best := ""
	bestRate := -1
	for _, v := range variants {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		if v.BitRate > bestRate {
			best = v.URL
			bestRate = v.BitRate
		}
	}
	if best == "" && len(variants) > 0 {
		best = variants[len(variants)-1].URL
	}
	return best
}

// fetchComments pulls the conversation's recent replies through the
// timeline-search client. Best-effort enrichment: failures only log.
func (x *X) fetchComments(ctx context.Context, conversationID string) []string {
	tw := retriever.Cfg.TwitterClient
	if tw == nil || conversationID == "" {
		return nil
	}
	tweets, err := tw.SearchTimeline(ctx, "conversation_id:"+conversationID, 20)
	if err != nil {
		slog.Debug("x comments fetch failed", slog.Any("error", err))
		return nil
	}
	comments := make([]string, 0, len(tweets))
	for _, t := range tweets {
		if s := strings.TrimSpace(t.Text); s != "" {
			comments = append(comments, s)
		}
	}
	return comments
}

type xUserResponse struct {
	Data *xUser `json:"data"`
}

func (x *X) fetchUser(ctx context.Context, username string, client *http.Client) (*media.Sequence, error) {
	params := url.Values{
		"user.fields": {"created_at,description,location,profile_image_url,protected,public_metrics,url,verified,verified_type"},
	}

	var resp xUserResponse
	if err := x.apiGet(ctx, client, "/users/by/username/"+username, params, &resp); err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	if resp.Data == nil {
		return nil, fmt.Errorf("user %s: no data in response", username)
	}
	user := resp.Data

	items := []media.Item{media.Text(fmt.Sprintf(
		"**Profile on X**\nUser: %s (@%s)\nCreated on: %s\nLocation: %s\nVerified: %t (%s)\nFollowers: %d - Following: %d - Posts: %d\n\n%s",
		user.Name, user.Username, user.CreatedAt, user.Location,
		user.Verified, user.VerifiedType,
		user.PublicMetrics["followers_count"], user.PublicMetrics["following_count"], user.PublicMetrics["tweet_count"],
		user.Description,
	))}

	if user.ProfileImageURL != "" {
		// The default thumbnail is tiny; the original size drops the suffix.
		full := strings.Replace(user.ProfileImageURL, "_normal.", ".", 1)
		if img := media.DownloadImage(ctx, full, client); img != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			items = append(items, media.FromImage(img))
		}
	}

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{
		"user_id":        user.ID,
		"username":       user.Username,
		"public_metrics": user.PublicMetrics,
	}
	return seq, nil
}

// apiGet performs an authenticated GET against API v2 and decodes the JSON
// response into out. Bearer tokens cannot be refreshed, so a 401 surfaces
// as a plain failure.
func (x *X) apiGet(ctx context.Context, client *http.Client, path string, params url.Values, out any) error {
	endpoint := x.apiBase + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	resp, err := retriever.RetryHTTP(ctx, retriever.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+x.bearer)
		return client.Do(req)
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("x api status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
