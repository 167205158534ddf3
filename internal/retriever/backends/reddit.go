package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// Reddit retrieves posts, subreddits and user pages through the OAuth2 API.
// Uses the password grant when user credentials are configured, client
// credentials otherwise.
type Reddit struct {
	clientID     string
	clientSecret string
	username     string
	password     string
	userAgent    string

	authURL string
	apiBase string
	limiter *rate.Limiter

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewReddit builds the Reddit backend from the engine configuration.
func NewReddit() *Reddit {
	c := retriever.Cfg
	ua := c.RedditUserAgent
	if ua == "" {
		ua = retriever.UserAgentBot
	}
	return &Reddit{
		clientID:     c.RedditClientID,
		clientSecret: c.RedditClientSecret,
		username:     c.RedditUsername,
		password:     c.RedditPassword,
		userAgent:    ua,
		authURL:      "https://www.reddit.com/api/v1/access_token",
		apiBase:      "https://oauth.reddit.com",
		// Reddit allows 60 requests per minute for script apps.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (r *Reddit) Name() string { return "reddit" }

// Match claims reddit.com (all subdomains) and redd.it URLs.
func (r *Reddit) Match(rawURL string) bool {
	return matchDomain(rawURL, "reddit.com", "redd.it")
}

// Fetch routes the URL to post, subreddit or user retrieval.
func (r *Reddit) Fetch(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	if r.clientID == "" || r.clientSecret == "" {
		slog.Debug("reddit backend not configured, skipping")
		return nil, nil
	}

	retriever.Metrics.RedditRequests.Add(1)
	client, release := ensureClient(client)
	defer release()

	if sub, postID, ok := extractPostInfo(rawURL); ok {
		return r.fetchPost(ctx, sub, postID, rawURL, client)
	}
	if sub := extractSubreddit(rawURL); sub != "" {
		return r.fetchSubreddit(ctx, sub, rawURL, client)
	}
	if user := extractRedditUser(rawURL); user != "" {
		return r.fetchUser(ctx, user, rawURL, client)
	}
	return nil, fmt.Errorf("unsupported reddit URL: %s", rawURL)
}

var (
	redditPostRe = regexp.MustCompile(`/r/([^/]+)/comments/([a-z0-9]+)`)
	redditSubRe  = regexp.MustCompile(`/r/([A-Za-z0-9_]+)/?(?:[?#].*)?$`)
	redditUserRe = regexp.MustCompile(`/(?:u|user)/([A-Za-z0-9_-]+)/?(?:[?#].*)?$`)
)

func extractPostInfo(rawURL string) (subreddit, postID string, ok bool) {
	if m := redditPostRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], m[2], true
	}
	return "", "", false
}

func extractSubreddit(rawURL string) string {
	if m := redditSubRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

func extractRedditUser(rawURL string) string {
	if m := redditUserRe.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// redditPost carries the post fields this backend reads. The preview URLs
// come HTML-escaped from the API.
type redditPost struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Selftext          string  `json:"selftext"`
	Author            string  `json:"author"`
	SubredditPrefixed string  `json:"subreddit_name_prefixed"`
	Subreddit         string  `json:"subreddit"`
	CreatedUTC        float64 `json:"created_utc"`
	Ups               int     `json:"ups"`
	Score             int     `json:"score"`
	UpvoteRatio       float64 `json:"upvote_ratio"`
	NumComments       int     `json:"num_comments"`
	IsSelf            bool    `json:"is_self"`
	IsVideo           bool    `json:"is_video"`
	Over18            bool    `json:"over_18"`
	Locked            bool    `json:"locked"`
	Archived          bool    `json:"archived"`
	Domain            string  `json:"domain"`
	PostHint          string  `json:"post_hint"`
	LinkedURL         string  `json:"url"`
	URLOverridden     string  `json:"url_overridden_by_dest"`
	Media             *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditComment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
	Score  int    `json:"score"`
}

func (r *Reddit) fetchPost(ctx context.Context, subreddit, postID, rawURL string, client *http.Client) (*media.Sequence, error) {
	var listings []redditListing
	if err := r.apiGet(ctx, client, fmt.Sprintf("/r/%s/comments/%s.json?raw_json=1", subreddit, postID), &listings); err != nil {
		return nil, fmt.Errorf("post %s/%s: %w", subreddit, postID, err)
	}
	if len(listings) == 0 || len(listings[0].Data.Children) == 0 {
		return nil, fmt.Errorf("post %s/%s: empty listing", subreddit, postID)
	}

	var post redditPost
	if err := json.Unmarshal(listings[0].Data.Children[0].Data, &post); err != nil {
		return nil, fmt.Errorf("post %s/%s: decode: %w", subreddit, postID, err)
	}

	var comments []redditComment
	if len(listings) > 1 {
		for _, child := range listings[1].Data.Children {
			var c redditComment
			if json.Unmarshal(child.Data, &c) == nil && c.Body != "" {
				comments = append(comments, c)
			}
		}
	}

	var items []media.Item

	posted := time.Unix(int64(post.CreatedUTC), 0).UTC().Format("January 02, 2006 at 15:04 UTC")

	descLine := ""
	if desc := r.subredditDescription(ctx, post.Subreddit, client); desc != "" {
		descLine = "\n**Subreddit description**: " + desc
	}

	externalLine := ""
	if !post.IsSelf && post.LinkedURL != "" && post.LinkedURL != rawURL {
		externalLine = "\n\n**External Link**: " + post.LinkedURL
		if post.Domain != "" {
			externalLine += " (Domain: " + post.Domain + ")"
		}
	}

	items = append(items, media.Text(fmt.Sprintf(
		"**Reddit Post by user u/%s**\nSubreddit: %s%s\n\nPosted: %s\nURL: %s\nEngagement: %d upvotes, %d score (%.0f%% upvote ratio)\nComments: %d%s\n\n**%s**\n\n%s",
		post.Author, post.SubredditPrefixed, descLine,
		posted, rawURL,
		post.Ups, post.Score, post.UpvoteRatio*100,
		post.NumComments, externalLine,
		post.Title, post.Selftext,
	)))

	items = append(items, r.postMedia(ctx, &post, client)...)

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{
		"post_id":      post.ID,
		"post_title":   post.Title,
		"post_text":    post.Selftext,
		"author":       post.Author,
		"subreddit":    post.SubredditPrefixed,
		"timestamp":    post.CreatedUTC,
		"score":        post.Score,
		"upvote_ratio": post.UpvoteRatio,
		"num_comments": post.NumComments,
		"over_18":      post.Over18,
		"locked":       post.Locked,
		"archived":     post.Archived,
		"domain":       post.Domain,
		"url_linked":   post.LinkedURL,
	}
	if len(comments) > 0 {
		top := make([]string, 0, 5)
		for i, c := range comments {
			if i == 5 {
				break
			}
			top = append(top, fmt.Sprintf("u/%s (%d): %s", c.Author, c.Score, c.Body))
		}
		seq.Metadata["comments"] = top
	}
	return seq, nil
}

// postMedia resolves the post's media attachment, if any: native reddit
// video via its fallback URL, direct image link, or a v.redd.it external
// link tried across the common DASH renditions.
func (r *Reddit) postMedia(ctx context.Context, post *redditPost, client *http.Client) []media.Item {
	switch {
	case post.IsVideo && post.Media != nil && post.Media.RedditVideo != nil:
		if vid := media.DownloadVideo(ctx, html.UnescapeString(post.Media.RedditVideo.FallbackURL), client); vid != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			return []media.Item{media.FromVideo(vid)}
		}
	case post.PostHint == "image" && post.URLOverridden != "":
		if img := media.DownloadImage(ctx, html.UnescapeString(post.URLOverridden), client); img != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			return []media.Item{media.FromImage(img)}
		}
	case strings.Contains(post.LinkedURL, "v.redd.it"):
		for _, candidate := range []string{
			post.LinkedURL + "/DASH_720.mp4?source=fallback",
			post.LinkedURL + "/DASH_480.mp4?source=fallback",
			post.LinkedURL + "/DASH_360.mp4?source=fallback",
		} {
			if vid := media.DownloadVideo(ctx, candidate, client); vid != nil {
				retriever.Metrics.MediaDownloads.Add(1)
				return []media.Item{media.FromVideo(vid)}
			}
		}
		slog.Warn("no playable rendition for v.redd.it link", slog.String("url", post.LinkedURL))
	}
	return nil
}

type redditAbout struct {
	Data struct {
		DisplayNamePrefixed string  `json:"display_name_prefixed"`
		Title               string  `json:"title"`
		PublicDescription   string  `json:"public_description"`
		Subscribers         int     `json:"subscribers"`
		CreatedUTC          float64 `json:"created_utc"`
		Over18              bool    `json:"over18"`
	} `json:"data"`
}

func (r *Reddit) fetchSubreddit(ctx context.Context, subreddit, rawURL string, client *http.Client) (*media.Sequence, error) {
	var about redditAbout
	if err := r.apiGet(ctx, client, "/r/"+subreddit+"/about", &about); err != nil {
		return nil, fmt.Errorf("subreddit %s: %w", subreddit, err)
	}
	d := about.Data

	created := time.Unix(int64(d.CreatedUTC), 0).UTC().Format("January 02, 2006")
	seq := media.NewSequence(media.Text(fmt.Sprintf(
		"**Subreddit %s**\nTitle: %s\nCreated on: %s\nSubscribers: %d\nNSFW: %t\n\n%s",
		d.DisplayNamePrefixed, d.Title, created, d.Subscribers, d.Over18, d.PublicDescription,
	)))
	seq.Metadata = map[string]any{"subreddit": subreddit, "subscribers": d.Subscribers}
	return seq, nil
}

type redditUserAbout struct {
	Data struct {
		Name         string  `json:"name"`
		CreatedUTC   float64 `json:"created_utc"`
		LinkKarma    int     `json:"link_karma"`
		CommentKarma int     `json:"comment_karma"`
		IsMod        bool    `json:"is_mod"`
		IsGold       bool    `json:"is_gold"`
		IconImg      string  `json:"icon_img"`
	} `json:"data"`
}

func (r *Reddit) fetchUser(ctx context.Context, username, rawURL string, client *http.Client) (*media.Sequence, error) {
	var about redditUserAbout
	if err := r.apiGet(ctx, client, "/user/"+username+"/about", &about); err != nil {
		return nil, fmt.Errorf("user %s: %w", username, err)
	}
	d := about.Data

	created := time.Unix(int64(d.CreatedUTC), 0).UTC().Format("January 02, 2006")
	items := []media.Item{media.Text(fmt.Sprintf(
		"**Reddit user u/%s**\nCreated on: %s\nLink karma: %d - Comment karma: %d\nModerator: %t",
		d.Name, created, d.LinkKarma, d.CommentKarma, d.IsMod,
	))}
	if d.IconImg != "" {
		if img := media.DownloadImage(ctx, html.UnescapeString(d.IconImg), client); img != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			items = append(items, media.FromImage(img))
		}
	}
	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{"username": d.Name}
	return seq, nil
}

// subredditDescription returns the subreddit's public description, cached to
// avoid redundant API calls across a batch.
func (r *Reddit) subredditDescription(ctx context.Context, subreddit string, client *http.Client) string {
	subreddit = strings.TrimPrefix(subreddit, "r/")
	if subreddit == "" {
		return ""
	}

	key := retriever.CacheKey("reddit_sub", strings.ToLower(subreddit))
	if desc, ok := retriever.CacheGet(ctx, key); ok {
		return desc
	}

	var about redditAbout
	if err := r.apiGet(ctx, client, "/r/"+subreddit+"/about", &about); err != nil {
		slog.Debug("subreddit description fetch failed", slog.String("subreddit", subreddit), slog.Any("error", err))
		retriever.CacheSet(ctx, key, "")
		return ""
	}
	retriever.CacheSet(ctx, key, about.Data.PublicDescription)
	return about.Data.PublicDescription
}

// apiGet performs an authenticated GET against the OAuth API. A 401 triggers
// exactly one re-authentication before the call is retried once.
func (r *Reddit) apiGet(ctx context.Context, client *http.Client, path string, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	token, err := r.accessToken(ctx, client, false)
	if err != nil {
		return err
	}

	status, body, err := r.doGet(ctx, client, path, token)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		retriever.Metrics.Reauths.Add(1)
		slog.Debug("reddit token rejected, re-authenticating")
		token, err = r.accessToken(ctx, client, true)
		if err != nil {
			return err
		}
		status, body, err = r.doGet(ctx, client, path, token)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("reddit api status %d", status)
	}
	return json.Unmarshal(body, out)
}

func (r *Reddit) doGet(ctx context.Context, client *http.Client, path, token string) (status int, body []byte, err error) {
	resp, err := retriever.RetryHTTP(ctx, retriever.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.apiBase+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", r.userAgent)
		return client.Do(req)
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err = retriever.ReadResponseBody(resp)
	return resp.StatusCode, body, err
}

// accessToken returns a valid OAuth token, fetching a new one when the
// cached token is missing, expired, or force is set.
func (r *Reddit) accessToken(ctx context.Context, client *http.Client, force bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !force && r.token != "" && time.Now().Before(r.tokenExp) {
		return r.token, nil
	}

	form := url.Values{}
	if r.username != "" && r.password != "" {
		form.Set("grant_type", "password")
		form.Set("username", r.username)
		form.Set("password", r.password)
	} else {
		form.Set("grant_type", "client_credentials")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(r.clientID, r.clientSecret)
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("reddit auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reddit auth status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("reddit auth decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("reddit auth: empty token")
	}

	r.token = tok.AccessToken
	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Refresh a minute early to avoid racing the expiry.
	r.tokenExp = time.Now().Add(ttl - time.Minute)
	slog.Info("reddit authenticated", slog.Duration("ttl", ttl))
	return r.token, nil
}
