package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_retrieve/internal/media"
	"github.com/anatolykoptev/go_retrieve/internal/retriever"
)

// Bluesky retrieves posts and profiles over the AT Protocol XRPC API.
// Post videos are served as HLS playlists and go through the HLS pipeline.
type Bluesky struct {
	handle   string
	password string
	apiBase  string

	mu  sync.Mutex
	jwt string
	did string
}

// NewBluesky builds the Bluesky backend from the engine configuration.
func NewBluesky() *Bluesky {
	c := retriever.Cfg
	return &Bluesky{
		handle:   c.BlueskyHandle,
		password: c.BlueskyPassword,
		apiBase:  "https://bsky.social",
	}
}

func (b *Bluesky) Name() string { return "bluesky" }

func (b *Bluesky) Match(rawURL string) bool {
	return matchDomain(rawURL, "bsky.app")
}

// Fetch routes the URL to post or profile retrieval. Any bsky.app profile
// URL without a /post/ segment is treated as a profile page.
func (b *Bluesky) Fetch(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	if b.handle == "" || b.password == "" {
		slog.Debug("bluesky backend not configured, skipping")
		return nil, nil
	}

	retriever.Metrics.BlueskyRequests.Add(1)
	client, release := ensureClient(client)
	defer release()

	if strings.Contains(rawURL, "/post/") {
		return b.fetchPost(ctx, rawURL, client)
	}
	return b.fetchProfile(ctx, rawURL, client)
}

// bskyThread mirrors the subset of app.bsky.feed.getPostThread this backend
// reads. Embed is kept raw because its shape depends on $type.
type bskyThread struct {
	Thread struct {
		Type string `json:"$type"`
		Post struct {
			URI    string `json:"uri"`
			Author struct {
				Handle      string `json:"handle"`
				DisplayName string `json:"displayName"`
			} `json:"author"`
			Record struct {
				Text      string `json:"text"`
				CreatedAt string `json:"createdAt"`
				Reply     *struct {
					Parent struct {
						URI string `json:"uri"`
					} `json:"parent"`
				} `json:"reply"`
			} `json:"record"`
			Embed       json.RawMessage `json:"embed"`
			LikeCount   int             `json:"likeCount"`
			ReplyCount  int             `json:"replyCount"`
			RepostCount int             `json:"repostCount"`
		} `json:"post"`
	} `json:"thread"`
}

type bskyEmbed struct {
	Type   string `json:"$type"`
	Images []struct {
		Fullsize string `json:"fullsize"`
		Alt      string `json:"alt"`
	} `json:"images"`
	Playlist string `json:"playlist"`
}

func (b *Bluesky) fetchPost(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	atURI, err := b.postURI(ctx, rawURL, client)
	if err != nil {
		return nil, err
	}

	var thread bskyThread
	q := url.Values{"uri": {atURI}, "depth": {"0"}, "parentHeight": {"0"}}
	if err := b.xrpcGet(ctx, client, "app.bsky.feed.getPostThread", q, &thread); err != nil {
		return nil, fmt.Errorf("post thread %s: %w", atURI, err)
	}

	switch thread.Thread.Type {
	case "app.bsky.feed.defs#notFoundPost":
		return nil, fmt.Errorf("post not found: %s", rawURL)
	case "app.bsky.feed.defs#blockedPost":
		return nil, fmt.Errorf("post is blocked: %s", rawURL)
	}

	post := thread.Thread.Post

	replyLine := ""
	if post.Record.Reply != nil {
		// Surface the parent as a bsky.app link so the text stays navigable.
		if parts := strings.Split(post.Record.Reply.Parent.URI, "/"); len(parts) > 0 {
			replyLine = "\nReply to post: " + parts[len(parts)-1]
		}
	}

	items := []media.Item{media.Text(fmt.Sprintf(
		"**Post on Bluesky**\nAuthor: %s (@%s)\nPosted on: %s\nLikes: %d - Comments: %d - Shares: %d%s\n\n%s",
		post.Author.DisplayName, post.Author.Handle,
		strings.TrimSuffix(post.Record.CreatedAt, "Z"),
		post.LikeCount, post.ReplyCount, post.RepostCount,
		replyLine, post.Record.Text,
	))}

	items = append(items, b.embedMedia(ctx, post.Embed, client)...)

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{
		"uri":          post.URI,
		"author":       post.Author.Handle,
		"post_text":    post.Record.Text,
		"created_at":   post.Record.CreatedAt,
		"like_count":   post.LikeCount,
		"reply_count":  post.ReplyCount,
		"repost_count": post.RepostCount,
	}
	return seq, nil
}

// embedMedia resolves the post embed: image embeds download each fullsize
// image, video embeds reconstruct the HLS stream.
func (b *Bluesky) embedMedia(ctx context.Context, raw json.RawMessage, client *http.Client) []media.Item {
	if len(raw) == 0 {
		return nil
	}
	var embed bskyEmbed
	if err := json.Unmarshal(raw, &embed); err != nil {
		slog.Warn("undecodable bluesky embed", slog.Any("error", err))
		return nil
	}

	var items []media.Item
	switch embed.Type {
	case "app.bsky.embed.images#view":
		for _, img := range embed.Images {
			if dl := media.DownloadImage(ctx, img.Fullsize, client); dl != nil {
				retriever.Metrics.MediaDownloads.Add(1)
				items = append(items, media.FromImage(dl))
			}
		}
	case "app.bsky.embed.video#view":
		retriever.Metrics.HLSDownloads.Add(1)
		vid, err := media.DownloadHLS(ctx, embed.Playlist, client)
		if err != nil {
			retriever.Metrics.MediaErrors.Add(1)
			slog.Warn("bluesky video download failed",
				slog.String("playlist", embed.Playlist), slog.Any("error", err))
			break
		}
		retriever.Metrics.MediaDownloads.Add(1)
		items = append(items, media.FromVideo(vid))
	}
	return items
}

type bskyProfile struct {
	Handle         string `json:"handle"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	Avatar         string `json:"avatar"`
	Banner         string `json:"banner"`
	CreatedAt      string `json:"createdAt"`
	FollowersCount int    `json:"followersCount"`
	FollowsCount   int    `json:"followsCount"`
	PostsCount     int    `json:"postsCount"`
}

func (b *Bluesky) fetchProfile(ctx context.Context, rawURL string, client *http.Client) (*media.Sequence, error) {
	actor := lastPathSegment(rawURL)
	if actor == "" {
		return nil, fmt.Errorf("no actor in bluesky URL: %s", rawURL)
	}

	var profile bskyProfile
	if err := b.xrpcGet(ctx, client, "app.bsky.actor.getProfile", url.Values{"actor": {actor}}, &profile); err != nil {
		return nil, fmt.Errorf("profile %s: %w", actor, err)
	}

	desc := profile.Description
	if desc == "" {
		desc = "No description provided"
	}

	items := []media.Item{media.Text(fmt.Sprintf(
		"**Profile on Bluesky**\nUser: %s (@%s)\nCreated on: %s\n\nURL: %s\nDescription: %s\n\nMetrics:\n- Follower count: %d\n- Following count: %d\n- Post count: %d",
		profile.DisplayName, profile.Handle, profile.CreatedAt,
		rawURL, desc,
		profile.FollowersCount, profile.FollowsCount, profile.PostsCount,
	))}
	for _, imgURL := range []string{profile.Avatar, profile.Banner} {
		if imgURL == "" {
			continue
		}
		if dl := media.DownloadImage(ctx, imgURL, client); dl != nil {
			retriever.Metrics.MediaDownloads.Add(1)
			items = append(items, media.FromImage(dl))
		}
	}

	seq := media.NewSequence(items...)
	seq.Metadata = map[string]any{"handle": profile.Handle, "followers": profile.FollowersCount}
	return seq, nil
}

// postURI turns a bsky.app post URL into its AT URI. Bluesky URLs look like
// https://bsky.app/profile/{handle}/post/{rkey}; the handle is resolved to a
// DID first, falling back to the raw handle when resolution fails.
func (b *Bluesky) postURI(ctx context.Context, rawURL string, client *http.Client) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 4 || parts[0] != "profile" || parts[2] != "post" {
		return "", fmt.Errorf("unrecognized bluesky post URL: %s", rawURL)
	}
	handle, rkey := parts[1], parts[3]

	actor := handle
	if !strings.HasPrefix(handle, "did:") {
		var resolved struct {
			DID string `json:"did"`
		}
		q := url.Values{"handle": {handle}}
		if err := b.xrpcGet(ctx, client, "com.atproto.identity.resolveHandle", q, &resolved); err != nil {
			slog.Warn("bluesky handle resolution failed, using handle as-is",
				slog.String("handle", handle), slog.Any("error", err))
		} else if resolved.DID != "" {
			actor = resolved.DID
		}
	}
	return fmt.Sprintf("at://%s/app.bsky.feed.post/%s", actor, rkey), nil
}

// xrpcGet performs an authenticated XRPC query. A 401 triggers exactly one
// re-authentication before the call is retried once.
func (b *Bluesky) xrpcGet(ctx context.Context, client *http.Client, method string, q url.Values, out any) error {
	jwt, err := b.session(ctx, client, false)
	if err != nil {
		return err
	}

	status, body, err := b.doGet(ctx, client, method, q, jwt)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		retriever.Metrics.Reauths.Add(1)
		slog.Debug("bluesky session expired, re-authenticating")
		jwt, err = b.session(ctx, client, true)
		if err != nil {
			return err
		}
		status, body, err = b.doGet(ctx, client, method, q, jwt)
		if err != nil {
			return err
		}
	}
	if status != http.StatusOK {
		return fmt.Errorf("xrpc %s status %d", method, status)
	}
	return json.Unmarshal(body, out)
}

func (b *Bluesky) doGet(ctx context.Context, client *http.Client, method string, q url.Values, jwt string) (status int, body []byte, err error) {
	resp, err := retriever.RetryHTTP(ctx, retriever.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiBase+"/xrpc/"+method+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+jwt)
		req.Header.Set("User-Agent", retriever.UserAgentBot)
		return client.Do(req)
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err = retriever.ReadResponseBody(resp)
	return resp.StatusCode, body, err
}

// session returns a valid access JWT, creating a new session when none is
// cached or force is set.
func (b *Bluesky) session(ctx context.Context, client *http.Client, force bool) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !force && b.jwt != "" {
		return b.jwt, nil
	}

	payload, err := json.Marshal(map[string]string{
		"identifier": b.handle,
		"password":   b.password,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.apiBase+"/xrpc/com.atproto.server.createSession", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("bluesky auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bluesky auth status %d", resp.StatusCode)
	}

	var session struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("bluesky auth decode: %w", err)
	}
	if session.AccessJwt == "" {
		return "", fmt.Errorf("bluesky auth: empty token")
	}

	b.jwt = session.AccessJwt
	b.did = session.DID
	slog.Info("bluesky authenticated", slog.String("handle", b.handle))
	return b.jwt, nil
}

// lastPathSegment returns the final non-empty path segment of a URL.
func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
