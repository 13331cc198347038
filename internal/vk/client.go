// Package vk is a minimal client for the VK wall API: posting to a group
// wall and uploading photo/video attachments. VK caps write calls per
// group, so every API call goes through a shared rate limiter.
package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/LigeronAhill/smmaster/pkg/logx"
)

const (
	defaultBaseURL = "https://api.vk.ru/method"
	apiVersion     = "5.199"
)

type Config struct {
	Token      string
	GroupID    int64
	AlbumTitle string // photo album to upload into; first album if empty
	BaseURL    string // test override
	RatePerSec float64
	Timeout    time.Duration
}

type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	baseURL string
	token   string
	groupID int64
	albumID int64
}

func New(cfg Config, log logx.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
		log:     log.With(logx.String("comp", "vk")),
		baseURL: base,
		token:   cfg.Token,
		groupID: cfg.GroupID,
	}
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("vk api error %d: %s", e.Code, e.Message)
}

// call performs one API method call and decodes the "response" field.
func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("v", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewBufferString(params.Encode()))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d: %s", method, resp.StatusCode, body)
	}

	var envelope struct {
		Error    *apiError       `json:"error"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Response, out); err != nil {
			return fmt.Errorf("%s: decode payload: %w", method, err)
		}
	}
	return nil
}

// Init resolves the target photo album once. Call before uploads; WallPost
// works without it.
func (c *Client) Init(ctx context.Context, albumTitle string) error {
	var resp struct {
		Items []struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"items"`
	}
	params := url.Values{"owner_id": {strconv.FormatInt(-c.groupID, 10)}}
	if err := c.call(ctx, "photos.getAlbums", params, &resp); err != nil {
		return err
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("vk group %d has no photo albums", c.groupID)
	}
	c.albumID = resp.Items[0].ID
	for _, a := range resp.Items {
		if albumTitle != "" && a.Title == albumTitle {
			c.albumID = a.ID
			break
		}
	}
	c.log.Info("vk album resolved", logx.Int64("album_id", c.albumID))
	return nil
}

// WallPost publishes text with an optional attachment ref
// ("photo-{owner}_{id}" or "video-{owner}_{id}") on the group wall.
func (c *Client) WallPost(ctx context.Context, text, attachment string) error {
	params := url.Values{
		"owner_id":   {strconv.FormatInt(-c.groupID, 10)},
		"from_group": {"1"},
		"message":    {text},
	}
	if attachment != "" {
		params.Set("attachments", attachment)
	}
	var resp struct {
		PostID int64 `json:"post_id"`
	}
	if err := c.call(ctx, "wall.post", params, &resp); err != nil {
		return err
	}
	c.log.Info("vk wall post created", logx.Int64("vk_post_id", resp.PostID))
	return nil
}

// UploadPhoto pushes an image through the three-step photo upload flow and
// returns the attachment ref.
func (c *Client) UploadPhoto(ctx context.Context, r io.Reader, filename string) (string, error) {
	var server struct {
		UploadURL string `json:"upload_url"`
	}
	params := url.Values{
		"album_id": {strconv.FormatInt(c.albumID, 10)},
		"group_id": {strconv.FormatInt(c.groupID, 10)},
	}
	if err := c.call(ctx, "photos.getUploadServer", params, &server); err != nil {
		return "", err
	}

	var uploaded struct {
		Server     int64  `json:"server"`
		PhotosList string `json:"photos_list"`
		Hash       string `json:"hash"`
	}
	if err := c.uploadFile(ctx, server.UploadURL, "file1", filename, r, &uploaded); err != nil {
		return "", fmt.Errorf("photo upload: %w", err)
	}

	var saved []struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
	}
	saveParams := url.Values{
		"album_id":    {strconv.FormatInt(c.albumID, 10)},
		"group_id":    {strconv.FormatInt(c.groupID, 10)},
		"server":      {strconv.FormatInt(uploaded.Server, 10)},
		"photos_list": {uploaded.PhotosList},
		"hash":        {uploaded.Hash},
	}
	if err := c.call(ctx, "photos.save", saveParams, &saved); err != nil {
		return "", err
	}
	if len(saved) == 0 {
		return "", fmt.Errorf("photos.save returned no photos")
	}
	return fmt.Sprintf("photo%d_%d", saved[0].OwnerID, saved[0].ID), nil
}

// UploadVideo registers a video and pushes the bytes to the returned upload
// URL. VK finalizes the video asynchronously; the ref is valid immediately.
func (c *Client) UploadVideo(ctx context.Context, r io.Reader, filename string) (string, error) {
	var saved struct {
		UploadURL string `json:"upload_url"`
		VideoID   int64  `json:"video_id"`
		OwnerID   int64  `json:"owner_id"`
	}
	params := url.Values{"group_id": {strconv.FormatInt(c.groupID, 10)}}
	if err := c.call(ctx, "video.save", params, &saved); err != nil {
		return "", err
	}

	if err := c.uploadFile(ctx, saved.UploadURL, "video_file", filename, r, nil); err != nil {
		return "", fmt.Errorf("video upload: %w", err)
	}
	return fmt.Sprintf("video%d_%d", saved.OwnerID, saved.VideoID), nil
}

func (c *Client) uploadFile(ctx context.Context, uploadURL, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy file body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upload status %d: %s", resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode upload response: %w", err)
		}
	}
	return nil
}
