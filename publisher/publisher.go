package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"auto_linkedin_post_publisher/content"
	"auto_linkedin_post_publisher/failure"
)

const (
	defaultBaseURL    = "https://api.linkedin.com"
	defaultAPIVersion = "202504"
	restliProtocol    = "2.0.0"

	initializeUploadPath = "/rest/images?action=initializeUpload"
	postsPath            = "/rest/posts"
	userInfoPath         = "/v2/userinfo"
)

// Config holds the LinkedIn credentials and post settings.
type Config struct {
	AccessToken string
	// AuthorURN is the member or organization posting, e.g. urn:li:person:abc.
	AuthorURN  string
	APIVersion string
	BaseURL    string
	Visibility string
	Retry      failure.Policy
}

type initializeUploadReq struct {
	InitializeUploadRequest struct {
		Owner string `json:"owner"`
	} `json:"initializeUploadRequest"`
}

type initializeUploadResp struct {
	Value struct {
		UploadURL string `json:"uploadUrl"`
		Image     string `json:"image"`
	} `json:"value"`
}

type distribution struct {
	FeedDistribution string `json:"feedDistribution"`
}

type media struct {
	ID string `json:"id"`
}

type postContent struct {
	Media media `json:"media"`
}

type post struct {
	Author                    string       `json:"author"`
	Commentary                string       `json:"commentary"`
	Visibility                string       `json:"visibility"`
	Distribution              distribution `json:"distribution"`
	Content                   postContent  `json:"content"`
	LifecycleState            string       `json:"lifecycleState"`
	IsReshareDisabledByAuthor bool         `json:"isReshareDisabledByAuthor"`
}

type createPostResp struct {
	ID string `json:"id"`
}

type uploadTarget struct {
	uploadURL string
	assetURN  string
}

// Publisher runs the two-phase LinkedIn publish: register and upload the
// image asset, then create a post that references it.
type Publisher struct {
	cfg     Config
	client  *http.Client
	verbose bool
	logger  *log.Logger
	// OnPhase, when set, observes every phase transition of an attempt.
	OnPhase func(draftID string, phase Phase)
}

// New creates a Publisher. The author URN must be known up front; see ResolveAuthor.
func New(cfg Config, client *http.Client, verbose bool, logger *log.Logger) (*Publisher, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("linkedin config must include access_token")
	}
	if cfg.AuthorURN == "" {
		return nil, errors.New("linkedin config must include author_urn")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Visibility == "" {
		cfg.Visibility = "PUBLIC"
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		cfg:     cfg,
		client:  client,
		verbose: verbose,
		logger:  logger,
	}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Publish performs one attempt. The post is never created unless the asset
// upload produced an asset URN. Each attempt uploads the image again.
func (p *Publisher) Publish(ctx context.Context, snap content.Snapshot) content.PublishResult {
	a := &attempt{draftID: snap.DraftID, phase: PhaseInit, observe: p.OnPhase}

	if strings.TrimSpace(snap.Text) == "" || !snap.Image.Valid() {
		a.to(PhaseUploadFailed)
		return failed(failure.KindAssetUploadFailed, failure.New(failure.KindValidation, "publish", "snapshot needs text and image"))
	}

	a.to(PhaseUploading)
	assetURN, err := p.uploadAsset(ctx, snap.Image)
	if err != nil {
		a.to(PhaseUploadFailed)
		p.logger.Printf("[ERROR] asset upload failed for draft %s: %v", snap.DraftID, err)
		return failed(failure.KindAssetUploadFailed, err)
	}
	a.to(PhaseUploaded)
	p.infof("Uploaded image asset %s", assetURN)

	a.to(PhaseCreatingPost)
	postID, err := p.createPost(ctx, snap.Text, assetURN)
	if err != nil {
		a.to(PhasePostFailed)
		p.logger.Printf("[ERROR] post creation failed for draft %s: %v", snap.DraftID, err)
		res := failed(failure.KindPostCreationFailed, err)
		res.AssetURN = assetURN
		return res
	}
	a.to(PhasePublished)
	p.infof("Post created successfully: id=%s", postID)
	return content.PublishResult{PostID: postID, AssetURN: assetURN}
}

func failed(kind failure.Kind, err error) content.PublishResult {
	return content.PublishResult{Kind: kind, Cause: failure.KindOf(err), Message: failure.Message(err)}
}

func (p *Publisher) uploadAsset(ctx context.Context, img content.Image) (string, error) {
	target, err := failure.Retry(ctx, p.cfg.Retry, func(ctx context.Context) (uploadTarget, error) {
		return p.initializeUpload(ctx)
	})
	if err != nil {
		return "", err
	}
	p.infof("Initialized upload image=%s", target.assetURN)

	_, err = failure.Retry(ctx, p.cfg.Retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.uploadImageData(ctx, target.uploadURL, img.Data)
	})
	if err != nil {
		return "", err
	}
	return target.assetURN, nil
}

func (p *Publisher) initializeUpload(ctx context.Context) (uploadTarget, error) {
	var payload initializeUploadReq
	payload.InitializeUploadRequest.Owner = p.cfg.AuthorURN
	body, err := json.Marshal(payload)
	if err != nil {
		return uploadTarget{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+initializeUploadPath, bytes.NewReader(body))
	if err != nil {
		return uploadTarget{}, err
	}
	p.restHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return uploadTarget{}, failure.Classify("initialize upload", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return uploadTarget{}, statusError("initialize upload", resp)
	}

	var data initializeUploadResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return uploadTarget{}, failure.Wrap(failure.KindMalformedResponse, "initialize upload", err)
	}
	if data.Value.UploadURL == "" || data.Value.Image == "" {
		return uploadTarget{}, failure.New(failure.KindMalformedResponse, "initialize upload", "response missing uploadUrl or image urn")
	}
	return uploadTarget{uploadURL: data.Value.UploadURL, assetURN: data.Value.Image}, nil
}

func (p *Publisher) uploadImageData(ctx context.Context, uploadURL string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return failure.Wrap(failure.KindMalformedResponse, "upload image", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return failure.Classify("upload image", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError("upload image", resp)
	}
	return nil
}

func (p *Publisher) createPost(ctx context.Context, text, assetURN string) (string, error) {
	payload := post{
		Author:         p.cfg.AuthorURN,
		Commentary:     text,
		Visibility:     p.cfg.Visibility,
		Distribution:   distribution{FeedDistribution: "MAIN_FEED"},
		Content:        postContent{Media: media{ID: assetURN}},
		LifecycleState: "PUBLISHED",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return failure.Retry(ctx, p.cfg.Retry, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+postsPath, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		p.restHeaders(req)
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		resp, err := p.client.Do(req)
		if err != nil {
			return "", failure.Classify("create post", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return "", statusError("create post", resp)
		}
		return postIDFrom(resp)
	})
}

// postIDFrom reads the service-assigned id: x-restli-id, then x-linkedin-id,
// then an "id" field in the body.
func postIDFrom(resp *http.Response) (string, error) {
	for _, h := range []string{"X-Restli-Id", "X-Linkedin-Id"} {
		if id := strings.TrimSpace(resp.Header.Get(h)); id != "" {
			return id, nil
		}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		var data createPostResp
		if json.Unmarshal(raw, &data) == nil && data.ID != "" {
			return data.ID, nil
		}
	}
	return "", failure.New(failure.KindMalformedResponse, "create post", "response carries no post id")
}

func (p *Publisher) restHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.AccessToken)
	req.Header.Set("LinkedIn-Version", p.cfg.APIVersion)
	req.Header.Set("X-Restli-Protocol-Version", restliProtocol)
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return failure.FromStatus(op, resp.StatusCode, resp.Header, string(body))
}

type userInfoResp struct {
	Sub string `json:"sub"`
}

// ResolveAuthor asks the OpenID userinfo endpoint who owns accessToken and
// returns the matching person URN.
func ResolveAuthor(ctx context.Context, client *http.Client, baseURL, accessToken string) (string, error) {
	if accessToken == "" {
		return "", failure.New(failure.KindValidation, "resolve author", "access token is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+userInfoPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := client.Do(req)
	if err != nil {
		return "", failure.Classify("resolve author", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", statusError("resolve author", resp)
	}
	var data userInfoResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", failure.Wrap(failure.KindMalformedResponse, "resolve author", err)
	}
	if data.Sub == "" {
		return "", failure.New(failure.KindMalformedResponse, "resolve author", "userinfo has no sub")
	}
	return fmt.Sprintf("urn:li:person:%s", data.Sub), nil
}
