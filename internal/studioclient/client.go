// Package studioclient talks to the studio generation backend over HTTP.
package studioclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"studio/internal/entity/dto"
	"studio/internal/workstation"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout  = 60 * time.Second
	maxBlobBytes    = 64 << 20
	maxErrorBody    = 64 << 10
	maxRedirectHops = 10
)

// Client implements workstation.Backend and workstation.BlobFetcher.
type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	userAgent  string
}

var (
	_ workstation.Backend     = (*Client)(nil)
	_ workstation.BlobFetcher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithToken sets the bearer token sent to the backend.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("studioclient: base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("studioclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("studioclient: unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "studio-workstation",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/api/" + strings.Join(escaped, "/")
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends req and decodes a JSON success body into out.
func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	logrus.WithFields(logrus.Fields{
		"method":      req.Method,
		"path":        req.URL.Path,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("studioclient: request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, body)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// FetchShot loads the shot metadata the request builder falls back on.
func (c *Client) FetchShot(ctx context.Context, shotID string) (workstation.Shot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("shots", shotID), nil)
	if err != nil {
		return workstation.Shot{}, err
	}
	var resp dto.ShotResponse
	if err := c.do(req, &resp); err != nil {
		return workstation.Shot{}, err
	}
	return resp.Shot, nil
}

// FetchGenerations returns every generation of a shot.
func (c *Client) FetchGenerations(ctx context.Context, shotID string) ([]workstation.GenerationRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("shots", shotID, "generations"), nil)
	if err != nil {
		return nil, err
	}
	var resp dto.GenerationListResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Generations {
		resp.Generations[i].Status = dto.ParseStatus(string(resp.Generations[i].Status))
		resp.Generations[i].ImageURL = c.resolve(resp.Generations[i].ImageURL)
	}
	return resp.Generations, nil
}

// FetchGeneration returns a single generation.
func (c *Client) FetchGeneration(ctx context.Context, id string) (workstation.GenerationRecord, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("generations", id), nil)
	if err != nil {
		return workstation.GenerationRecord{}, err
	}
	var resp dto.GenerationDetailResponse
	if err := c.do(req, &resp); err != nil {
		return workstation.GenerationRecord{}, err
	}
	g := resp.Generation
	g.Status = dto.ParseStatus(string(g.Status))
	g.ImageURL = c.resolve(g.ImageURL)
	return g, nil
}

// SubmitGeneration posts a multipart generation request.
func (c *Client) SubmitGeneration(ctx context.Context, p workstation.Payload) (dto.CreateGenerationResponse, error) {
	body, contentType, err := encodePayload(p)
	if err != nil {
		return dto.CreateGenerationResponse{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("generations"), body)
	if err != nil {
		return dto.CreateGenerationResponse{}, err
	}
	req.Header.Set("Content-Type", contentType)

	var resp dto.CreateGenerationResponse
	if err := c.do(req, &resp); err != nil {
		return dto.CreateGenerationResponse{}, err
	}
	return resp, nil
}

// FetchBackgroundGrid runs the synchronous background-grid mode.
func (c *Client) FetchBackgroundGrid(ctx context.Context, p workstation.GridPayload) ([]string, error) {
	body, contentType, err := encodeGrid(p)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("shots", p.ShotID, "background-grid"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var resp dto.BackgroundGridResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	images := make([]string, 0, len(resp.Images))
	for _, img := range resp.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, c.resolve(img))
		}
	}
	return images, nil
}

// PersistBackgroundSelections saves chosen grid outputs on the shot.
func (c *Client) PersistBackgroundSelections(ctx context.Context, shotID string, urls []string) error {
	payload, err := json.Marshal(dto.BackgroundSelectionRequest{URLs: urls})
	if err != nil {
		return fmt.Errorf("encode selections: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("shots", shotID, "backgrounds"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// FetchBlob downloads rawURL into memory. Relative URLs resolve against the
// backend; only those carry the bearer token. With NoReferrer no Referer
// header is sent, including on redirects.
func (c *Client) FetchBlob(ctx context.Context, rawURL string, opts workstation.FetchOptions) (workstation.File, error) {
	target := c.resolve(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return workstation.File{}, fmt.Errorf("build blob request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" && c.sameOrigin(req.URL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	client := c.httpClient
	if opts.NoReferrer {
		req.Header.Del("Referer")
		cp := *c.httpClient
		cp.CheckRedirect = stripReferer
		client = &cp
	}

	resp, err := client.Do(req)
	if err != nil {
		return workstation.File{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return workstation.File{}, decodeAPIError(resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		return workstation.File{}, fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxBlobBytes {
		return workstation.File{}, fmt.Errorf("fetch %s: body exceeds %d bytes", target, maxBlobBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return workstation.File{
		Name:        blobName(resp.Request.URL, resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func stripReferer(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirectHops {
		return fmt.Errorf("stopped after %d redirects", maxRedirectHops)
	}
	req.Header.Del("Referer")
	return nil
}

// resolve turns backend-relative paths such as /files/... into absolute URLs.
func (c *Client) resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	return c.baseURL.ResolveReference(ref).String()
}

func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

func blobName(u *url.URL, disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return path.Base(name)
		}
	}
	if u != nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return ""
}

type formWriter struct {
	w   *multipart.Writer
	err error
}

func (f *formWriter) field(name, value string) {
	if f.err != nil || value == "" {
		return
	}
	f.err = f.w.WriteField(name, value)
}

func (f *formWriter) file(name string, file *workstation.File) {
	if f.err != nil || file.Empty() {
		return
	}
	filename := file.Name
	if filename == "" {
		filename = name
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(name), escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(file.Data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func encodePayload(p workstation.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	fw := &formWriter{w: multipart.NewWriter(&buf)}

	fw.field(dto.FieldMode, string(p.Mode))
	fw.field(dto.FieldShotID, p.ShotID)
	fw.field(dto.FieldPrompt, p.Prompt)
	fw.field(dto.FieldRequestedBy, p.RequestedBy)
	fw.field(dto.FieldModel, p.Model)
	fw.field(dto.FieldAspectRatio, p.AspectRatio)
	fw.field(dto.FieldResolution, p.Resolution)

	for i := range p.ReferenceFiles {
		fw.file(dto.FieldReferenceFiles, &p.ReferenceFiles[i])
	}

	fw.file(dto.FieldAutoStoryboard, p.AutoStoryboard)
	fw.field(dto.FieldAutoStoryboardURL, p.AutoStoryboardURL)
	fw.file(dto.FieldAutoBackground, p.AutoBackground)
	fw.field(dto.FieldAutoBackgroundURL, p.AutoBackgroundURL)
	fw.file(dto.FieldAutoLighting, p.AutoLighting)
	fw.field(dto.FieldAutoLightingURL, p.AutoLightingURL)
	for i := range p.CharacterFiles {
		fw.file(dto.FieldCharacterFiles, &p.CharacterFiles[i].File)
		if fw.err == nil {
			fw.err = fw.w.WriteField(dto.FieldCharacterNames, p.CharacterFiles[i].Name)
		}
	}
	if len(p.CharacterURLs) > 0 {
		encoded, err := json.Marshal(p.CharacterURLs)
		if err != nil {
			return nil, "", fmt.Errorf("encode character urls: %w", err)
		}
		fw.field(dto.FieldCharacterURLs, string(encoded))
	}

	fw.file(dto.FieldStoryboardFile, p.StoryboardFile)
	fw.field(dto.FieldStoryboardURL, p.StoryboardURL)

	fw.field(dto.FieldAngle, p.Angles.Angle)
	fw.field(dto.FieldLength, p.Angles.Length)
	fw.field(dto.FieldFocus, p.Angles.Focus)
	fw.field(dto.FieldBackground, p.Angles.Background)
	fw.file(dto.FieldAnchorImage, p.AnchorImage)
	fw.file(dto.FieldTargetImage, p.TargetImage)

	if fw.err != nil {
		return nil, "", fmt.Errorf("encode generation form: %w", fw.err)
	}
	if err := fw.w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode generation form: %w", err)
	}
	return &buf, fw.w.FormDataContentType(), nil
}

func encodeGrid(p workstation.GridPayload) (io.Reader, string, error) {
	var buf bytes.Buffer
	fw := &formWriter{w: multipart.NewWriter(&buf)}

	fw.field(dto.FieldShotID, p.ShotID)
	fw.field(dto.FieldContext, p.Context)
	fw.field(dto.FieldAspectRatio, p.AspectRatio)
	base := p.BaseImage
	fw.file(dto.FieldBaseImage, &base)

	if fw.err != nil {
		return nil, "", fmt.Errorf("encode grid form: %w", fw.err)
	}
	if err := fw.w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode grid form: %w", err)
	}
	return &buf, fw.w.FormDataContentType(), nil
}
