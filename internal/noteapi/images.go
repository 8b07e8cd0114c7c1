// ABOUTME: Image ingestion from a file path, URL or base64 string, and multipart upload to note.com.
// ABOUTME: Enforces the platform's 10 MiB limit before anything is sent upstream.

package noteapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MaxImageSize is the largest image the platform accepts.
const MaxImageSize = 10 << 20

// ErrImageTooLarge is returned when an image exceeds MaxImageSize.
var ErrImageTooLarge = errors.New("image exceeds 10MB limit")

var extMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// ImageSource names exactly one place to read an image from.
type ImageSource struct {
	Path   string
	URL    string
	Base64 string
}

// Image is a loaded image ready for upload.
type Image struct {
	Data     []byte
	FileName string
	MIMEType string
}

// UploadedImage is the platform's answer to an upload.
type UploadedImage struct {
	URL  string
	Data json.RawMessage
}

// LoadImage reads the image named by src. Path wins over URL, URL over Base64.
func (c *Client) LoadImage(ctx context.Context, src ImageSource) (*Image, error) {
	switch {
	case src.Path != "":
		return loadImageFile(src.Path)
	case src.URL != "":
		return c.fetchImage(ctx, src.URL)
	case src.Base64 != "":
		return decodeImage(src.Base64)
	default:
		return nil, errors.New("one of imagePath, imageUrl or imageBase64 is required")
	}
}

func loadImageFile(p string) (*Image, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if info.Size() > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(p))
	mimeType, ok := extMIME[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q (supported: jpg, png, gif, webp, svg)", ext)
	}
	return &Image{Data: data, FileName: filepath.Base(p), MIMEType: mimeType}, nil
}

func (c *Client) fetchImage(ctx context.Context, rawURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: status %d", resp.StatusCode)
	}
	mimeType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (content-type %q)", mimeType)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	name := "image.jpg"
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			name = base
		}
	}
	return &Image{Data: data, FileName: name, MIMEType: mimeType}, nil
}

func decodeImage(s string) (*Image, error) {
	// Accept data URIs as well as bare base64.
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return &Image{Data: data, FileName: "image.jpg", MIMEType: "image/jpeg"}, nil
}

// UploadImage sends img as multipart form field "image" and returns the hosted URL.
func (c *Client) UploadImage(ctx context.Context, img *Image) (*UploadedImage, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if len(img.Data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(imagePartHeader(img))
	if err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building upload: %w", err)
	}

	data, _, err := c.send(ctx, http.MethodPost, "/v1/upload_image", mw.FormDataContentType(), &buf, nil)
	if err != nil {
		return nil, err
	}

	imageURL := extractImageURL(data)
	if imageURL == "" {
		return nil, fmt.Errorf("upload succeeded but no image URL in response: %s", string(data))
	}
	return &UploadedImage{URL: imageURL, Data: data}, nil
}

func imagePartHeader(img *Image) textproto.MIMEHeader {
	name := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(img.FileName)
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="image"; filename="%s"`, name)},
		"Content-Type":        {img.MIMEType},
	}
}

// extractImageURL looks for the URL under data.{url,image_url,imageUrl}, then at the top level.
func extractImageURL(raw json.RawMessage) string {
	var resp struct {
		Data     any    `json:"data"`
		URL      string `json:"url"`
		SnakeURL string `json:"image_url"`
		CamelURL string `json:"imageUrl"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ""
	}
	if data, ok := resp.Data.(map[string]any); ok {
		for _, key := range []string{"url", "image_url", "imageUrl"} {
			if s, ok := data[key].(string); ok && s != "" {
				return s
			}
		}
	}
	for _, s := range []string{resp.URL, resp.SnakeURL, resp.CamelURL} {
		if s != "" {
			return s
		}
	}
	return ""
}
