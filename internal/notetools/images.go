// ABOUTME: Image upload tools for single images (path, URL or base64) and batches of local files.
// ABOUTME: Failures are reported inside the result text so batch callers see per-image outcomes.

package notetools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/note-gateway/internal/noteapi"
	"github.com/2389/note-gateway/internal/tools"
)

func (h *handlers) imagesPack() *tools.Pack {
	return &tools.Pack{
		ID: "note:images",
		Tools: []*tools.Tool{
			tools.New("upload-image",
				"Upload an image to note.com and return a URL usable in articles",
				`{"type":"object","properties":{"imagePath":{"type":"string","description":"Local image file path"},"imageUrl":{"type":"string","description":"Image URL (alternative to imagePath)"},"imageBase64":{"type":"string","description":"Base64 image data (alternative to imagePath)"}},"required":[]}`,
				h.uploadImage),
			tools.New("upload-images-batch",
				"Upload several local images to note.com",
				`{"type":"object","properties":{"imagePaths":{"type":"array","items":{"type":"string"},"description":"Local image file paths"}},"required":["imagePaths"]}`,
				h.uploadImagesBatch),
		},
	}
}

type uploadInput struct {
	ImagePath   string `json:"imagePath"`
	ImageURL    string `json:"imageUrl"`
	ImageBase64 string `json:"imageBase64"`
}

type uploadResult struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	ImageURL   string          `json:"imageUrl"`
	FileName   string          `json:"fileName"`
	FileSize   int             `json:"fileSize"`
	FileSizeMB string          `json:"fileSizeMB"`
	MIMEType   string          `json:"mimeType"`
	Path       string          `json:"path,omitempty"`
	Response   json.RawMessage `json:"apiResponse,omitempty"`
}

type uploadFailure struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func authRequired() (tools.Result, error) {
	return tools.JSONResult(uploadFailure{
		Error:   "authentication required",
		Message: "configure note.com credentials to upload images",
	})
}

func (h *handlers) upload(ctx context.Context, src noteapi.ImageSource) (*uploadResult, error) {
	img, err := h.api.LoadImage(ctx, src)
	if err != nil {
		return nil, err
	}
	up, err := h.api.UploadImage(ctx, img)
	if err != nil {
		return nil, err
	}
	return &uploadResult{
		Success:    true,
		ImageURL:   up.URL,
		FileName:   img.FileName,
		FileSize:   len(img.Data),
		FileSizeMB: fmt.Sprintf("%.2f", float64(len(img.Data))/1024/1024),
		MIMEType:   img.MIMEType,
		Response:   up.Data,
	}, nil
}

func (h *handlers) uploadImage(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in uploadInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if !h.api.IsAuthenticated() {
		return authRequired()
	}

	res, err := h.upload(ctx, noteapi.ImageSource{Path: in.ImagePath, URL: in.ImageURL, Base64: in.ImageBase64})
	if err != nil {
		h.logger.Warn("image upload failed", "error", err)
		return tools.JSONResult(uploadFailure{
			Error:   "image upload failed",
			Message: err.Error(),
			Details: fmt.Sprintf("%T: %v", err, err),
		})
	}
	res.Message = "image uploaded"
	return tools.JSONResult(res)
}

type batchInput struct {
	ImagePaths []string `json:"imagePaths"`
}

type batchFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

type batchResult struct {
	Success      bool            `json:"success"`
	TotalImages  int             `json:"totalImages"`
	SuccessCount int             `json:"successCount"`
	ErrorCount   int             `json:"errorCount"`
	Results      []*uploadResult `json:"results"`
	Errors       []batchFailure  `json:"errors"`
}

func (h *handlers) uploadImagesBatch(ctx context.Context, args json.RawMessage) (tools.Result, error) {
	var in batchInput
	if err := decodeArgs(args, &in); err != nil {
		return tools.Result{}, err
	}
	if !h.api.IsAuthenticated() {
		return authRequired()
	}

	out := batchResult{
		TotalImages: len(in.ImagePaths),
		Results:     []*uploadResult{},
		Errors:      []batchFailure{},
	}
	for _, p := range in.ImagePaths {
		res, err := h.upload(ctx, noteapi.ImageSource{Path: p})
		if err != nil {
			out.Errors = append(out.Errors, batchFailure{Path: p, Error: err.Error()})
			continue
		}
		res.Path = p
		res.Response = nil
		out.Results = append(out.Results, res)
	}
	out.SuccessCount = len(out.Results)
	out.ErrorCount = len(out.Errors)
	out.Success = out.SuccessCount > 0

	return tools.JSONResult(out)
}
