package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/menta2k/cocomask/internal/utils"
	"github.com/menta2k/cocomask/pkg/cache"
	"github.com/menta2k/cocomask/pkg/dataset"
	"github.com/menta2k/cocomask/pkg/extract"
	"github.com/menta2k/cocomask/pkg/health"
	"github.com/menta2k/cocomask/pkg/processing"
	"github.com/menta2k/cocomask/pkg/types"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type ConvertResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Cached  bool           `json:"cached"`
	MD5     string         `json:"md5"`
	Stats   extract.Stats  `json:"stats"`
	Data    *types.Dataset `json:"data"`
}

type convertEntry struct {
	Stats extract.Stats  `json:"stats"`
	Data  *types.Dataset `json:"data"`
}

func fail(c *gin.Context, status int, message string, err error) {
	resp := ErrorResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(status, resp)
}

// Convert extracts the uploaded label mask into a single-image dataset.
// Results are cached by the MD5 of the upload and the stored file name.
func (s *Server) Convert(c *gin.Context) {
	file, err := c.FormFile("mask")
	if err != nil {
		s.logger.Error("failed to get uploaded file", zap.Error(err))
		fail(c, http.StatusBadRequest, "a mask file is required in field \"mask\"", err)
		return
	}

	if file.Size > s.cfg.Server.MaxUploadSize {
		fail(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the upload limit (%s)", utils.FormatFileSize(s.cfg.Server.MaxUploadSize)), nil)
		return
	}

	if !processing.IsMaskFile(file.Filename) {
		fail(c, http.StatusBadRequest, "unsupported mask type, use TIFF or PNG", nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to read upload", err)
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to read upload", err)
		return
	}

	fileName := c.DefaultPostForm("file_name", file.Filename)
	md5 := utils.BytesMD5(data)
	key := "convert:" + md5 + ":" + fileName
	ctx := c.Request.Context()

	s.logger.Info("mask uploaded",
		zap.String("file", fileName),
		zap.String("md5", md5),
		zap.String("size", utils.FormatFileSize(file.Size)))

	var entry convertEntry
	hit, err := cache.GetJSON(ctx, s.cache, key, &entry)
	if err != nil {
		s.logger.Warn("failed to get cache", zap.Error(err))
	}
	if hit {
		s.logger.Info("cache hit", zap.String("cache_key", key))
		c.JSON(http.StatusOK, ConvertResponse{
			Success: true,
			Message: "converted (cached)",
			Cached:  true,
			MD5:     md5,
			Stats:   entry.Stats,
			Data:    entry.Data,
		})
		return
	}

	l, err := s.processor.DecodeMask(bytes.NewReader(data), file.Filename)
	if err != nil {
		s.logger.Error("failed to decode mask", zap.String("file", fileName), zap.Error(err))
		fail(c, http.StatusUnprocessableEntity, "failed to decode mask", err)
		return
	}

	res := s.extractor.Extract(l, fileName)
	now := s.now()
	ds := dataset.New(s.cats.Categories(), now)
	extract.Assign(res.Annotations, 1, 1)
	ds.Images = append(ds.Images, dataset.NewImage(1, fileName, res.Width, res.Height, now))
	ds.Annotations = append(ds.Annotations, res.Annotations...)

	entry = convertEntry{Stats: res.Stats, Data: ds}
	if err := cache.SetJSON(ctx, s.cache, key, entry); err != nil {
		s.logger.Warn("failed to set cache", zap.Error(err))
	}

	c.JSON(http.StatusOK, ConvertResponse{
		Success: true,
		Message: "converted",
		MD5:     md5,
		Stats:   res.Stats,
		Data:    ds,
	})
}

func (s *Server) readDataset(c *gin.Context) (*types.Dataset, bool) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "request body too large", err)
			return nil, false
		}
		fail(c, http.StatusBadRequest, "failed to read request body", err)
		return nil, false
	}
	ds, err := dataset.Decode(data)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid dataset", err)
		return nil, false
	}
	return ds, true
}

// Reconstruct renders one image of the posted dataset as a label mask.
// image_id defaults to the first image; format is png or tif.
func (s *Server) Reconstruct(c *gin.Context) {
	ds, ok := s.readDataset(c)
	if !ok {
		return
	}
	if len(ds.Images) == 0 {
		fail(c, http.StatusBadRequest, "dataset has no images", nil)
		return
	}

	img := ds.Images[0]
	if raw := c.Query("image_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "image_id must be an integer", err)
			return
		}
		if img, ok = ds.Image(id); !ok {
			fail(c, http.StatusNotFound, fmt.Sprintf("image %d not found", id), nil)
			return
		}
	}

	format := strings.ToLower(c.DefaultQuery("format", s.cfg.Output.MaskFormat))
	contentType := "image/tiff"
	switch format {
	case "tif", "tiff":
	case "png":
		contentType = "image/png"
	default:
		fail(c, http.StatusBadRequest, "format must be png or tif", nil)
		return
	}

	res, err := s.reconstructor.Image(ds, img)
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, "failed to reconstruct mask", err)
		return
	}
	if res.OverlapPixels > 0 {
		s.logger.Warn("overlapping annotations, later ones win",
			zap.Int64("image_id", img.ID),
			zap.Int("overlap_pixels", res.OverlapPixels))
	}

	var buf bytes.Buffer
	if err := processing.EncodeMask(&buf, res.Mask, format); err != nil {
		fail(c, http.StatusInternalServerError, "failed to encode mask", err)
		return
	}

	c.Header("X-Overlap-Pixels", strconv.Itoa(res.OverlapPixels))
	c.Header("X-Skipped-Annotations", strconv.Itoa(res.Skipped))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Health runs the dataset checks on the posted dataset.
func (s *Server) Health(c *gin.Context) {
	ds, ok := s.readDataset(c)
	if !ok {
		return
	}
	verbose := c.DefaultQuery("verbose", "false") == "true"
	c.JSON(http.StatusOK, health.Check(ds, verbose))
}
