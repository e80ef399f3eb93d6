package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"audioedit/internal/logging"
	"audioedit/internal/media"
	"audioedit/internal/models"
	"audioedit/internal/service/editor"
	"audioedit/internal/worker"
)

const defaultMaxUploadBytes = 200 << 20

var installHints = map[string]string{
	"linux":   "apt install ffmpeg",
	"macos":   "brew install ffmpeg",
	"windows": "winget install ffmpeg",
}

type WorkerManager interface {
	Process(worker.ProcessRequest) (*editor.Output, error)
	Progress(jobID string) (worker.JobProgress, bool)
	Result(jobID string) (*editor.Output, bool)
	Stats() worker.Stats
}

// Handler wires HTTP routes to the editor service and the ffmpeg worker pool.
type Handler struct {
	editor    *editor.Service
	workers   WorkerManager
	maxUpload int64
	logger    zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(service *editor.Service, workers WorkerManager, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		editor:    service,
		workers:   workers,
		maxUpload: maxUploadBytes,
		logger:    logging.Component("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)
	api.GET("/options", h.options)
	api.POST("/process", h.process)
	api.GET("/jobs", h.listJobs)
	api.GET("/jobs/:id", h.getJob)
	api.GET("/jobs/:id/download", h.download)
}

func (h *Handler) health(c *gin.Context) {
	proc := h.editor.Processor()
	ok, version := proc.CheckTool(c.Request.Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	env := proc.Environment()
	template := media.TemplateCrossfadeChain
	if env.Hosted {
		template = media.TemplateSimpleLoop
	}
	resp := gin.H{
		"ffmpeg":      ok,
		"version":     version,
		"environment": env,
		"template":    template,
		"workers":     h.workers.Stats(),
	}
	if !ok {
		resp["install"] = installHints
	}
	c.JSON(status, resp)
}

type formatOption struct {
	Value          media.OutputFormat `json:"value"`
	MimeType       string             `json:"mime"`
	Qualities      []string           `json:"qualities"`
	DefaultQuality string             `json:"default_quality"`
}

type modeOption struct {
	Value  media.Mode `json:"value"`
	Label  string     `json:"label"`
	Suffix string     `json:"suffix"`
}

func (h *Handler) options(c *gin.Context) {
	modes := make([]modeOption, 0, len(media.Modes))
	for _, m := range media.Modes {
		modes = append(modes, modeOption{Value: m, Label: m.Label(), Suffix: m.Suffix()})
	}
	formats := make([]formatOption, 0, len(media.Formats))
	for _, f := range media.Formats {
		formats = append(formats, formatOption{
			Value:          f,
			MimeType:       f.MimeType(),
			Qualities:      f.Qualities(),
			DefaultQuality: f.DefaultQuality(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"modes":      modes,
		"methods":    media.Methods,
		"formats":    formats,
		"extensions": media.AcceptedExtensions,
		"crossfade": gin.H{
			"min":     media.CrossfadeMin,
			"max":     media.CrossfadeMax,
			"step":    media.CrossfadeStep,
			"default": media.CrossfadeDefault,
		},
		"target": gin.H{
			"max_hours":       media.MaxTargetHours,
			"max_minutes":     media.MaxTargetMinutes,
			"default_hours":   media.DefaultTargetHours,
			"default_minutes": media.DefaultTargetMinutes,
		},
		"defaults": gin.H{
			"mode":   media.ModeExtend,
			"method": media.MethodBasicCrossfade,
			"format": media.FormatMP3,
		},
		"fade_out_seconds": media.FadeOutSeconds,
		"environment":      h.editor.Processor().Environment(),
		"max_upload":       humanize.Bytes(uint64(h.maxUpload)),
	})
}

func (h *Handler) process(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	var form processForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form fields"})
		return
	}
	params, err := form.resolve()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "hint": media.ErrorHint})
		return
	}

	files := c.Request.MultipartForm.File["files"]
	if err := media.ValidateRequest(params.mode, len(files), params.target, params.crossfade); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": media.UserMessage(err)})
		return
	}
	mimes := make([]string, len(files))
	for i, fh := range files {
		mt, err := h.sniffUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mimes[i] = mt
	}

	ctx := c.Request.Context()
	job := &models.Job{
		ID:            uuid.NewString(),
		Client:        c.ClientIP(),
		Mode:          string(params.mode),
		Method:        string(params.method),
		OutputFormat:  string(params.format),
		Quality:       params.quality,
		Crossfade:     params.crossfade,
		TargetSeconds: int64(params.target.Seconds()),
		FileCount:     len(files),
		Normalize:     params.normalize,
	}
	if err := h.editor.CreateJob(ctx, job); err != nil {
		h.logger.Error().Err(err).Msg("create job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create job failed"})
		return
	}
	defer h.editor.DiscardJob(job.ID)

	inputs := make([]*models.TempFile, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
			return
		}
		tf, err := h.editor.StageUpload(ctx, job.ID, fh.Filename, mimes[i], f)
		f.Close()
		if err != nil {
			h.logger.Error().Err(err).Str("job", job.ID).Msg("stage upload")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
			return
		}
		inputs = append(inputs, tf)
	}

	// SSE Request construction
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	var mu sync.Mutex
	closed := false
	defer func() {
		mu.Lock()
		closed = true
		mu.Unlock()
	}()
	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return context.Canceled
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{
		"job":         job.ID,
		"mode":        job.Mode,
		"files":       len(inputs),
		"target":      media.FormatDuration(params.target.Seconds()),
		"environment": h.editor.Processor().Environment().Name(),
	}); err != nil {
		return
	}

	out, err := h.workers.Process(worker.ProcessRequest{
		Context: ctx,
		Client:  job.Client,
		Run: editor.RunRequest{
			Job:    job,
			Inputs: inputs,
			Target: params.target,
			Suffix: params.suffix,
		},
		Progress: func(percent int, message string) {
			_ = sendEvent("progress", gin.H{
				"percent": percent,
				"text":    media.FormatProgress(float64(percent), 100, message),
			})
		},
	})
	if err != nil {
		payload := gin.H{"job": job.ID, "message": media.UserMessage(err)}
		switch {
		case errors.Is(err, worker.ErrDispatcherBusy), errors.Is(err, worker.ErrDispatcherClosed):
			payload["message"] = "server is busy, please retry"
			if ferr := h.editor.FailJob(context.WithoutCancel(ctx), job, "server is busy"); ferr != nil {
				h.logger.Warn().Err(ferr).Str("job", job.ID).Msg("record rejected job")
			}
		case errors.Is(err, media.ErrModeNotImplemented):
			payload["pending"] = true
		default:
			payload["hint"] = media.ErrorHint
		}
		_ = sendEvent("error", payload)
		return
	}
	_ = sendEvent("done", doneEvent(out))
}

func doneEvent(out *editor.Output) gin.H {
	return gin.H{
		"job":          out.JobID,
		"message":      out.Message,
		"size":         out.Size,
		"size_human":   humanize.Bytes(uint64(out.Size)),
		"filename":     out.FileName,
		"mime":         out.MimeType,
		"duration":     media.FormatDuration(out.Duration),
		"template":     out.Template,
		"download_url": downloadURL(out.JobID),
	}
}

func downloadURL(jobID string) string {
	return "/api/jobs/" + jobID + "/download"
}

func (h *Handler) listJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	client := ""
	if c.Query("mine") == "1" {
		client = c.ClientIP()
	}
	jobs, err := h.editor.ListJobs(c.Request.Context(), client, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list jobs failed"})
		return
	}
	if jobs == nil {
		jobs = []models.Job{}
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *Handler) getJob(c *gin.Context) {
	id := c.Param("id")
	job, err := h.editor.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		h.logger.Error().Err(err).Str("job", id).Msg("get job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get job failed"})
		return
	}
	resp := gin.H{"job": job}
	if !job.Finished() {
		if p, ok := h.workers.Progress(id); ok {
			resp["progress"] = gin.H{
				"percent":    p.Percent,
				"text":       media.FormatProgress(float64(p.Percent), 100, p.Message),
				"updated_at": p.UpdatedAt,
			}
		}
	}
	if _, ok := h.workers.Result(id); ok {
		resp["download_url"] = downloadURL(id)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) download(c *gin.Context) {
	out, ok := h.workers.Result(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found or expired"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.FileName))
	c.Header("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	c.Data(http.StatusOK, out.MimeType, out.Data)
}

func (h *Handler) sniffUpload(fh *multipart.FileHeader) (string, error) {
	if !media.AcceptedExtension(fh.Filename) {
		return "", fmt.Errorf("unsupported file type: %s", fh.Filename)
	}
	if fh.Size > h.maxUpload {
		return "", fmt.Errorf("%s exceeds %s", fh.Filename, humanize.Bytes(uint64(h.maxUpload)))
	}
	if fh.Size == 0 {
		return "", fmt.Errorf("%s is empty", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.New("open file failed")
	}
	defer f.Close()
	return detectAudio(f, fh.Filename)
}
