package server

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/articulate/feedback"
	"github.com/mrsingh-rishi/articulate/history"
	"github.com/mrsingh-rishi/articulate/model"
	"github.com/mrsingh-rishi/articulate/report"
	"github.com/mrsingh-rishi/articulate/workers"
)

type feedbackResponse struct {
	SessionID string                  `json:"sessionId"`
	Reports   []*report.Report        `json:"reports"`
	Failures  []workers.Failure       `json:"failures"`
	Timeline  []history.TimelineEntry `json:"timeline"`
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		return errors.Wrap(err, "read index page")
	}
	c.Type("html", "utf-8")
	return c.Send(page)
}

func (s *Server) handleFeedback(c *fiber.Ctx) error {
	sess := sessionFrom(c)

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected multipart form with audio files")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no audio files uploaded")
	}

	uploads := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		uploads = append(uploads, up)
	}

	opts := feedback.Options{
		Style:      feedback.ParseStyle(c.FormValue("style")),
		Randomness: parseToggle(c.FormValue("randomness")),
	}
	s.logger.Info().
		Str("sessionId", sess.ID).
		Int("files", len(uploads)).
		Str("style", string(opts.Style)).
		Bool("randomness", opts.Randomness).
		Msg("📥 feedback batch received")

	res, err := s.worker.Submit(c.UserContext(), workers.Batch{
		SessionID: sess.ID,
		Uploads:   uploads,
		Options:   opts,
		History:   sess.History,
		Notify:    s.hub.Notifier(),
	})
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	sess.AddReports(res.Reports...)

	return c.JSON(feedbackResponse{
		SessionID: sess.ID,
		Reports:   res.Reports,
		Failures:  res.Failures,
		Timeline:  sess.History.Timeline(s.displayLimit()),
	})
}

func readUpload(fh *multipart.FileHeader) (model.Upload, error) {
	file, err := fh.Open()
	if err != nil {
		return model.Upload{}, errors.Wrapf(err, "open %s", fh.Filename)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return model.Upload{}, errors.Wrapf(err, "read %s", fh.Filename)
	}
	return model.Upload{
		Name:      fh.Filename,
		MediaType: fh.Header.Get("Content-Type"),
		Data:      data,
	}, nil
}

func parseToggle(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func (s *Server) displayLimit() int {
	if s.cfg.Session.HistoryDisplay > 0 {
		return s.cfg.Session.HistoryDisplay
	}
	return history.DefaultDisplayLimit
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	return c.JSON(fiber.Map{
		"total":    sess.History.Len(),
		"timeline": sess.History.Timeline(s.displayLimit()),
	})
}

func (s *Server) handleDownload(c *fiber.Ctx) error {
	sess := sessionFrom(c)
	r, ok := sess.Report(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "report not found")
	}
	c.Attachment(report.FileName(r.CreatedAt))
	c.Type("txt", "utf-8")
	return c.SendString(r.Text())
}
